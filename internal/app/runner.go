package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/monkfishlabs/koi-cli/internal/cache"
	"github.com/monkfishlabs/koi-cli/internal/config"
	"github.com/monkfishlabs/koi-cli/internal/directory"
	clierr "github.com/monkfishlabs/koi-cli/internal/errors"
	"github.com/monkfishlabs/koi-cli/internal/httpx"
	"github.com/monkfishlabs/koi-cli/internal/koi"
	"github.com/monkfishlabs/koi-cli/internal/marketdata"
	"github.com/monkfishlabs/koi-cli/internal/model"
	"github.com/monkfishlabs/koi-cli/internal/out"
	"github.com/monkfishlabs/koi-cli/internal/resolver"
	"github.com/monkfishlabs/koi-cli/internal/throttle"
	"github.com/monkfishlabs/koi-cli/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
		now:    time.Now,
	}
}

type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	root     *cobra.Command

	lastCommand     string
	lastSuggestions []string
	traceID         string

	httpClient *httpx.Client
	snapshots  *cache.Store
	directory  *directory.Directory
	market     *marketdata.Client
	resolve    *resolver.Resolver
	gateway    *koi.Client
	gate       *throttle.Gate
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	if err == nil {
		_ = state.snapshots.Close()
		return 0
	}

	state.renderError("", err)
	_ = state.snapshots.Close()
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Asset resolution and trading gateway CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			s.lastSuggestions = nil
			s.traceID = uuid.NewString()

			if s.httpClient == nil {
				s.httpClient = httpx.New(settings.Timeout, settings.Retries)
			}
			if settings.CacheEnabled && shouldOpenCache(path) && s.snapshots == nil {
				store, err := cache.Open(settings.SnapshotPath, settings.SnapshotLockPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeInternal, "open snapshot store", err)
				}
				s.snapshots = store
			}
			if s.market == nil {
				s.market = marketdata.New(s.httpClient, settings.MarketDataURL, s.runner.logger)
			}
			if s.directory == nil {
				s.directory = directory.New(s.httpClient, settings.TokenListURL, s.snapshots, s.market, s.runner.logger)
			}
			if s.resolve == nil {
				// Backend resolve calls are single-attempt; only the
				// public data sources get the configured retries.
				s.resolve = resolver.New(httpx.New(settings.Timeout, 0), settings.BackendURL, s.directory, s.runner.logger)
			}
			if s.gate == nil {
				s.gate = throttle.NewGate(settings.Cooldown)
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})
	cmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries for public data sources")
	cmd.PersistentFlags().StringVar(&s.flags.BackendURL, "backend-url", "", "Trading backend base URL")
	cmd.PersistentFlags().StringVar(&s.flags.UserID, "user", "", "End-user id for backend attribution")
	cmd.PersistentFlags().StringVar(&s.flags.BotID, "bot-id", "", "Bot id sent with backend calls")
	cmd.PersistentFlags().BoolVar(&s.flags.NoCache, "no-cache", false, "Disable the token list snapshot store")
	cmd.PersistentFlags().StringVar(&s.flags.Cooldown, "cooldown", "", "Per-user cooldown between trading actions")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newResolveCommand())
	cmd.AddCommand(s.newQuoteCommand())
	cmd.AddCommand(s.newSwapCommand())
	cmd.AddCommand(s.newAlgoCommand())
	cmd.AddCommand(s.newWalletCommand())
	cmd.AddCommand(s.newAllocationsCommand())
	cmd.AddCommand(s.newTokenCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <asset>",
		Short: "Resolve a symbol, symbol:chain, or address to a canonical asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()
			asset, err := s.resolveAsset(ctx, args[0])
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), asset)
		},
	}
	return cmd
}

// resolveAsset runs the resolution pipeline and converts its structured
// failure into a typed error, capturing suggestions for the error
// envelope.
func (s *runtimeState) resolveAsset(ctx context.Context, raw string) (resolver.ResolvedAsset, error) {
	asset, failure := s.resolve.Resolve(ctx, raw)
	if failure == nil {
		return asset, nil
	}
	s.lastSuggestions = failure.Suggestions
	code := clierr.CodeUnknown
	switch failure.Reason {
	case resolver.ReasonAmbiguous:
		code = clierr.CodeAmbiguous
	case resolver.ReasonInvalid:
		code = clierr.CodeInvalid
	case resolver.ReasonBackendError:
		code = clierr.CodeBackend
	}
	return resolver.ResolvedAsset{}, clierr.New(code, failure.Message)
}

func (s *runtimeState) commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.settings.Timeout)
}

func (s *runtimeState) callerMeta(command string) (koi.CallerMeta, error) {
	if strings.TrimSpace(s.settings.UserID) == "" {
		return koi.CallerMeta{}, clierr.New(clierr.CodeUsage, "--user (or KOI_USER_ID) is required for backend commands")
	}
	return koi.CallerMeta{
		UserID:  strings.TrimSpace(s.settings.UserID),
		Command: command,
		TraceID: s.traceID,
	}, nil
}

// requireGateway builds the backend client on first use. Commands that
// never touch the backend work without a configured URL.
func (s *runtimeState) requireGateway() (*koi.Client, error) {
	if s.gateway != nil {
		return s.gateway, nil
	}
	if strings.TrimSpace(s.settings.BackendURL) == "" {
		return nil, clierr.New(clierr.CodeUsage, "--backend-url (or KOI_BACKEND_URL) is required for this command")
	}
	client, err := koi.NewClient(koi.Options{
		BaseURL:   s.settings.BackendURL,
		TokenPath: s.settings.TokenPath,
		BotID:     s.settings.BotID,
		TokenTTL:  s.settings.TokenTTL,
		Timeout:   s.settings.Timeout,
		Logger:    s.runner.logger,
	})
	if err != nil {
		return nil, err
	}
	s.gateway = client
	return client, nil
}

// checkCooldown gates mutating actions per user.
func (s *runtimeState) checkCooldown(userID, action string) error {
	ok, wait := s.gate.Allow(userID, action)
	if ok {
		return nil
	}
	return clierr.New(clierr.CodeThrottled, fmt.Sprintf("cooldown active for %s, retry in %s", action, wait.Round(time.Millisecond)))
}

func (s *runtimeState) emitSuccess(commandPath string, data any) error {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
		Error:   nil,
		Meta: model.EnvelopeMeta{
			RequestID: uuid.NewString(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			TraceID:   s.traceID,
			UserID:    s.settings.UserID,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := "internal_error"
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		switch cErr.Code {
		case clierr.CodeUsage:
			typ = "usage_error"
		case clierr.CodeInvalid:
			typ = "invalid_asset"
		case clierr.CodeAmbiguous:
			typ = "ambiguous_asset"
		case clierr.CodeUnknown:
			typ = "unknown_asset"
		case clierr.CodeAuth:
			typ = "auth_error"
		case clierr.CodeRateLimited:
			typ = "rate_limited"
		case clierr.CodeUnavailable:
			typ = "backend_unavailable"
		case clierr.CodeBackend:
			typ = "backend_error"
		case clierr.CodeThrottled:
			typ = "throttled"
		}
		if cErr.RemoteCode != "" {
			message = fmt.Sprintf("%s (backend code %s)", message, cErr.RemoteCode)
		}
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Error: &model.ErrorBody{
			Code:        code,
			Type:        typ,
			Message:     message,
			Suggestions: s.lastSuggestions,
		},
		Meta: model.EnvelopeMeta{
			RequestID: uuid.NewString(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			TraceID:   s.traceID,
			UserID:    s.settings.UserID,
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

// The snapshot store only backs the token directory; commands that never
// resolve through it skip opening the database.
func shouldOpenCache(commandPath string) bool {
	switch normalizeCommandPath(commandPath) {
	case "", "version", "wallet", "wallet create", "wallet deposit", "wallet balance", "algo list", "allocations", "allocations list", "allocations enable", "allocations disable":
		return false
	default:
		return true
	}
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
