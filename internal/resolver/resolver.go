package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/monkfishlabs/koi-cli/internal/directory"
	"github.com/monkfishlabs/koi-cli/internal/httpx"
	"github.com/monkfishlabs/koi-cli/internal/id"
)

// ResolvedAsset is the canonical identifier handed to the backend
// gateway. Address is returned byte-exact; Chain is a display hint.
// Checksum carries the EIP-55 form for EVM addresses, display only.
type ResolvedAsset struct {
	Address  string `json:"address"`
	Chain    string `json:"chain,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Note     string `json:"note,omitempty"`
}

type Reason string

const (
	ReasonAmbiguous    Reason = "ambiguous"
	ReasonUnknown      Reason = "unknown"
	ReasonInvalid      Reason = "invalid"
	ReasonBackendError Reason = "backend_error"
)

// Failure is the terminal non-success outcome of resolution. It is
// structured data for the presentation layer, which owns escaping; the
// resolver emits plain text only.
type Failure struct {
	Reason      Reason   `json:"reason"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

const maxSuggestions = 5

// Resolver turns free-form asset text into a canonical address. The
// backend registry is consulted when configured; the public token
// directory serves as the fallback tier when the backend is down.
type Resolver struct {
	http       *httpx.Client
	backendURL string
	dir        *directory.Directory
	dirTTL     time.Duration
	logger     *slog.Logger
}

func New(httpClient *httpx.Client, backendURL string, dir *directory.Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		http:       httpClient,
		backendURL: strings.TrimRight(strings.TrimSpace(backendURL), "/"),
		dir:        dir,
		dirTTL:     directory.DefaultTTL,
		logger:     logger,
	}
}

// Resolve classifies the input and applies resolution rules in fixed
// precedence order, returning at the first matching case.
func (r *Resolver) Resolve(ctx context.Context, raw string) (ResolvedAsset, *Failure) {
	in := id.ParseInput(raw)

	switch in.Kind {
	case id.KindAddressWithChain:
		return ResolvedAsset{Address: in.Address, Chain: in.Chain, Checksum: evmChecksum(in.Address), Note: "address provided with chain hint"}, nil

	case id.KindRawAddress:
		return ResolvedAsset{Address: in.Address, Checksum: evmChecksum(in.Address), Note: "address provided"}, nil

	case id.KindSymbolWithChain:
		return r.resolveSymbolWithChain(ctx, in)

	case id.KindBareSymbol:
		return r.resolveBareSymbol(ctx, in)

	default:
		if in.Chain != "" {
			return ResolvedAsset{}, &Failure{
				Reason:  ReasonInvalid,
				Message: "expected an address or symbol after the chain hint",
			}
		}
		if id.AddressHeuristic(strings.TrimSpace(raw)) {
			return ResolvedAsset{}, &Failure{
				Reason:  ReasonInvalid,
				Message: "address format looks invalid; paste the full canonical address",
			}
		}
		return ResolvedAsset{}, &Failure{
			Reason:  ReasonUnknown,
			Message: "could not interpret the asset input",
		}
	}
}

func (r *Resolver) resolveSymbolWithChain(ctx context.Context, in id.Input) (ResolvedAsset, *Failure) {
	qualified := strings.ToLower(in.Symbol) + ":" + in.Chain

	if r.backendURL == "" {
		return ResolvedAsset{}, &Failure{
			Reason:      ReasonAmbiguous,
			Message:     fmt.Sprintf("resolving %s requires the backend registry", qualified),
			Suggestions: []string{qualified},
		}
	}

	resp, err := r.backendResolve(ctx, in.Symbol+":"+in.Chain)
	if err != nil {
		if asset, ok := r.directoryFallback(ctx, in.Symbol, in.Chain); ok {
			return asset, nil
		}
		return ResolvedAsset{}, &Failure{
			Reason:  ReasonBackendError,
			Message: err.Error(),
		}
	}
	if resp.OK && resp.Address != "" {
		chain := resp.Chain
		if chain == "" {
			chain = in.Chain
		}
		return ResolvedAsset{Address: resp.Address, Chain: chain, Note: "resolved via registry"}, nil
	}
	msg := resp.Error
	if msg == "" {
		msg = "backend did not return a valid resolution"
	}
	return ResolvedAsset{}, &Failure{Reason: ReasonBackendError, Message: msg}
}

func (r *Resolver) resolveBareSymbol(ctx context.Context, in id.Input) (ResolvedAsset, *Failure) {
	if r.backendURL == "" {
		return ResolvedAsset{}, &Failure{
			Reason:      ReasonAmbiguous,
			Message:     "a symbol alone can exist on multiple chains; use symbol:chain or paste an address",
			Suggestions: id.SuggestChains(in.Symbol, 3),
		}
	}

	resp, err := r.backendResolve(ctx, in.Symbol)
	if err != nil {
		if asset, ok := r.directoryFallback(ctx, in.Symbol, ""); ok {
			return asset, nil
		}
		return ResolvedAsset{}, &Failure{
			Reason:  ReasonBackendError,
			Message: err.Error(),
		}
	}
	if resp.OK && resp.Address != "" {
		note := "resolved via registry"
		if resp.Disambiguated {
			note = "resolved (disambiguated) via registry"
		}
		return ResolvedAsset{Address: resp.Address, Chain: resp.Chain, Note: note}, nil
	}
	if len(resp.Options) > 0 {
		msg := resp.Error
		if msg == "" {
			msg = "symbol exists on multiple chains"
		}
		return ResolvedAsset{}, &Failure{
			Reason:      ReasonAmbiguous,
			Message:     msg,
			Suggestions: formatOptions(in.Symbol, resp.Options),
		}
	}
	msg := resp.Error
	if msg == "" {
		msg = "symbol not found in registry"
	}
	return ResolvedAsset{}, &Failure{Reason: ReasonUnknown, Message: msg}
}

// directoryFallback serves resolution from the public token directory
// when the backend is unreachable. The directory covers the sol chain
// only, so any other explicit chain hint skips it.
func (r *Resolver) directoryFallback(ctx context.Context, symbol, chain string) (ResolvedAsset, bool) {
	if r.dir == nil {
		return ResolvedAsset{}, false
	}
	if chain != "" && chain != "sol" {
		return ResolvedAsset{}, false
	}
	r.logger.Warn("backend resolve unavailable, falling back to token directory", "symbol", symbol)

	r.dir.EnsureFresh(ctx, r.dirTTL)
	note := "resolved via token list (backend unavailable)"
	if addr, ok := r.dir.Lookup(symbol); ok {
		return ResolvedAsset{Address: addr, Chain: "sol", Note: note}, true
	}
	if addr, ok := r.dir.SearchExternal(ctx, symbol); ok {
		return ResolvedAsset{Address: addr, Chain: "sol", Note: note}, true
	}
	return ResolvedAsset{}, false
}

// evmChecksum returns the EIP-55 display form for EVM addresses and an
// empty string for every other address shape.
func evmChecksum(addr string) string {
	if !id.IsEVMAddress(addr) {
		return ""
	}
	return id.ChecksumEVM(addr)
}

type resolveResponse struct {
	OK            bool              `json:"ok"`
	Address       string            `json:"address"`
	Chain         string            `json:"chain"`
	Disambiguated bool              `json:"disambiguated"`
	Error         string            `json:"error"`
	Options       []json.RawMessage `json:"options"`
}

// backendResolve is single-attempt: resolution failures are terminal
// here, never retried.
func (r *Resolver) backendResolve(ctx context.Context, asset string) (resolveResponse, error) {
	endpoint := r.backendURL + "/api/resolve?asset=" + url.QueryEscape(asset)
	var resp resolveResponse
	if err := httpx.GetJSON(ctx, r.http, endpoint, &resp); err != nil {
		return resolveResponse{}, err
	}
	return resp, nil
}

// formatOptions renders backend-supplied options as symbol:chain
// strings, capped at maxSuggestions. Options arrive either as plain
// strings or as {symbol, chain} objects.
func formatOptions(symbol string, options []json.RawMessage) []string {
	out := make([]string, 0, maxSuggestions)
	for _, raw := range options {
		if len(out) == maxSuggestions {
			break
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Symbol string `json:"symbol"`
			Chain  string `json:"chain"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			continue
		}
		if obj.Symbol == "" {
			obj.Symbol = symbol
		}
		if obj.Chain == "" {
			obj.Chain = "?"
		}
		out = append(out, obj.Symbol+":"+obj.Chain)
	}
	return out
}
