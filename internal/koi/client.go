package koi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	clierr "github.com/monkfishlabs/koi-cli/internal/errors"
)

const (
	defaultTokenPath = "/api/auth/token"
	defaultTimeout   = 10 * time.Second

	// One retry for the transient failure set, no more.
	maxAttempts = 2
)

// CallerMeta identifies the end user behind a gateway call. It is used
// for token lookup and request attribution only, never persisted.
type CallerMeta struct {
	UserID  string
	Command string
	TraceID string
}

// Client issues authenticated JSON calls against the trading backend
// under a per-end-user identity.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokenPath  string
	botID      string
	tokens     *TokenCache
	logger     *slog.Logger

	sleep  func(time.Duration)
	jitter func() time.Duration
}

type Options struct {
	BaseURL   string
	TokenPath string
	BotID     string
	TokenTTL  time.Duration
	Timeout   time.Duration
	Logger    *slog.Logger
}

func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, clierr.New(clierr.CodeUsage, "backend base URL is required")
	}
	tokenPath := strings.TrimSpace(opts.TokenPath)
	if tokenPath == "" {
		tokenPath = defaultTokenPath
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		tokenPath:  tokenPath,
		botID:      strings.TrimSpace(opts.BotID),
		tokens:     NewTokenCache(opts.TokenTTL),
		logger:     logger,
		sleep:      time.Sleep,
		jitter: func() time.Duration {
			return 250*time.Millisecond + time.Duration(rand.Intn(250))*time.Millisecond
		},
	}, nil
}

// Tokens exposes the per-user token cache, mainly for tests and for
// explicit invalidation by the caller.
func (c *Client) Tokens() *TokenCache { return c.tokens }

type envelope struct {
	OK      *bool  `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// do performs one logical backend operation: acquire a bearer token,
// attach attribution headers, send, and retry exactly once on the
// transient failure set with a jittered backoff and a forced token
// refresh. Non-transient failures and second failures surface as typed
// errors carrying the HTTP status and backend error code.
func (c *Client) do(ctx context.Context, method, path string, body any, meta CallerMeta, out any) error {
	if strings.TrimSpace(meta.UserID) == "" {
		return clierr.New(clierr.CodeUsage, "caller user id is required")
	}

	var payload []byte
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return clierr.Wrap(clierr.CodeInternal, "encode request body", err)
		}
		payload = buf
	}

	traceID := meta.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return clierr.Wrap(clierr.CodeUnavailable, "request cancelled", ctx.Err())
			default:
			}
			c.sleep(c.jitter())
		}

		token, err := c.userToken(ctx, meta.UserID, attempt > 0)
		if err != nil {
			return err
		}

		req, err := c.newRequest(ctx, method, path, payload)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-User-Id", meta.UserID)
		req.Header.Set("X-Trace-Id", traceID)
		if meta.Command != "" {
			req.Header.Set("X-Command", meta.Command)
		}
		if c.botID != "" {
			req.Header.Set("X-Bot-Id", c.botID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = clierr.Wrap(clierr.CodeUnavailable, "backend request failed", err)
			if attempt == 0 {
				c.logger.Debug("retrying backend call", "path", path, "attempt", attempt+1, "err", err)
				continue
			}
			return lastErr
		}

		buf, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = clierr.Wrap(clierr.CodeUnavailable, "read backend response", readErr)
			if attempt == 0 {
				continue
			}
			return lastErr
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if resp.StatusCode == http.StatusUnauthorized {
				c.tokens.Invalidate(meta.UserID)
			}
			remoteErr := remoteError(resp.StatusCode, buf)
			if attempt == 0 && transientStatus(resp.StatusCode) {
				lastErr = remoteErr
				c.logger.Debug("retrying backend call", "path", path, "status", resp.StatusCode)
				continue
			}
			return remoteErr
		}

		var env envelope
		_ = json.Unmarshal(buf, &env)
		if env.OK != nil && !*env.OK {
			msg := env.Error
			if msg == "" {
				msg = env.Message
			}
			if msg == "" {
				msg = "backend reported failure"
			}
			return clierr.Remote(clierr.CodeBackend, msg, resp.StatusCode, env.Code)
		}

		if out == nil {
			return nil
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			return clierr.New(clierr.CodeUnavailable, "empty backend response")
		}
		if err := json.Unmarshal(buf, out); err != nil {
			return clierr.Wrap(clierr.CodeUnavailable, "decode backend response", err)
		}
		return nil
	}

	if lastErr != nil {
		return lastErr
	}
	return clierr.New(clierr.CodeUnavailable, "backend request failed")
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build backend request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// userToken returns the cached token for a user or fetches a new one
// from the token-issuance endpoint. force bypasses the cache; it is set
// on the retry leg so the second attempt always runs with fresh
// credentials.
func (c *Client) userToken(ctx context.Context, userID string, force bool) (string, error) {
	if !force {
		if token, ok := c.tokens.Get(userID); ok {
			return token, nil
		}
	}

	payload, err := json.Marshal(map[string]string{"telegramId": userID})
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "encode token request", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.tokenPath, payload)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeAuth, "token issuance failed", err)
	}
	buf, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return "", clierr.Wrap(clierr.CodeAuth, "read token response", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env envelope
		_ = json.Unmarshal(buf, &env)
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("token endpoint returned status %d", resp.StatusCode)
		}
		return "", clierr.Remote(clierr.CodeAuth, msg, resp.StatusCode, env.Code)
	}

	var body struct {
		Token       string `json:"token"`
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(buf, &body); err != nil {
		return "", clierr.Wrap(clierr.CodeAuth, "decode token response", err)
	}
	token := body.Token
	if token == "" {
		token = body.AccessToken
	}
	if token == "" {
		return "", clierr.New(clierr.CodeAuth, "token endpoint did not return a token")
	}
	c.tokens.Set(userID, token)
	return token, nil
}

func remoteError(status int, body []byte) *clierr.Error {
	var env envelope
	_ = json.Unmarshal(body, &env)
	msg := env.Error
	if msg == "" {
		msg = env.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	code := clierr.CodeBackend
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = clierr.CodeAuth
	case status == http.StatusTooManyRequests:
		code = clierr.CodeRateLimited
	case status >= http.StatusInternalServerError:
		code = clierr.CodeUnavailable
	}
	return clierr.Remote(code, msg, status, env.Code)
}

// The transient set: auth expiry, rate limiting, server errors. Network
// failures join it implicitly via the error branch in do.
func transientStatus(status int) bool {
	return status == http.StatusUnauthorized ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Quote asks the backend to price buying a token with SOL.
func (c *Client) Quote(ctx context.Context, mint string, amountSOL float64, meta CallerMeta) (QuoteResponse, error) {
	meta.Command = "quote"
	vals := url.Values{}
	vals.Set("mint", mint)
	vals.Set("amountSOL", formatAmount(amountSOL))
	var out QuoteResponse
	err := c.do(ctx, http.MethodGet, "/api/quote?"+vals.Encode(), nil, meta, &out)
	return out, err
}

// Swap executes a market buy of a token with SOL.
func (c *Client) Swap(ctx context.Context, mint string, amountSOL float64, meta CallerMeta) (SwapResponse, error) {
	meta.Command = "swap"
	body := map[string]any{"mint": mint, "amountSOL": amountSOL}
	var out SwapResponse
	err := c.do(ctx, http.MethodPost, "/api/swap", body, meta, &out)
	return out, err
}

// CadenceSwap hits the compatibility route for the cadence trader.
func (c *Client) CadenceSwap(ctx context.Context, req CadenceSwapRequest, meta CallerMeta) (CadenceSwapResponse, error) {
	meta.Command = "swap"
	var out CadenceSwapResponse
	err := c.do(ctx, http.MethodPost, "/api/algo/cadence-trader", req, meta, &out)
	return out, err
}

func (c *Client) WalletCreate(ctx context.Context, meta CallerMeta) (WalletCreateResponse, error) {
	meta.Command = "wallet"
	var out WalletCreateResponse
	err := c.do(ctx, http.MethodPost, "/api/wallet/create", nil, meta, &out)
	return out, err
}

func (c *Client) WalletDepositAddress(ctx context.Context, chain string, meta CallerMeta) (WalletAddressResponse, error) {
	meta.Command = "wallet"
	vals := url.Values{}
	vals.Set("chain", chain)
	var out WalletAddressResponse
	err := c.do(ctx, http.MethodGet, "/api/wallet/deposit?"+vals.Encode(), nil, meta, &out)
	return out, err
}

func (c *Client) WalletBalance(ctx context.Context, meta CallerMeta) (WalletBalanceResponse, error) {
	meta.Command = "wallet"
	var out WalletBalanceResponse
	err := c.do(ctx, http.MethodGet, "/api/wallet/balance", nil, meta, &out)
	return out, err
}

func (c *Client) Algos(ctx context.Context, meta CallerMeta) (AlgosListResponse, error) {
	meta.Command = "algos"
	var out AlgosListResponse
	err := c.do(ctx, http.MethodGet, "/api/algos", nil, meta, &out)
	return out, err
}

func (c *Client) Allocations(ctx context.Context, meta CallerMeta) (AllocationsResponse, error) {
	meta.Command = "allocations"
	vals := url.Values{}
	vals.Set("telegramId", meta.UserID)
	var out AllocationsResponse
	err := c.do(ctx, http.MethodGet, "/api/allocations?"+vals.Encode(), nil, meta, &out)
	return out, err
}

func (c *Client) AllocationsEnable(ctx context.Context, algoID string, amountSOL float64, meta CallerMeta) (AllocationChangeResponse, error) {
	return c.allocationsChange(ctx, "enable", algoID, amountSOL, meta)
}

func (c *Client) AllocationsDisable(ctx context.Context, algoID string, amountSOL float64, meta CallerMeta) (AllocationChangeResponse, error) {
	return c.allocationsChange(ctx, "disable", algoID, amountSOL, meta)
}

func (c *Client) allocationsChange(ctx context.Context, action, algoID string, amountSOL float64, meta CallerMeta) (AllocationChangeResponse, error) {
	meta.Command = "allocations"
	body := map[string]any{"algoId": algoID, "amountSol": amountSOL}
	var out AllocationChangeResponse
	err := c.do(ctx, http.MethodPost, "/api/allocations/"+action, body, meta, &out)
	return out, err
}
