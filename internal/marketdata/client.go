package marketdata

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/monkfishlabs/koi-cli/internal/httpx"
)

const defaultBaseURL = "https://api.dexscreener.com/latest/dex"

// Client reads public DEX pair data. It is a fallback data source for
// symbol resolution, so every failure degrades to a miss instead of an
// error; resolution simply moves on to the next tier.
type Client struct {
	http    *httpx.Client
	baseURL string
	logger  *slog.Logger
}

func New(httpClient *httpx.Client, baseURL string, logger *slog.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type Pair struct {
	ChainID     string `json:"chainId"`
	PriceUSD    string `json:"priceUsd"`
	PriceNative string `json:"priceNative"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	BaseToken struct {
		Symbol  string `json:"symbol"`
		Address string `json:"address"`
	} `json:"baseToken"`
}

type pairsEnvelope struct {
	Pairs []Pair `json:"pairs"`
}

// TokenPairs returns the trading pairs listed for a token address.
func (c *Client) TokenPairs(ctx context.Context, address string) ([]Pair, bool) {
	var env pairsEnvelope
	endpoint := c.baseURL + "/tokens/" + url.PathEscape(address)
	if err := httpx.GetJSON(ctx, c.http, endpoint, &env); err != nil {
		c.logger.Warn("market data token lookup failed", "address", address, "err", err)
		return nil, false
	}
	if len(env.Pairs) == 0 {
		return nil, false
	}
	return env.Pairs, true
}

// Search looks a symbol up on one chain and, when several candidates
// share the symbol, picks the one with the highest reported liquidity.
func (c *Client) Search(ctx context.Context, symbol, chainID string) (Pair, bool) {
	var env pairsEnvelope
	endpoint := c.baseURL + "/search?q=" + url.QueryEscape(symbol)
	if err := httpx.GetJSON(ctx, c.http, endpoint, &env); err != nil {
		c.logger.Warn("market data search failed", "symbol", symbol, "err", err)
		return Pair{}, false
	}

	var best Pair
	found := false
	for _, pair := range env.Pairs {
		if !strings.EqualFold(pair.ChainID, chainID) {
			continue
		}
		if !strings.EqualFold(pair.BaseToken.Symbol, symbol) {
			continue
		}
		if pair.BaseToken.Address == "" {
			continue
		}
		if !found || pair.Liquidity.USD > best.Liquidity.USD {
			best = pair
			found = true
		}
	}
	return best, found
}
