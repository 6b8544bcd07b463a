package directory

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/monkfishlabs/koi-cli/internal/cache"
	"github.com/monkfishlabs/koi-cli/internal/httpx"
	"github.com/monkfishlabs/koi-cli/internal/marketdata"
)

const (
	// DefaultTTL is how long a loaded token list is considered fresh.
	DefaultTTL = 6 * time.Hour

	defaultListURL = "https://token.jup.ag/all"
	snapshotKey    = "tokenlist"

	// The public list feed and the market-data fallback both cover the
	// same network, identified as "solana" by the pair data source.
	marketChainID = "solana"
)

// Directory maintains a best-effort symbol-to-mint mapping, refreshed
// from the public token list and backed by the static safety-net table.
// It never returns errors: every failure degrades to "not found" so the
// resolution pipeline can try its next tier.
type Directory struct {
	mu        sync.Mutex
	bySymbol  map[string]string
	fetchedAt time.Time

	http    *httpx.Client
	listURL string
	snap    *cache.Store
	market  *marketdata.Client
	logger  *slog.Logger
	now     func() time.Time
}

func New(httpClient *httpx.Client, listURL string, snap *cache.Store, market *marketdata.Client, logger *slog.Logger) *Directory {
	if strings.TrimSpace(listURL) == "" {
		listURL = defaultListURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		bySymbol: make(map[string]string),
		http:     httpClient,
		listURL:  listURL,
		snap:     snap,
		market:   market,
		logger:   logger,
		now:      time.Now,
	}
}

type listEntry struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

// EnsureFresh loads the token list if the mapping is empty or older than
// ttl. A fresh on-disk snapshot is preferred over the network; a failed
// fetch leaves any existing mapping untouched and, when the mapping is
// still empty, seeds it with the static table alone.
func (d *Directory) EnsureFresh(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.bySymbol) > 0 && !d.fetchedAt.IsZero() && d.now().Sub(d.fetchedAt) < ttl {
		return
	}

	if res, err := d.snap.Get(snapshotKey); err == nil && res.Hit && res.Age < ttl {
		var entries []listEntry
		if json.Unmarshal(res.Value, &entries) == nil && len(entries) > 0 {
			d.load(entries)
			d.fetchedAt = d.now().Add(-res.Age)
			d.logger.Debug("token directory loaded from snapshot", "entries", len(d.bySymbol), "age", res.Age)
			return
		}
	}

	d.fetchLocked(ctx, ttl)
}

// ForceRefresh fetches the token list unconditionally, skipping both the
// in-memory freshness check and the snapshot tier. The snapshot is still
// persisted with the full ttl so later runs see it as fresh.
func (d *Directory) ForceRefresh(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fetchLocked(ctx, ttl)
}

func (d *Directory) fetchLocked(ctx context.Context, ttl time.Duration) {
	var entries []listEntry
	if err := httpx.GetJSON(ctx, d.http, d.listURL, &entries); err != nil || len(entries) == 0 {
		d.logger.Warn("token list fetch failed", "url", d.listURL, "err", err)
		if len(d.bySymbol) == 0 {
			for sym, addr := range Static {
				d.bySymbol[sym] = addr
			}
		}
		return
	}

	d.load(entries)
	d.fetchedAt = d.now()
	d.logger.Debug("token directory refreshed", "entries", len(d.bySymbol))

	if buf, err := json.Marshal(entries); err == nil {
		if err := d.snap.Set(snapshotKey, buf, ttl); err != nil {
			d.logger.Warn("token list snapshot write failed", "err", err)
		}
	}
}

// load replaces the mapping: first-seen address wins per uppercased
// symbol, then the static table is force-merged over the result.
func (d *Directory) load(entries []listEntry) {
	fresh := make(map[string]string, len(entries))
	for _, entry := range entries {
		sym := strings.ToUpper(strings.TrimSpace(entry.Symbol))
		addr := strings.TrimSpace(entry.Address)
		if sym == "" || addr == "" {
			continue
		}
		if _, seen := fresh[sym]; seen {
			continue
		}
		fresh[sym] = addr
	}
	for sym, addr := range Static {
		fresh[sym] = addr
	}
	d.bySymbol = fresh
}

// Size reports the number of mapped symbols.
func (d *Directory) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.bySymbol)
}

// Lookup is case-insensitive.
func (d *Directory) Lookup(symbol string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	addr, ok := d.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return addr, ok
}

// Learn caches an address discovered through the search fallback so
// subsequent lookups hit the mapping directly. Learned entries are
// opportunistic and not re-verified.
func (d *Directory) Learn(symbol, address string) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	addr := strings.TrimSpace(address)
	if sym == "" || addr == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bySymbol[sym] = addr
}

// SearchExternal queries the market-data search endpoint for a symbol
// absent from the mapping, preferring the highest-liquidity candidate.
// The hit is cached into the directory before being returned.
func (d *Directory) SearchExternal(ctx context.Context, symbol string) (string, bool) {
	if d.market == nil {
		return "", false
	}
	pair, ok := d.market.Search(ctx, symbol, marketChainID)
	if !ok {
		return "", false
	}
	d.Learn(symbol, pair.BaseToken.Address)
	return pair.BaseToken.Address, true
}
