package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/monkfishlabs/koi-cli/internal/httpx"
)

const searchBody = `{"pairs":[
	{"chainId":"solana","priceUsd":"1.00","liquidity":{"usd":50000},
		"baseToken":{"symbol":"WIF","address":"MintLowLiquidity11111111111111111111111111"}},
	{"chainId":"solana","priceUsd":"1.00","liquidity":{"usd":900000},
		"baseToken":{"symbol":"WIF","address":"MintHighLiquidity1111111111111111111111111"}},
	{"chainId":"ethereum","priceUsd":"1.00","liquidity":{"usd":9000000},
		"baseToken":{"symbol":"WIF","address":"0x0000000000000000000000000000000000000001"}}
]}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := New(httpx.New(2*time.Second, 0), srv.URL, nil)
	return client, srv.Close
}

func TestSearchPicksHighestLiquidityOnChain(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchBody))
	})
	defer done()

	pair, ok := client.Search(context.Background(), "wif", "solana")
	if !ok {
		t.Fatal("expected a match")
	}
	if pair.BaseToken.Address != "MintHighLiquidity1111111111111111111111111" {
		t.Fatalf("expected highest-liquidity solana pair, got %s", pair.BaseToken.Address)
	}
}

func TestSearchMissesOffChainAndUnknownSymbols(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchBody))
	})
	defer done()

	if _, ok := client.Search(context.Background(), "wif", "base"); ok {
		t.Fatal("expected miss for chain with no pairs")
	}
	if _, ok := client.Search(context.Background(), "nosuch", "solana"); ok {
		t.Fatal("expected miss for unknown symbol")
	}
}

func TestSearchDegradesToMissOnFailure(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer done()

	if _, ok := client.Search(context.Background(), "wif", "solana"); ok {
		t.Fatal("transport failure must degrade to a miss")
	}

	clientBadJSON, done2 := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	defer done2()
	if _, ok := clientBadJSON.Search(context.Background(), "wif", "solana"); ok {
		t.Fatal("parse failure must degrade to a miss")
	}
}

func TestTokenPairs(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tokens/SomeMint111111111111111111111111111111111" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"pairs":[{"chainId":"solana","priceUsd":"0.5","priceNative":"0.003",
			"liquidity":{"usd":1234},"baseToken":{"symbol":"ABC","address":"SomeMint111111111111111111111111111111111"}}]}`))
	})
	defer done()

	pairs, ok := client.TokenPairs(context.Background(), "SomeMint111111111111111111111111111111111")
	if !ok || len(pairs) != 1 {
		t.Fatalf("expected one pair, got %v ok=%v", pairs, ok)
	}
	if pairs[0].PriceUSD != "0.5" {
		t.Fatalf("unexpected price: %s", pairs[0].PriceUSD)
	}

	if _, ok := client.TokenPairs(context.Background(), "Missing"); ok {
		t.Fatal("expected miss for unknown token")
	}
}
