package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/monkfishlabs/koi-cli/internal/directory"
	"github.com/monkfishlabs/koi-cli/internal/httpx"
)

const (
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	usdcEVM  = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

func newResolver(backendURL string, dir *directory.Directory) *Resolver {
	return New(httpx.New(2*time.Second, 0), backendURL, dir, nil)
}

func TestRawAddressesResolveWithoutBackend(t *testing.T) {
	var backendCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&backendCalls, 1)
		_, _ = w.Write([]byte(`{"ok":true,"address":"ShouldNotBeUsed"}`))
	}))
	defer srv.Close()

	r := newResolver(srv.URL, nil)
	for _, raw := range []string{usdcMint, usdcEVM} {
		asset, failure := r.Resolve(context.Background(), raw)
		if failure != nil {
			t.Fatalf("Resolve(%q) failed: %+v", raw, failure)
		}
		if asset.Address != raw {
			t.Fatalf("address must be byte-exact: got %q want %q", asset.Address, raw)
		}
		if asset.Chain != "" {
			t.Fatalf("raw address should carry no chain hint, got %q", asset.Chain)
		}
		if asset.Note != "address provided" {
			t.Fatalf("unexpected note: %q", asset.Note)
		}
	}
	if got := atomic.LoadInt32(&backendCalls); got != 0 {
		t.Fatalf("raw addresses must not hit the backend, got %d calls", got)
	}
}

func TestEVMAddressCarriesChecksumDisplayForm(t *testing.T) {
	r := newResolver("", nil)

	lower := strings.ToLower(usdcEVM)
	asset, failure := r.Resolve(context.Background(), lower)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if asset.Address != lower {
		t.Fatalf("address must stay byte-exact: got %q want %q", asset.Address, lower)
	}
	if asset.Checksum != usdcEVM {
		t.Fatalf("expected EIP-55 checksum %q, got %q", usdcEVM, asset.Checksum)
	}

	// Base58 mints have no checksum form.
	asset, failure = r.Resolve(context.Background(), usdcMint)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if asset.Checksum != "" {
		t.Fatalf("mint addresses must not carry a checksum, got %q", asset.Checksum)
	}
}

func TestChainHintedAddress(t *testing.T) {
	r := newResolver("", nil)
	asset, failure := r.Resolve(context.Background(), "sol:"+usdcMint)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if asset.Address != usdcMint || asset.Chain != "sol" {
		t.Fatalf("unexpected result: %+v", asset)
	}
	if asset.Note != "address provided with chain hint" {
		t.Fatalf("unexpected note: %q", asset.Note)
	}
}

func TestSymbolWithChainNoBackendIsAmbiguous(t *testing.T) {
	r := newResolver("", nil)
	_, failure := r.Resolve(context.Background(), "usdc:sol")
	if failure == nil || failure.Reason != ReasonAmbiguous {
		t.Fatalf("expected ambiguous, got %+v", failure)
	}
	if len(failure.Suggestions) != 1 || failure.Suggestions[0] != "usdc:sol" {
		t.Fatalf("expected sole suggestion usdc:sol, got %v", failure.Suggestions)
	}
}

func TestBareSymbolNoBackendSuggestsFirstThreeChains(t *testing.T) {
	r := newResolver("", nil)
	_, failure := r.Resolve(context.Background(), "usdc")
	if failure == nil || failure.Reason != ReasonAmbiguous {
		t.Fatalf("expected ambiguous, got %+v", failure)
	}
	want := []string{"usdc:sol", "usdc:eth", "usdc:base"}
	if len(failure.Suggestions) != len(want) {
		t.Fatalf("expected exactly 3 suggestions, got %v", failure.Suggestions)
	}
	for i := range want {
		if failure.Suggestions[i] != want[i] {
			t.Fatalf("suggestion %d = %q, want %q", i, failure.Suggestions[i], want[i])
		}
	}
}

func TestSymbolWithChainResolvedByBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/resolve" || r.URL.Query().Get("asset") != "usdc:sol" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"address":"` + usdcMint + `","chain":"sol"}`))
	}))
	defer srv.Close()

	r := newResolver(srv.URL, nil)
	asset, failure := r.Resolve(context.Background(), "usdc:sol")
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if asset.Address != usdcMint || asset.Chain != "sol" || asset.Note != "resolved via registry" {
		t.Fatalf("unexpected result: %+v", asset)
	}
}

func TestBareSymbolBackendDisambiguates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"address":"` + usdcMint + `","chain":"sol","disambiguated":true}`))
	}))
	defer srv.Close()

	r := newResolver(srv.URL, nil)
	asset, failure := r.Resolve(context.Background(), "usdc")
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if asset.Note != "resolved (disambiguated) via registry" {
		t.Fatalf("unexpected note: %q", asset.Note)
	}
}

func TestBareSymbolBackendOptionsAreCappedAndFormatted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"ambiguous symbol","options":[
			"usdc:sol",
			{"symbol":"usdc","chain":"eth"},
			{"chain":"base"},
			{"symbol":"usdc"},
			"usdc:polygon",
			"usdc:arbitrum",
			"usdc:bsc"
		]}`))
	}))
	defer srv.Close()

	r := newResolver(srv.URL, nil)
	_, failure := r.Resolve(context.Background(), "usdc")
	if failure == nil || failure.Reason != ReasonAmbiguous {
		t.Fatalf("expected ambiguous, got %+v", failure)
	}
	want := []string{"usdc:sol", "usdc:eth", "usdc:base", "usdc:?", "usdc:polygon"}
	if len(failure.Suggestions) != len(want) {
		t.Fatalf("expected options capped at 5, got %v", failure.Suggestions)
	}
	for i := range want {
		if failure.Suggestions[i] != want[i] {
			t.Fatalf("option %d = %q, want %q", i, failure.Suggestions[i], want[i])
		}
	}
}

func TestBareSymbolBackendMissIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"no such symbol"}`))
	}))
	defer srv.Close()

	r := newResolver(srv.URL, nil)
	_, failure := r.Resolve(context.Background(), "zzz")
	if failure == nil || failure.Reason != ReasonUnknown {
		t.Fatalf("expected unknown, got %+v", failure)
	}
	if failure.Message != "no such symbol" {
		t.Fatalf("backend message not preserved: %q", failure.Message)
	}
}

func TestBackendTransportFailureWithoutFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := newResolver(srv.URL, nil)
	_, failure := r.Resolve(context.Background(), "usdc")
	if failure == nil || failure.Reason != ReasonBackendError {
		t.Fatalf("expected backend_error, got %+v", failure)
	}
	if failure.Message == "" {
		t.Fatal("backend_error must carry the error text")
	}
}

func TestBackendTransportFailureFallsBackToDirectory(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	// The list feed is down too; the static safety net must still serve.
	listSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer listSrv.Close()

	dir := directory.New(httpx.New(time.Second, 0), listSrv.URL, nil, nil, nil)
	r := newResolver(backend.URL, dir)

	asset, failure := r.Resolve(context.Background(), "usdc")
	if failure != nil {
		t.Fatalf("expected directory fallback to resolve, got %+v", failure)
	}
	if asset.Address != directory.Static["USDC"] || asset.Chain != "sol" {
		t.Fatalf("unexpected fallback result: %+v", asset)
	}

	// Explicit non-sol chain hints skip the directory tier.
	_, failure = r.Resolve(context.Background(), "usdc:eth")
	if failure == nil || failure.Reason != ReasonBackendError {
		t.Fatalf("expected backend_error for non-sol chain, got %+v", failure)
	}
}

func TestInvalidAfterChainHint(t *testing.T) {
	r := newResolver("", nil)
	_, failure := r.Resolve(context.Background(), "sol:!!!")
	if failure == nil || failure.Reason != ReasonInvalid {
		t.Fatalf("expected invalid, got %+v", failure)
	}
	if failure.Message != "expected an address or symbol after the chain hint" {
		t.Fatalf("unexpected message: %q", failure.Message)
	}
}

func TestAddressyInputIsInvalidOtherwiseUnknown(t *testing.T) {
	r := newResolver("", nil)

	// Long alphanumeric run that fails strict address validation.
	_, failure := r.Resolve(context.Background(), "EPjFWdd5AufqSSqeM2qN1xzybap!!")
	if failure == nil || failure.Reason != ReasonInvalid {
		t.Fatalf("expected invalid for addressy input, got %+v", failure)
	}

	_, failure = r.Resolve(context.Background(), "!!!")
	if failure == nil || failure.Reason != ReasonUnknown {
		t.Fatalf("expected unknown for garbage, got %+v", failure)
	}
}
