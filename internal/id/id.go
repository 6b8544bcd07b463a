package id

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

var (
	chainPrefixPattern = regexp.MustCompile(`^([a-zA-Z0-9_-]+):(.*)$`)
	evmAddressPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	base58MintPattern  = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
	symbolPattern      = regexp.MustCompile(`^[A-Za-z]{2,10}$`)
	addressyPattern    = regexp.MustCompile(`[A-Za-z0-9]{20,}`)
)

// ChainHints is the fixed priority order used when suggesting explicit
// chain qualifiers for an ambiguous symbol. The first three entries feed
// the suggestion list. This is a popularity heuristic, not a verified
// map of where a given symbol actually exists.
var ChainHints = []string{"sol", "eth", "base", "polygon", "arbitrum", "bsc"}

// Kind classifies one free-form asset token before any resolution work.
type Kind int

const (
	KindNeither Kind = iota
	KindRawAddress
	KindAddressWithChain
	KindSymbolWithChain
	KindBareSymbol
)

// Input is the parsed shape of user-supplied asset text. Chain is set
// for every chain-prefixed input, including KindNeither ones where the
// text after the hint was unusable.
type Input struct {
	Kind    Kind
	Chain   string
	Address string
	Symbol  string
}

// ParseInput splits raw asset text into one of the five input shapes.
// It is pure string work; no lookups happen here.
func ParseInput(raw string) Input {
	input := strings.TrimSpace(raw)

	if m := chainPrefixPattern.FindStringSubmatch(input); m != nil {
		chain := strings.ToLower(m[1])
		rest := strings.TrimSpace(m[2])
		switch {
		case IsAddress(rest):
			return Input{Kind: KindAddressWithChain, Chain: chain, Address: rest}
		case LooksLikeSymbol(rest):
			return Input{Kind: KindSymbolWithChain, Chain: chain, Symbol: rest}
		default:
			return Input{Kind: KindNeither, Chain: chain}
		}
	}

	if IsAddress(input) {
		return Input{Kind: KindRawAddress, Address: input}
	}
	if LooksLikeSymbol(input) {
		return Input{Kind: KindBareSymbol, Symbol: input}
	}
	return Input{Kind: KindNeither}
}

// IsEVMAddress reports whether s is a 0x-prefixed 40-hex-digit address.
func IsEVMAddress(s string) bool {
	return evmAddressPattern.MatchString(s) && common.IsHexAddress(s)
}

// IsBase58Mint reports whether s has the account-style base58 shape
// (32-44 chars) and decodes cleanly under the Bitcoin base58 alphabet.
func IsBase58Mint(s string) bool {
	if !base58MintPattern.MatchString(s) {
		return false
	}
	decoded, err := base58.Decode(s)
	return err == nil && len(decoded) > 0
}

// IsAddress reports whether s matches any supported address shape.
func IsAddress(s string) bool {
	return IsEVMAddress(s) || IsBase58Mint(s)
}

// LooksLikeSymbol matches human tickers: 2-10 ASCII letters.
func LooksLikeSymbol(s string) bool {
	return symbolPattern.MatchString(s)
}

// AddressHeuristic flags text that resembles an address (a long
// alphanumeric run) but failed the strict shape checks. Used to pick
// "invalid" over "unknown" for near-miss pastes.
func AddressHeuristic(s string) bool {
	return addressyPattern.MatchString(s)
}

// ChecksumEVM returns the EIP-55 checksummed display form of an EVM
// address, or the input unchanged when it is not an EVM address.
func ChecksumEVM(s string) string {
	if !IsEVMAddress(s) {
		return s
	}
	return common.HexToAddress(s).Hex()
}

// SuggestChains builds up to n "symbol:chain" qualifiers for an
// ambiguous bare symbol, in fixed hint priority order.
func SuggestChains(symbol string, n int) []string {
	if n > len(ChainHints) {
		n = len(ChainHints)
	}
	sym := strings.ToLower(symbol)
	out := make([]string, 0, n)
	for _, chain := range ChainHints[:n] {
		out = append(out, sym+":"+chain)
	}
	return out
}
