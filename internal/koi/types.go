package koi

// Response shapes for the trading backend. All success bodies carry an
// "ok" flag; a false flag on a 2xx response is a logical failure and is
// surfaced by the gateway as a backend error.

type QuoteRisk struct {
	Honeypot bool   `json:"honeypot,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type QuoteResponse struct {
	OK        bool       `json:"ok"`
	EstOut    float64    `json:"estOut"`
	ImpactPct float64    `json:"impactPct,omitempty"`
	Hops      int        `json:"hops,omitempty"`
	Risk      *QuoteRisk `json:"risk,omitempty"`
	Source    string     `json:"source,omitempty"`
}

type SwapResponse struct {
	OK           bool    `json:"ok"`
	TxID         string  `json:"txId,omitempty"`
	EstimatedOut float64 `json:"estimatedOut,omitempty"`
}

// CadenceSwapRequest is the compatibility payload for the cadence
// trader route.
type CadenceSwapRequest struct {
	PublicWallet string  `json:"public_wallet,omitempty"`
	SellToken    string  `json:"sellToken"`
	BuyToken     string  `json:"buyToken"`
	Blockchain   string  `json:"blockchain"`
	Amount       float64 `json:"amount"`
	DryRun       bool    `json:"dryRun,omitempty"`
	SlippageBps  int     `json:"slippageBps,omitempty"`
	PriorityFee  float64 `json:"priorityFee,omitempty"`
}

type CadenceSwapResponse struct {
	OK                   bool    `json:"ok"`
	TransactionSignature string  `json:"transactionSignature,omitempty"`
	Tx                   string  `json:"tx,omitempty"`
	EstOut               float64 `json:"estOut,omitempty"`
}

type WalletCreateResponse struct {
	OK       bool   `json:"ok"`
	WalletID string `json:"walletId"`
	Address  string `json:"address,omitempty"`
	Chain    string `json:"chain,omitempty"`
}

type WalletAddressResponse struct {
	OK       bool   `json:"ok"`
	Address  string `json:"address"`
	Chain    string `json:"chain"`
	WalletID string `json:"walletId,omitempty"`
}

type Balance struct {
	Symbol  string `json:"symbol"`
	Chain   string `json:"chain"`
	Amount  string `json:"amount"`
	Address string `json:"address,omitempty"`
}

type WalletBalanceResponse struct {
	OK       bool      `json:"ok"`
	Balances []Balance `json:"balances"`
}

type Algo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type AlgosListResponse struct {
	OK    bool   `json:"ok"`
	Algos []Algo `json:"algos"`
}

type Allocation struct {
	AlgoID  string  `json:"algoId"`
	Percent float64 `json:"percent"`
}

type AllocationsResponse struct {
	OK          bool         `json:"ok"`
	Allocations []Allocation `json:"allocations"`
}

type AllocationChangeResponse struct {
	OK           bool   `json:"ok"`
	AllocationID string `json:"allocationId,omitempty"`
	AlgoCode     string `json:"algoCode,omitempty"`
	Status       string `json:"status,omitempty"`
}
