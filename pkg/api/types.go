package api

// AssetInfo describes one tradeable asset.
type AssetInfo struct {
	Asset    string `json:"asset"` // "native" or token address
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals uint8  `json:"decimals,omitempty"`
	Total    int64  `json:"total"` // sum held across all accounts
}

// BalanceInfo is one (asset, balance) entry for an account.
type BalanceInfo struct {
	Asset   string `json:"asset"`
	Balance int64  `json:"balance"`
}

// OrderInfo is the API view of an order plus its lifecycle flags.
type OrderInfo struct {
	ID            int64  `json:"id"`
	Creator       string `json:"creator"`
	AssetWanted   string `json:"assetWanted"`
	AmountWanted  int64  `json:"amountWanted"`
	AssetOffered  string `json:"assetOffered"`
	AmountOffered int64  `json:"amountOffered"`
	CreatedAt     int64  `json:"createdAt"`
	Filled        bool   `json:"filled"`
	Cancelled     bool   `json:"cancelled"`
}

// ChainStatus reports substrate progress.
type ChainStatus struct {
	Height      int64  `json:"height"`
	AppHash     string `json:"appHash"`
	MempoolSize int    `json:"mempoolSize"`
	FeeAccount  string `json:"feeAccount"`
	FeePercent  int64  `json:"feePercent"`
}

// SubmitTxResponse acknowledges a mempool admission.
type SubmitTxResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is the client -> server subscription message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// WSEvent wraps an exchange event for the wire.
type WSEvent struct {
	Channel string `json:"channel"`
	Kind    string `json:"kind"`
	Data    any    `json:"data"`
}
