package model

// Canonical order-status buckets. Downstream UIs key off these exact names.
const (
	BucketPending   = "pending"
	BucketTraded    = "traded"
	BucketRejected  = "rejected"
	BucketCancelled = "cancelled"
	BucketOthers    = "others"
)

// StatusBuckets lists every bucket in display order.
var StatusBuckets = []string{
	BucketPending,
	BucketTraded,
	BucketRejected,
	BucketCancelled,
	BucketOthers,
}

// OrderRow is one normalized order in a bucket view.
type OrderRow struct {
	Name            string  `json:"name"`
	Symbol          string  `json:"symbol"`
	TransactionType string  `json:"transaction_type"`
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
	Status          string  `json:"status"`
	OrderID         string  `json:"order_id"`
}

// OrderBuckets maps every canonical bucket to its rows. All five buckets are
// always present, empty or not.
type OrderBuckets map[string][]OrderRow

// NewOrderBuckets returns a fully-populated empty bucket map.
func NewOrderBuckets() OrderBuckets {
	b := make(OrderBuckets, len(StatusBuckets))
	for _, k := range StatusBuckets {
		b[k] = []OrderRow{}
	}
	return b
}

// PositionRow is one normalized position. NetProfit is realized plus
// unrealized profit as reported by the broker.
type PositionRow struct {
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Quantity  int     `json:"quantity"`
	BuyAvg    float64 `json:"buy_avg"`
	SellAvg   float64 `json:"sell_avg"`
	NetProfit float64 `json:"net_profit"`
}

// PositionsView splits positions into open (net qty != 0) and closed.
type PositionsView struct {
	Open   []PositionRow `json:"open"`
	Closed []PositionRow `json:"closed"`
}

// HoldingRow is one delivery holding with quantity > 0.
type HoldingRow struct {
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	BuyAvg   float64 `json:"buy_avg"`
	LTP      float64 `json:"ltp"`
	PnL      float64 `json:"pnl"`
}

// AccountSummary aggregates one account's holdings and fund limits.
// AvailableMargin is the broker's available balance figure; the remaining
// fund fields are carried so a UI can show them alongside.
type AccountSummary struct {
	Name                string  `json:"name"`
	Capital             float64 `json:"capital"`
	Invested            float64 `json:"invested"`
	PnL                 float64 `json:"pnl"`
	CurrentValue        float64 `json:"current_value"`
	AvailableMargin     float64 `json:"available_margin"`
	AvailableBalance    float64 `json:"available_balance"`
	WithdrawableBalance float64 `json:"withdrawable_balance"`
	UtilizedAmount      float64 `json:"utilized_amount"`
	SODLimit            float64 `json:"sod_limit"`
	CollateralAmount    float64 `json:"collateral_amount"`
	ReceivableAmount    float64 `json:"receivable_amount"`
	BlockedPayoutAmount float64 `json:"blocked_payout_amount"`
	NetGain             float64 `json:"net_gain"`
}

// HoldingsView is the combined holdings + per-account summary response.
type HoldingsView struct {
	Holdings []HoldingRow     `json:"holdings"`
	Summary  []AccountSummary `json:"summary"`
}

// CloseSelection names one open position to square off.
type CloseSelection struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}
