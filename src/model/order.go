package model

// Canonical order types accepted by the Dhan v2 API.
const (
	OrderTypeLimit          = "LIMIT"
	OrderTypeMarket         = "MARKET"
	OrderTypeStopLoss       = "STOP_LOSS"
	OrderTypeStopLossMarket = "STOP_LOSS_MARKET"
)

const (
	ResultStatusError = "ERROR"

	DispatchStatusCompleted = "completed"
	DispatchStatusEmpty     = "empty"

	CancelStatusSuccess = "success"
	CancelStatusError   = "error"
)

// OrderInstruction is one caller-supplied place request for one brokerage
// account. Immutable once handed to the dispatcher.
type OrderInstruction struct {
	AccountID         string  `json:"client_id"`
	Tag               string  `json:"tag,omitempty"`
	Name              string  `json:"name,omitempty"`
	Action            string  `json:"action"` // BUY | SELL
	OrderType         string  `json:"ordertype"`
	Exchange          string  `json:"exchange"`
	ProductType       string  `json:"producttype"`
	Validity          string  `json:"orderduration"`
	SecurityID        string  `json:"security_id"`
	Quantity          int     `json:"qty"`
	Price             float64 `json:"price"`
	TriggerPrice      float64 `json:"triggerprice"`
	DisclosedQuantity int     `json:"disclosedquantity"`
	AfterMarketOrder  bool    `json:"amo"`
	CorrelationID     string  `json:"correlation_id,omitempty"`
}

// ResultKey is the unique key for this instruction inside one batch:
// "tag:account_id" when tagged, plain account id otherwise.
func (o OrderInstruction) ResultKey() string {
	if o.Tag != "" {
		return o.Tag + ":" + o.AccountID
	}
	return o.AccountID
}

// OrderResult is the outcome of one instruction. Status is either the
// broker-native status or ERROR for anything that failed before or during
// the remote call.
type OrderResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	OrderID string                 `json:"orderId,omitempty"`
	Raw     map[string]interface{} `json:"raw,omitempty"`
}

// DispatchResult is what DispatchOrders hands back to the caller: one entry
// per batch key, regardless of how many units failed.
type DispatchResult struct {
	Status         string                 `json:"status"`
	OrderResponses map[string]OrderResult `json:"order_responses"`
}

// ModifyInstruction is one caller-supplied modify request. OrderType may be
// blank (or NO_CHANGE) to keep the existing type on the broker; price or
// trigger alone imply a type, resolved by the mapper.
type ModifyInstruction struct {
	AccountID    string  `json:"client_id"`
	Name         string  `json:"name,omitempty"`
	OrderID      string  `json:"order_id"`
	OrderType    string  `json:"orderType,omitempty"`
	Quantity     int     `json:"quantity,omitempty"`
	Price        float64 `json:"price,omitempty"`
	TriggerPrice float64 `json:"triggerPrice,omitempty"`
	Validity     string  `json:"validity,omitempty"`
	LegName      string  `json:"legName,omitempty"`
}

// ModifyResult carries one human-readable message per modify row, in input
// order.
type ModifyResult struct {
	Message []string `json:"message"`
}

// CancelResult is the outcome of a single cancel request.
type CancelResult struct {
	Status      string                 `json:"status"`
	OrderID     string                 `json:"orderId,omitempty"`
	OrderStatus string                 `json:"orderStatus,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Raw         map[string]interface{} `json:"raw,omitempty"`
}
