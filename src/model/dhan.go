package model

// DhanOrderRequest is the Dhan v2 place-order wire payload.
type DhanOrderRequest struct {
	DhanClientID      string  `json:"dhanClientId"`
	CorrelationID     string  `json:"correlationId"`
	TransactionType   string  `json:"transactionType"`
	ExchangeSegment   string  `json:"exchangeSegment"`
	ProductType       string  `json:"productType"`
	OrderType         string  `json:"orderType"`
	Validity          string  `json:"validity"`
	SecurityID        string  `json:"securityId"`
	Quantity          int     `json:"quantity"`
	DisclosedQuantity int     `json:"disclosedQuantity"`
	Price             float64 `json:"price"`
	TriggerPrice      float64 `json:"triggerPrice"`
	AfterMarketOrder  bool    `json:"afterMarketOrder"`
	AMOTime           string  `json:"amoTime"`
	BOProfitValue     float64 `json:"boProfitValue"`
	BOStopLossValue   float64 `json:"boStopLossValue"`
}

// DhanOrder is one row of GET /v2/orders.
type DhanOrder struct {
	OrderID         string  `json:"orderId"`
	OrderStatus     string  `json:"orderStatus"`
	TradingSymbol   string  `json:"tradingSymbol"`
	TransactionType string  `json:"transactionType"`
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
}

// DhanPosition is one row of GET /v2/positions.
type DhanPosition struct {
	TradingSymbol    string  `json:"tradingSymbol"`
	SecurityID       string  `json:"securityId"`
	ExchangeSegment  string  `json:"exchangeSegment"`
	ProductType      string  `json:"productType"`
	NetQty           int     `json:"netQty"`
	BuyAvg           float64 `json:"buyAvg"`
	SellAvg          float64 `json:"sellAvg"`
	RealizedProfit   float64 `json:"realizedProfit"`
	UnrealizedProfit float64 `json:"unrealizedProfit"`
}
