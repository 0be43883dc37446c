package controller

import (
	"context"
	"fmt"
	"strings"

	logger "github.com/sirupsen/logrus"

	"orderrouter/src/model"
	"orderrouter/src/repository"
)

// acceptedOrderStatuses are the broker statuses that count as a square-off
// order having been taken in.
var acceptedOrderStatuses = map[string]bool{
	"SUCCESS":  true,
	"TRANSIT":  true,
	"PENDING":  true,
	"SENT":     true,
	"RECEIVED": true,
	"PLACED":   true,
	"OPEN":     true,
}

// ClosePositions squares off the selected open positions with opposite
// market orders. Positions are re-fetched for every selection, never taken
// from a cached view. Returns one message per selection, in input order.
func (c *DhanController) ClosePositions(ctx context.Context, scope repository.AccountScope, selections []model.CloseSelection) []string {
	messages := make([]string, 0, len(selections))
	if len(selections) == 0 {
		return messages
	}

	conns, err := c.accounts.ListConnections(ctx, scope)
	if err != nil {
		logger.WithError(err).Error("failed to list account connections")
		Capture(ctx, c.exceptions, serviceName, "controller", "ClosePositions", "error", err, nil)
	}

	// Display names are not guaranteed unique; the first connection with a
	// given name wins.
	byName := make(map[string]model.AccountConnection, len(conns))
	for _, conn := range conns {
		if _, seen := byName[conn.DisplayName]; !seen {
			byName[conn.DisplayName] = conn
		}
	}

	for _, sel := range selections {
		messages = append(messages, c.closeOne(ctx, byName, sel))
	}

	return messages
}

func (c *DhanController) closeOne(
	ctx context.Context,
	byName map[string]model.AccountConnection,
	sel model.CloseSelection,
) string {

	conn, ok := byName[sel.Name]
	if !ok {
		return fmt.Sprintf("client not found for: %s", sel.Name)
	}
	if !conn.HasToken() {
		return fmt.Sprintf("missing token/client for: %s", sel.Name)
	}

	// Fetched fresh for every selection: an earlier close in the same batch
	// may already have changed this account's book.
	positions, err := c.broker.GetPositions(ctx, conn.SessionToken)
	if err != nil {
		logger.WithField("account", conn.AccountID).WithError(err).
			Error("position fetch failed during square-off")
		return fmt.Sprintf("fetch positions failed for %s: %v", sel.Name, err)
	}

	var matches []model.DhanPosition
	for _, p := range positions {
		if strings.TrimSpace(p.TradingSymbol) == strings.TrimSpace(sel.Symbol) {
			matches = append(matches, p)
		}
	}
	if len(matches) != 1 {
		return fmt.Sprintf("position not found: %s - %s", sel.Name, sel.Symbol)
	}

	pos := matches[0]
	if pos.NetQty == 0 {
		return fmt.Sprintf("already flat: %s - %s", sel.Name, sel.Symbol)
	}

	action := "SELL"
	qty := pos.NetQty
	if qty < 0 {
		action = "BUY"
		qty = -qty
	}

	product := strings.ToUpper(strings.TrimSpace(pos.ProductType))
	if product == "" {
		product = "CNC"
	}

	req := &model.DhanOrderRequest{
		DhanClientID:    conn.AccountID,
		CorrelationID:   newCorrelationID("SQ", conn.AccountID),
		TransactionType: action,
		ExchangeSegment: pos.ExchangeSegment,
		ProductType:     product,
		OrderType:       model.OrderTypeMarket,
		Validity:        "DAY",
		SecurityID:      pos.SecurityID,
		Quantity:        qty,
		AMOTime:         "OPEN",
	}

	logger.WithFields(map[string]interface{}{
		"account": conn.AccountID,
		"symbol":  pos.TradingSymbol,
		"action":  action,
		"qty":     qty,
	}).Info("squaring off position")

	resp, err := c.broker.PlaceOrder(ctx, conn.SessionToken, req)
	if err != nil {
		return fmt.Sprintf("close failed: %s - %s: %v", sel.Name, sel.Symbol, err)
	}

	orderID := resp.OrderID()
	status := resp.OrderStatus()
	if resp.Success2xx() && (orderID != "" || acceptedOrderStatuses[status]) {
		return fmt.Sprintf("closed: %s - %s (%s %d)", sel.Name, sel.Symbol, action, qty)
	}

	detail := resp.ErrMessage()
	if detail == "" {
		detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return fmt.Sprintf("close failed: %s - %s: %s", sel.Name, sel.Symbol, detail)
}
