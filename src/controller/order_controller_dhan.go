package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"

	logger "github.com/sirupsen/logrus"

	"orderrouter/src/connectors"
	"orderrouter/src/mapper"
	"orderrouter/src/model"
	"orderrouter/src/repository"
)

const serviceName = "order_router"

// AccountSource yields fresh account connections for a scope. Connections
// are re-read at the start of every operation so out-of-band token
// refreshes are always picked up.
type AccountSource interface {
	ListConnections(ctx context.Context, scope repository.AccountScope) ([]model.AccountConnection, error)
}

// BrokerClient is the slice of the Dhan connector the controllers use.
type BrokerClient interface {
	PlaceOrder(ctx context.Context, token string, order *model.DhanOrderRequest) (*connectors.RawResponse, error)
	ModifyOrder(ctx context.Context, token, orderID string, payload map[string]interface{}) (*connectors.RawResponse, error)
	CancelOrder(ctx context.Context, token, orderID string) (*connectors.RawResponse, error)
	GetOrders(ctx context.Context, token string) ([]model.DhanOrder, error)
	GetPositions(ctx context.Context, token string) ([]model.DhanPosition, error)
	GetHoldings(ctx context.Context, token string) ([]map[string]interface{}, error)
	GetFundLimit(ctx context.Context, token string) (map[string]interface{}, error)
}

// GroupSource loads copy-trading groups for replication.
type GroupSource interface {
	FindByID(ctx context.Context, id uint) (*model.Group, error)
}

// DhanController fans batches of order instructions out to the Dhan API and
// folds per-account reads into consistent views.
type DhanController struct {
	accounts   AccountSource
	broker     BrokerClient
	groups     GroupSource
	exceptions ExceptionSink
	cfg        Config
}

func NewDhanController(
	accounts AccountSource,
	broker BrokerClient,
	groups GroupSource,
	exceptions ExceptionSink,
) *DhanController {
	return &DhanController{
		accounts:   accounts,
		broker:     broker,
		groups:     groups,
		exceptions: exceptions,
		cfg:        GetConfig(),
	}
}

// connectionsByID loads the scope's connections keyed by account id. A
// registry failure is logged and degrades to an empty map: every unit then
// reports "connection not found" instead of the whole batch aborting.
func (c *DhanController) connectionsByID(ctx context.Context, scope repository.AccountScope) map[string]model.AccountConnection {
	conns, err := c.accounts.ListConnections(ctx, scope)
	if err != nil {
		logger.WithError(err).Error("failed to list account connections")
		Capture(ctx, c.exceptions, serviceName, "controller", "accounts.ListConnections", "error", err, nil)
	}

	byID := make(map[string]model.AccountConnection, len(conns))
	for _, conn := range conns {
		byID[conn.AccountID] = conn
	}
	return byID
}

// DispatchOrders executes one batch of place instructions, one concurrent
// unit per instruction, and returns once every unit has completed or
// failed. Results carry no ordering guarantee; when two instructions share
// a key the later write wins.
func (c *DhanController) DispatchOrders(ctx context.Context, scope repository.AccountScope, batch []model.OrderInstruction) model.DispatchResult {
	if len(batch) == 0 {
		return model.DispatchResult{
			Status:         model.DispatchStatusEmpty,
			OrderResponses: map[string]model.OrderResult{},
		}
	}

	logger.WithField("batch_size", len(batch)).Info("dispatching order batch")

	byID := c.connectionsByID(ctx, scope)

	results := make(map[string]model.OrderResult, len(batch))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, c.cfg.MaxConcurrentOrders)

	// The lock is held only for the insert, never across the network call.
	store := func(key string, res model.OrderResult) {
		mu.Lock()
		results[key] = res
		mu.Unlock()
	}

	for _, instruction := range batch {
		instruction := instruction
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.WithField("key", instruction.ResultKey()).
						Errorf("dispatch unit panicked: %v", r)
					store(instruction.ResultKey(), model.OrderResult{
						Status:  model.ResultStatusError,
						Message: fmt.Sprintf("internal fault: %v", r),
					})
				}
			}()

			sem <- struct{}{}
			defer func() { <-sem }()

			key, res := c.placeOne(ctx, byID, instruction)
			store(key, res)
		}()
	}

	wg.Wait()

	return model.DispatchResult{
		Status:         model.DispatchStatusCompleted,
		OrderResponses: results,
	}
}

// placeOne runs the full pipeline for a single instruction: resolve
// connection, validate, build the wire payload, call the broker, parse.
// Every failure becomes this unit's own ERROR result.
func (c *DhanController) placeOne(ctx context.Context, byID map[string]model.AccountConnection, od model.OrderInstruction) (string, model.OrderResult) {
	key := od.ResultKey()

	conn, ok := byID[od.AccountID]
	if !ok {
		return key, model.OrderResult{Status: model.ResultStatusError, Message: "account connection not found"}
	}
	if !conn.HasToken() {
		return key, model.OrderResult{
			Status:  model.ResultStatusError,
			Message: "missing or expired session token, re-login required",
		}
	}

	orderType := mapper.NormalizeOrderType(od.OrderType)
	securityID := strings.TrimSpace(od.SecurityID)

	if securityID == "" {
		return key, model.OrderResult{Status: model.ResultStatusError, Message: "missing securityId"}
	}
	if mapper.NeedsPrice(orderType) && od.Price <= 0 {
		return key, model.OrderResult{
			Status:  model.ResultStatusError,
			Message: fmt.Sprintf("price required for %s order", orderType),
		}
	}
	if mapper.NeedsTrigger(orderType) && od.TriggerPrice <= 0 {
		return key, model.OrderResult{
			Status:  model.ResultStatusError,
			Message: fmt.Sprintf("trigger price required for %s order", orderType),
		}
	}

	validity := strings.ToUpper(strings.TrimSpace(od.Validity))
	if validity == "" {
		validity = "DAY"
	}

	correlationID := od.CorrelationID
	if correlationID == "" {
		correlationID = newCorrelationID("RTR", conn.AccountID)
	}

	price := 0.0
	if mapper.NeedsPrice(orderType) {
		price = od.Price
	}
	trigger := 0.0
	if mapper.NeedsTrigger(orderType) {
		trigger = od.TriggerPrice
	}

	req := &model.DhanOrderRequest{
		DhanClientID:      conn.AccountID,
		CorrelationID:     correlationID,
		TransactionType:   strings.ToUpper(strings.TrimSpace(od.Action)),
		ExchangeSegment:   mapper.MapExchangeSegment(od.Exchange),
		ProductType:       mapper.MapProductType(od.ProductType),
		OrderType:         orderType,
		Validity:          validity,
		SecurityID:        securityID,
		Quantity:          od.Quantity,
		DisclosedQuantity: od.DisclosedQuantity,
		Price:             price,
		TriggerPrice:      trigger,
		AfterMarketOrder:  od.AfterMarketOrder,
		AMOTime:           "OPEN",
	}

	logger.WithFields(map[string]interface{}{
		"key":         key,
		"account":     conn.AccountID,
		"security_id": securityID,
		"order_type":  orderType,
		"qty":         od.Quantity,
	}).Debug("placing order")

	resp, err := c.broker.PlaceOrder(ctx, conn.SessionToken, req)
	if err != nil {
		logger.WithField("key", key).WithError(err).Error("order placement failed")
		return key, model.OrderResult{Status: model.ResultStatusError, Message: err.Error()}
	}

	if !resp.Decoded() {
		return key, model.OrderResult{
			Status:  model.ResultStatusError,
			Message: fmt.Sprintf("invalid broker response (HTTP %d)", resp.StatusCode),
		}
	}

	status := resp.OrderStatus()
	if status == "" {
		status = strings.ToUpper(resp.StatusField())
	}
	if status == "" {
		status = model.ResultStatusError
	}

	msg := resp.ErrMessage()
	if msg == "" {
		if code := resp.ErrorCode(); code != "" {
			msg = connectors.GetErrorMsg(code)
		}
	}

	return key, model.OrderResult{
		Status:  status,
		Message: msg,
		OrderID: resp.OrderID(),
		Raw:     resp.Body,
	}
}

// ModifyOrders amends a batch of pending orders sequentially, returning one
// human-readable message per row in input order.
func (c *DhanController) ModifyOrders(ctx context.Context, scope repository.AccountScope, batch []model.ModifyInstruction) model.ModifyResult {
	messages := make([]string, 0, len(batch))
	if len(batch) == 0 {
		return model.ModifyResult{Message: messages}
	}

	byID := c.connectionsByID(ctx, scope)

	for _, row := range batch {
		messages = append(messages, c.modifyOne(ctx, byID, row))
	}

	return model.ModifyResult{Message: messages}
}

func (c *DhanController) modifyOne(ctx context.Context, byID map[string]model.AccountConnection, row model.ModifyInstruction) string {
	conn, found := byID[row.AccountID]

	name := strings.TrimSpace(row.Name)
	if name == "" && found {
		name = conn.DisplayName
	}
	if name == "" {
		name = "<unknown>"
	}

	orderID := strings.TrimSpace(row.OrderID)
	if orderID == "" || !found || !conn.HasToken() {
		return fmt.Sprintf("%s: missing order_id/account/token", name)
	}

	payload := mapper.BuildModifyPayload(row, conn.AccountID)

	// Explicit types still need their price/trigger on the wire.
	switch payload["orderType"] {
	case model.OrderTypeLimit:
		if _, ok := payload["price"]; !ok {
			return fmt.Sprintf("%s (%s): LIMIT requires price > 0", name, orderID)
		}
	case model.OrderTypeStopLoss:
		_, hasPrice := payload["price"]
		_, hasTrigger := payload["triggerPrice"]
		if !hasPrice || !hasTrigger {
			return fmt.Sprintf("%s (%s): STOP_LOSS requires price and trigger > 0", name, orderID)
		}
	case model.OrderTypeStopLossMarket:
		if _, ok := payload["triggerPrice"]; !ok {
			return fmt.Sprintf("%s (%s): STOP_LOSS_MARKET requires trigger > 0", name, orderID)
		}
	}

	resp, err := c.broker.ModifyOrder(ctx, conn.SessionToken, orderID, payload)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"account":  conn.AccountID,
			"order_id": orderID,
		}).WithError(err).Error("order modify failed")
		return fmt.Sprintf("%s (%s): %v", name, orderID, err)
	}

	if resp.Success2xx() && resp.ErrorType() == "" {
		return fmt.Sprintf("%s (%s): modified", name, orderID)
	}

	detail := resp.ErrMessage()
	if detail == "" {
		if code := resp.ErrorCode(); code != "" {
			detail = connectors.GetErrorMsg(code)
		}
	}
	if detail == "" {
		detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return fmt.Sprintf("%s (%s): %s", name, orderID, detail)
}

// CancelOrder cancels one pending order for one account. The success
// heuristic mirrors the broker's uneven cancel replies: an explicit success
// status, a CANCEL* order status, a "cancel ... sent/received/already/
// placed" message, or a bare 2xx with an empty body.
func (c *DhanController) CancelOrder(ctx context.Context, scope repository.AccountScope, accountID, orderID string) model.CancelResult {
	byID := c.connectionsByID(ctx, scope)

	conn, ok := byID[accountID]
	if !ok {
		return model.CancelResult{Status: model.CancelStatusError, Message: "account connection not found"}
	}
	if !conn.HasToken() {
		return model.CancelResult{Status: model.CancelStatusError, Message: "missing access token"}
	}

	resp, err := c.broker.CancelOrder(ctx, conn.SessionToken, orderID)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"account":  accountID,
			"order_id": orderID,
		}).WithError(err).Error("order cancel failed")
		return model.CancelResult{Status: model.CancelStatusError, Message: err.Error()}
	}

	statusL := resp.StatusField()
	orderStatus := resp.OrderStatus()
	msgL := strings.ToLower(resp.ErrMessage())

	cancelAcknowledged := strings.Contains(msgL, "cancel") &&
		(strings.Contains(msgL, "sent") || strings.Contains(msgL, "received") ||
			strings.Contains(msgL, "already") || strings.Contains(msgL, "placed"))

	emptyOK := (resp.StatusCode == 200 || resp.StatusCode == 202 || resp.StatusCode == 204) &&
		len(resp.Body) == 0

	if statusL == "success" || strings.HasPrefix(orderStatus, "CANCEL") || cancelAcknowledged || emptyOK {
		resultID := resp.OrderID()
		if resultID == "" {
			resultID = orderID
		}
		if orderStatus == "" {
			orderStatus = "CANCELLED"
		}
		return model.CancelResult{
			Status:      model.CancelStatusSuccess,
			OrderID:     resultID,
			OrderStatus: orderStatus,
			Raw:         resp.Body,
		}
	}

	detail := resp.ErrMessage()
	if detail == "" && resp.RawBody != "" {
		detail = resp.RawBody
	}
	if detail == "" {
		detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return model.CancelResult{
		Status:  model.CancelStatusError,
		Message: detail,
		Raw:     resp.Body,
	}
}
