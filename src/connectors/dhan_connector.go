// REST CLIENT FOR THE DHAN v2 TRADING API
// RESTY ONLY + INTERNAL RETRY ON READS
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"orderrouter/src/model"
)

const (
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 4 * time.Second
)

// RawResponse is the tolerant view of a broker reply used by mutating calls.
// Body is nil when the reply was empty or not decodable as a JSON object.
type RawResponse struct {
	StatusCode int
	Body       map[string]interface{}
	RawBody    string
}

// Decoded reports whether the broker returned a JSON object body.
func (r *RawResponse) Decoded() bool {
	return r.Body != nil
}

// Success2xx reports whether the HTTP status is in the 2xx range.
func (r *RawResponse) Success2xx() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Field returns the first non-empty value among the given body keys,
// rendered as a string. Numeric order ids come back as JSON numbers from
// some broker paths, so those are formatted too.
func (r *RawResponse) Field(keys ...string) string {
	for _, key := range keys {
		v, ok := r.Body[key]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			if s := strings.TrimSpace(val); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64)
		}
	}
	return ""
}

// OrderID returns the broker order id from the body, if any.
func (r *RawResponse) OrderID() string {
	return r.Field("orderId")
}

// OrderStatus returns the broker order status, upper-cased.
func (r *RawResponse) OrderStatus() string {
	return strings.ToUpper(r.Field("orderStatus", "order_status"))
}

// StatusField returns the body-level status field, lower-cased.
func (r *RawResponse) StatusField() string {
	return strings.ToLower(r.Field("status"))
}

// ErrMessage returns the broker's error text verbatim (message or
// errorMessage, whichever is set).
func (r *RawResponse) ErrMessage() string {
	return r.Field("message", "errorMessage")
}

// ErrorType returns the broker's errorType field, if present.
func (r *RawResponse) ErrorType() string {
	return r.Field("errorType")
}

// ErrorCode returns the broker's errorCode field, if present.
func (r *RawResponse) ErrorCode() string {
	return r.Field("errorCode")
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

// DhanConnector is the authenticated Dhan v2 REST client. The session token
// is per account and supplied per call, so one connector serves every
// account.
type DhanConnector struct {
	read  *resty.Client
	trade *resty.Client
}

func NewDhanConnector() *DhanConnector {
	return NewDhanConnectorWithConfig(GetConfig())
}

func NewDhanConnectorWithConfig(cfg Config) *DhanConnector {
	baseURL := cfg.DhanBaseURL
	if baseURL == "" {
		baseURL = "https://api.dhan.co/v2"
		logger.Warnf("No Dhan base URL provided, using default: %s", baseURL)
	}

	read := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.ReadTimeout).
		SetRetryCount(cfg.ReadRetryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	trade := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.TradeTimeout)

	return &DhanConnector{
		read:  read,
		trade: trade,
	}
}

func (c *DhanConnector) request(client *resty.Client, ctx context.Context, token string) *resty.Request {
	return client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("access-token", token)
}

func decodeRaw(resp *resty.Response) *RawResponse {
	raw := &RawResponse{
		StatusCode: resp.StatusCode(),
		RawBody:    string(resp.Body()),
	}

	if len(resp.Body()) == 0 {
		return raw
	}

	var body map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		logger.WithFields(map[string]interface{}{
			"status": resp.StatusCode(),
			"body":   snippet(resp.Body()),
		}).Debug("Dhan reply is not a JSON object, keeping raw text only")
		return raw
	}

	raw.Body = body
	return raw
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

// PlaceOrder submits a new order. Only transport failures surface as an
// error; broker rejections come back inside the RawResponse.
func (c *DhanConnector) PlaceOrder(ctx context.Context, token string, order *model.DhanOrderRequest) (*RawResponse, error) {
	resp, err := c.request(c.trade, ctx, token).
		SetBody(order).
		Post("/orders")
	if err != nil {
		return nil, err
	}
	return decodeRaw(resp), nil
}

// ModifyOrder amends a pending order. The payload is pre-built by the mapper
// so absent fields stay absent on the wire.
func (c *DhanConnector) ModifyOrder(ctx context.Context, token, orderID string, payload map[string]interface{}) (*RawResponse, error) {
	resp, err := c.request(c.trade, ctx, token).
		SetBody(payload).
		Put("/orders/" + orderID)
	if err != nil {
		return nil, err
	}
	return decodeRaw(resp), nil
}

// CancelOrder cancels a pending order.
func (c *DhanConnector) CancelOrder(ctx context.Context, token, orderID string) (*RawResponse, error) {
	resp, err := c.request(c.trade, ctx, token).
		Delete("/orders/" + orderID)
	if err != nil {
		return nil, err
	}
	return decodeRaw(resp), nil
}

// GetOrders returns the day's order book for one account.
func (c *DhanConnector) GetOrders(ctx context.Context, token string) ([]model.DhanOrder, error) {
	resp, err := c.request(c.read, ctx, token).Get("/orders")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), snippet(resp.Body()))
	}

	var orders []model.DhanOrder
	if err := json.Unmarshal(resp.Body(), &orders); err != nil {
		return nil, fmt.Errorf("invalid orders payload: %w", err)
	}
	return orders, nil
}

// GetPositions returns the live positions for one account.
func (c *DhanConnector) GetPositions(ctx context.Context, token string) ([]model.DhanPosition, error) {
	resp, err := c.request(c.read, ctx, token).Get("/positions")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), snippet(resp.Body()))
	}

	var positions []model.DhanPosition
	if err := json.Unmarshal(resp.Body(), &positions); err != nil {
		return nil, fmt.Errorf("invalid positions payload: %w", err)
	}
	return positions, nil
}

// GetHoldings returns raw holding rows. Rows stay untyped so the mapper's
// field-alias table owns key resolution.
func (c *DhanConnector) GetHoldings(ctx context.Context, token string) ([]map[string]interface{}, error) {
	resp, err := c.request(c.read, ctx, token).Get("/holdings")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), snippet(resp.Body()))
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("invalid holdings payload: %w", err)
	}
	return rows, nil
}

// GetFundLimit returns the raw fund-limit payload for one account.
func (c *DhanConnector) GetFundLimit(ctx context.Context, token string) (map[string]interface{}, error) {
	resp, err := c.request(c.read, ctx, token).Get("/fundlimit")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), snippet(resp.Body()))
	}

	var funds map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &funds); err != nil {
		return nil, fmt.Errorf("invalid fundlimit payload: %w", err)
	}
	return funds, nil
}

// CheckToken probes /profile to verify the session token is still valid.
// A non-200 reply means invalid, not an error.
func (c *DhanConnector) CheckToken(ctx context.Context, token string) (bool, error) {
	resp, err := c.request(c.read, ctx, token).Get("/profile")
	if err != nil {
		return false, err
	}
	return resp.StatusCode() == 200, nil
}
