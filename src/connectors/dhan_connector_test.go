package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"orderrouter/src/model"
)

func testConnector(baseURL string) *DhanConnector {
	return NewDhanConnectorWithConfig(Config{
		DhanBaseURL:    baseURL,
		ReadTimeout:    2 * time.Second,
		TradeTimeout:   2 * time.Second,
		ReadRetryCount: 0,
	})
}

func TestPlaceOrderSendsTokenAndPayload(t *testing.T) {
	var gotToken string
	var gotBody model.DhanOrderRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotToken = r.Header.Get("access-token")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"orderId":"112111182045","orderStatus":"TRANSIT"}`))
	}))
	defer server.Close()

	connector := testConnector(server.URL)
	resp, err := connector.PlaceOrder(context.Background(), "tok-123", &model.DhanOrderRequest{
		DhanClientID: "1000000003",
		SecurityID:   "11536",
		OrderType:    "MARKET",
		Quantity:     5,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotToken != "tok-123" {
		t.Fatalf("expected access-token header tok-123, got %q", gotToken)
	}
	if gotBody.SecurityID != "11536" || gotBody.Quantity != 5 {
		t.Fatalf("unexpected payload forwarded: %+v", gotBody)
	}
	if resp.OrderID() != "112111182045" {
		t.Fatalf("expected orderId 112111182045, got %q", resp.OrderID())
	}
	if resp.OrderStatus() != "TRANSIT" {
		t.Fatalf("expected orderStatus TRANSIT, got %q", resp.OrderStatus())
	}
}

func TestCancelOrderToleratesEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/orders/112111182045" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	connector := testConnector(server.URL)
	resp, err := connector.CancelOrder(context.Background(), "tok", "112111182045")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", resp.StatusCode)
	}
	if resp.Decoded() {
		t.Fatal("empty body must not decode to an object")
	}
}

func TestDecodeRawNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>upstream down</html>"))
	}))
	defer server.Close()

	connector := testConnector(server.URL)
	resp, err := connector.PlaceOrder(context.Background(), "tok", &model.DhanOrderRequest{})
	if err != nil {
		t.Fatalf("expected transport success, got %v", err)
	}

	if resp.Decoded() {
		t.Fatal("HTML body must not decode")
	}
	if resp.Success2xx() {
		t.Fatal("502 must not count as success")
	}
	if resp.RawBody == "" {
		t.Fatal("raw body text must be preserved for error messages")
	}
}

func TestGetOrdersNon200IsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errorCode":"DH-901","errorMessage":"token expired"}`))
	}))
	defer server.Close()

	connector := testConnector(server.URL)
	if _, err := connector.GetOrders(context.Background(), "stale"); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestGetHoldingsKeepsRawKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/holdings":
			_, _ = w.Write([]byte(`[{"tradingSymbol":"TCS","availabelBalance":0,"totalQty":12,"avgCostPrice":3100.5}]`))
		case "/fundlimit":
			_, _ = w.Write([]byte(`{"availabelBalance":50000.25,"sodLimit":60000}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	connector := testConnector(server.URL)

	rows, err := connector.GetHoldings(context.Background(), "tok")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rows) != 1 || rows[0]["tradingSymbol"] != "TCS" {
		t.Fatalf("unexpected holdings rows: %+v", rows)
	}

	funds, err := connector.GetFundLimit(context.Background(), "tok")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if funds["availabelBalance"] != 50000.25 {
		t.Fatalf("broker keys must pass through untouched, got %+v", funds)
	}
}

func TestCheckToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("access-token") == "good" {
			_, _ = w.Write([]byte(`{"dhanClientId":"1000000003"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	connector := testConnector(server.URL)

	ok, err := connector.CheckToken(context.Background(), "good")
	if err != nil || !ok {
		t.Fatalf("expected valid token, got ok=%v err=%v", ok, err)
	}

	ok, err = connector.CheckToken(context.Background(), "bad")
	if err != nil {
		t.Fatalf("invalid token is not a transport error, got %v", err)
	}
	if ok {
		t.Fatal("expected invalid token")
	}
}
