package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderrouter/src/connectors"
	"orderrouter/src/model"
	"orderrouter/src/repository"
)

func TestClosePositions_ShortPositionBoughtBack(t *testing.T) {
	broker := &fakeBroker{
		positionsByToken: map[string][]model.DhanPosition{
			"tok-a": {
				{TradingSymbol: "SBIN", SecurityID: "3045", ExchangeSegment: "NSE_EQ", ProductType: "INTRADAY", NetQty: -50},
			},
		},
		placeFn: func(token string, order *model.DhanOrderRequest) (*connectors.RawResponse, error) {
			return &connectors.RawResponse{
				StatusCode: 200,
				Body:       map[string]interface{}{"orderId": "9", "orderStatus": "TRANSIT"},
			}, nil
		},
	}
	ctrl := newTestController(twoAccounts(), broker, nil)

	msgs := ctrl.ClosePositions(context.Background(), repository.AccountScope{}, []model.CloseSelection{
		{Name: "Alpha", Symbol: "SBIN"},
	})

	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "closed: Alpha - SBIN")

	placed := broker.placedRequests()
	require.Len(t, placed, 1)
	assert.Equal(t, "BUY", placed[0].TransactionType)
	assert.Equal(t, 50, placed[0].Quantity)
	assert.Equal(t, model.OrderTypeMarket, placed[0].OrderType)
	assert.Equal(t, "INTRADAY", placed[0].ProductType)
	assert.Equal(t, "3045", placed[0].SecurityID)
}

func TestClosePositions_FlatAndMissing(t *testing.T) {
	broker := &fakeBroker{
		positionsByToken: map[string][]model.DhanPosition{
			"tok-a": {
				{TradingSymbol: "TCS", SecurityID: "11536", NetQty: 0},
			},
		},
	}
	ctrl := newTestController(twoAccounts(), broker, nil)

	msgs := ctrl.ClosePositions(context.Background(), repository.AccountScope{}, []model.CloseSelection{
		{Name: "Alpha", Symbol: "TCS"},
		{Name: "Alpha", Symbol: "RELIANCE"},
		{Name: "Nobody", Symbol: "TCS"},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "already flat: Alpha - TCS", msgs[0])
	assert.Equal(t, "position not found: Alpha - RELIANCE", msgs[1])
	assert.Equal(t, "client not found for: Nobody", msgs[2])
	assert.Empty(t, broker.placedRequests(), "flat or missing positions must not trigger orders")
}

func TestClosePositions_AmbiguousSymbolRefused(t *testing.T) {
	broker := &fakeBroker{
		positionsByToken: map[string][]model.DhanPosition{
			"tok-a": {
				{TradingSymbol: "NIFTY24AUGFUT", SecurityID: "1", ProductType: "MARGIN", NetQty: 50},
				{TradingSymbol: "NIFTY24AUGFUT", SecurityID: "1", ProductType: "INTRADAY", NetQty: 25},
			},
		},
	}
	ctrl := newTestController(twoAccounts(), broker, nil)

	msgs := ctrl.ClosePositions(context.Background(), repository.AccountScope{}, []model.CloseSelection{
		{Name: "Alpha", Symbol: "NIFTY24AUGFUT"},
	})

	require.Len(t, msgs, 1)
	assert.Equal(t, "position not found: Alpha - NIFTY24AUGFUT", msgs[0])
	assert.Empty(t, broker.placedRequests())
}

func TestClosePositions_TokenlessAndFetchFailure(t *testing.T) {
	accounts := &fakeAccounts{conns: []model.AccountConnection{
		{AccountID: "1000001111", DisplayName: "Alpha", SessionToken: "tok-a"},
		{AccountID: "1000003333", DisplayName: "Stale"},
	}}
	broker := &fakeBroker{
		readErrByToken: map[string]error{"tok-a": errors.New("HTTP 500: upstream")},
	}
	ctrl := newTestController(accounts, broker, nil)

	msgs := ctrl.ClosePositions(context.Background(), repository.AccountScope{}, []model.CloseSelection{
		{Name: "Stale", Symbol: "TCS"},
		{Name: "Alpha", Symbol: "TCS"},
	})

	require.Len(t, msgs, 2)
	assert.Equal(t, "missing token/client for: Stale", msgs[0])
	assert.Contains(t, msgs[1], "fetch positions failed for Alpha")
}

func TestClosePositions_RefetchesPerSelection(t *testing.T) {
	// The broker reports the position flat once the first close has filled.
	// A duplicate selection must see that fresh state, not a stale snapshot.
	closed := false
	broker := &fakeBroker{}
	broker.positionsFn = func(token string) ([]model.DhanPosition, error) {
		qty := 10
		if closed {
			qty = 0
		}
		return []model.DhanPosition{
			{TradingSymbol: "SBIN", SecurityID: "3045", ExchangeSegment: "NSE_EQ", ProductType: "INTRADAY", NetQty: qty},
		}, nil
	}
	broker.placeFn = func(token string, order *model.DhanOrderRequest) (*connectors.RawResponse, error) {
		closed = true
		return &connectors.RawResponse{
			StatusCode: 200,
			Body:       map[string]interface{}{"orderId": "9", "orderStatus": "TRANSIT"},
		}, nil
	}
	ctrl := newTestController(twoAccounts(), broker, nil)

	msgs := ctrl.ClosePositions(context.Background(), repository.AccountScope{}, []model.CloseSelection{
		{Name: "Alpha", Symbol: "SBIN"},
		{Name: "Alpha", Symbol: "SBIN"},
	})

	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "closed: Alpha - SBIN")
	assert.Equal(t, "already flat: Alpha - SBIN", msgs[1])
	assert.Len(t, broker.placedRequests(), 1, "the second selection must not place a second order")
	assert.EqualValues(t, 2, broker.positionFetches, "each selection fetches live positions")
}

func TestClosePositions_SymbolMatchIsExact(t *testing.T) {
	broker := &fakeBroker{
		positionsByToken: map[string][]model.DhanPosition{
			"tok-a": {{TradingSymbol: "SBIN", SecurityID: "3045", NetQty: 10}},
		},
	}
	ctrl := newTestController(twoAccounts(), broker, nil)

	msgs := ctrl.ClosePositions(context.Background(), repository.AccountScope{}, []model.CloseSelection{
		{Name: "Alpha", Symbol: "sbin"},
	})

	require.Len(t, msgs, 1)
	assert.Equal(t, "position not found: Alpha - sbin", msgs[0])
	assert.Empty(t, broker.placedRequests())
}

func TestClosePositions_RejectedOrderReported(t *testing.T) {
	broker := &fakeBroker{
		positionsByToken: map[string][]model.DhanPosition{
			"tok-a": {{TradingSymbol: "TCS", SecurityID: "11536", NetQty: 10}},
		},
		placeFn: func(token string, order *model.DhanOrderRequest) (*connectors.RawResponse, error) {
			return &connectors.RawResponse{
				StatusCode: 200,
				Body: map[string]interface{}{
					"orderStatus":  "REJECTED",
					"errorMessage": "insufficient funds",
				},
			}, nil
		},
	}
	ctrl := newTestController(twoAccounts(), broker, nil)

	msgs := ctrl.ClosePositions(context.Background(), repository.AccountScope{}, []model.CloseSelection{
		{Name: "Alpha", Symbol: "TCS"},
	})

	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "close failed")
	assert.Contains(t, msgs[0], "insufficient funds")
}
