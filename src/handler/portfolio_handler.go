package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"orderrouter/src/model"
	"orderrouter/src/repository"
)

type orderBookReader interface {
	GetOrders(ctx context.Context, scope repository.AccountScope) model.OrderBuckets
}

type positionReader interface {
	GetPositions(ctx context.Context, scope repository.AccountScope) model.PositionsView
}

type holdingsReader interface {
	GetHoldingsAndFunds(ctx context.Context, scope repository.AccountScope) model.HoldingsView
}

type positionCloser interface {
	ClosePositions(ctx context.Context, scope repository.AccountScope, selections []model.CloseSelection) []string
}

// OrdersHandler returns the bucketed order book across every account.
func OrdersHandler(reader orderBookReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reader.GetOrders(r.Context(), scopeFrom(r)))
	}
}

// PositionsHandler returns the open/closed position view across accounts.
func PositionsHandler(reader positionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reader.GetPositions(r.Context(), scopeFrom(r)))
	}
}

// HoldingsHandler returns the combined holdings table plus per-account
// summaries.
func HoldingsHandler(reader holdingsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reader.GetHoldingsAndFunds(r.Context(), scopeFrom(r)))
	}
}

// ClosePositionsHandler squares off the selected open positions and replies
// with one message per selection.
func ClosePositionsHandler(closer positionCloser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var selections []model.CloseSelection
		if err := json.NewDecoder(r.Body).Decode(&selections); err != nil {
			http.Error(w, "invalid close selection", http.StatusBadRequest)
			return
		}

		messages := closer.ClosePositions(r.Context(), scopeFrom(r), selections)
		writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
	}
}
