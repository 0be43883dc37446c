package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"orderrouter/src/auth"
	"orderrouter/src/model"
	"orderrouter/src/repository"
)

type orderDispatcher interface {
	DispatchOrders(ctx context.Context, scope repository.AccountScope, batch []model.OrderInstruction) model.DispatchResult
}

type orderModifier interface {
	ModifyOrders(ctx context.Context, scope repository.AccountScope, batch []model.ModifyInstruction) model.ModifyResult
}

type orderCanceller interface {
	CancelOrder(ctx context.Context, scope repository.AccountScope, accountID, orderID string) model.CancelResult
}

// scopeFrom narrows registry queries to the authenticated user when one is
// on the request context. Without a user the gateway serves every stored
// account, which is the single-operator deployment mode.
func scopeFrom(r *http.Request) repository.AccountScope {
	if user, ok := auth.GetUserFromContext(r.Context()); ok && user != nil {
		return repository.AccountScope{UserID: &user.ID}
	}
	return repository.AccountScope{}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

// DispatchOrdersHandler returns a handler that fans one order batch out
// across accounts and replies with the per-key result map.
func DispatchOrdersHandler(dispatcher orderDispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var batch []model.OrderInstruction
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			// Non-list input is treated like an empty batch, not a fault.
			logger.WithError(err).Warn("dispatch body is not an order list")
			writeJSON(w, http.StatusOK, model.DispatchResult{
				Status:         model.DispatchStatusEmpty,
				OrderResponses: map[string]model.OrderResult{},
			})
			return
		}

		res := dispatcher.DispatchOrders(r.Context(), scopeFrom(r), batch)
		writeJSON(w, http.StatusOK, res)
	}
}

// ModifyOrdersHandler returns a handler that amends a batch of pending
// orders and replies with one message per row.
func ModifyOrdersHandler(modifier orderModifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var batch []model.ModifyInstruction
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, "invalid modify batch", http.StatusBadRequest)
			return
		}

		res := modifier.ModifyOrders(r.Context(), scopeFrom(r), batch)
		writeJSON(w, http.StatusOK, res)
	}
}

// CancelOrderHandler returns a handler that cancels one pending order for
// one account.
func CancelOrderHandler(canceller orderCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "account")
		orderID := chi.URLParam(r, "orderId")
		if accountID == "" || orderID == "" {
			http.Error(w, "account and orderId required", http.StatusBadRequest)
			return
		}

		res := canceller.CancelOrder(r.Context(), scopeFrom(r), accountID, orderID)
		status := http.StatusOK
		if res.Status != model.CancelStatusSuccess {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, res)
	}
}
