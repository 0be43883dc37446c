package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"orderrouter/src/auth"
	"orderrouter/src/model"
	"orderrouter/src/repository"
)

type groupStore interface {
	Create(ctx context.Context, group *model.Group) error
	ListByUser(ctx context.Context, userID uint) ([]model.Group, error)
}

type orderReplicator interface {
	ReplicateOrder(ctx context.Context, scope repository.AccountScope, groupID uint, src model.OrderInstruction) (model.DispatchResult, error)
}

// CreateGroupHandler persists a new copy-trading group for the
// authenticated user.
func CreateGroupHandler(store groupStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var group model.Group
		if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
			http.Error(w, "invalid group payload", http.StatusBadRequest)
			return
		}
		if group.Name == "" || group.SourceAccountID == "" {
			http.Error(w, "name and source_account_id required", http.StatusBadRequest)
			return
		}
		group.UserID = user.ID

		if err := store.Create(r.Context(), &group); err != nil {
			logger.WithError(err).Error("failed to create group")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, group)
	}
}

// ListGroupsHandler lists the authenticated user's copy-trading groups.
func ListGroupsHandler(store groupStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		groups, err := store.ListByUser(r.Context(), user.ID)
		if err != nil {
			logger.WithError(err).Error("failed to list groups")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, groups)
	}
}

// ReplicateOrderHandler fans one source instruction across a copy group.
func ReplicateOrderHandler(replicator orderReplicator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid group id", http.StatusBadRequest)
			return
		}

		var src model.OrderInstruction
		if err := json.NewDecoder(r.Body).Decode(&src); err != nil {
			http.Error(w, "invalid order payload", http.StatusBadRequest)
			return
		}

		res, err := replicator.ReplicateOrder(r.Context(), scopeFrom(r), uint(id), src)
		if err != nil {
			logger.WithError(err).Error("failed to replicate order")
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}
