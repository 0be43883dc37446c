package controller

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"orderrouter/src/model"
	"orderrouter/src/repository"
)

// ReplicateOrder fans a single source instruction out across every account
// in a copy-trading group: the source account first with the quantity as
// given, then each member with its quantity scaled by the member's
// multiplier. Members whose scaled quantity rounds to zero or below are
// skipped.
func (c *DhanController) ReplicateOrder(ctx context.Context, scope repository.AccountScope, groupID uint, src model.OrderInstruction) (model.DispatchResult, error) {
	group, err := c.groups.FindByID(ctx, groupID)
	if err != nil {
		Capture(ctx, c.exceptions, serviceName, "controller", "ReplicateOrder", "error", err,
			map[string]interface{}{"group_id": groupID})
		return model.DispatchResult{}, fmt.Errorf("load group %d: %w", groupID, err)
	}
	if group == nil {
		return model.DispatchResult{}, fmt.Errorf("group %d not found", groupID)
	}

	batch := make([]model.OrderInstruction, 0, len(group.Members)+1)

	source := src
	source.AccountID = group.SourceAccountID
	batch = append(batch, source)

	for _, member := range group.Members {
		qty := scaleQuantity(src.Quantity, member.Multiplier)
		if qty <= 0 {
			logger.WithFields(map[string]interface{}{
				"group":      group.Name,
				"account":    member.AccountID,
				"multiplier": member.Multiplier,
			}).Warn("Skipping group member with non-positive scaled quantity")
			continue
		}

		replica := src
		replica.AccountID = member.AccountID
		replica.Quantity = qty
		batch = append(batch, replica)
	}

	logger.WithFields(map[string]interface{}{
		"group":      group.Name,
		"source":     group.SourceAccountID,
		"batch_size": len(batch),
	}).Info("replicating order across copy group")

	return c.DispatchOrders(ctx, scope, batch), nil
}

// scaleQuantity multiplies a source quantity by a member multiplier and
// rounds to the nearest whole lot.
func scaleQuantity(qty int, multiplier float64) int {
	scaled := decimal.NewFromInt(int64(qty)).
		Mul(decimal.NewFromFloat(multiplier)).
		Round(0)
	return int(scaled.IntPart())
}
