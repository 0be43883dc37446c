package controller

import (
	"context"
	"sync"

	logger "github.com/sirupsen/logrus"

	"orderrouter/src/mapper"
	"orderrouter/src/model"
	"orderrouter/src/repository"
)

// forEachConnection runs fn once per token-holding connection, bounded by
// the read semaphore. Token-less connections are skipped with a warning.
// fn must do its own locking around shared state.
func (c *DhanController) forEachConnection(ctx context.Context, conns []model.AccountConnection, fn func(conn model.AccountConnection)) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, c.cfg.MaxConcurrentReads)

	for _, conn := range conns {
		if !conn.HasToken() {
			logger.WithField("account", conn.AccountID).
				Warn("Skipping account without session token")
			continue
		}

		conn := conn
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			fn(conn)
		}()
	}

	wg.Wait()
}

// GetOrders fetches today's order book from every reachable account and
// groups the rows into the canonical status buckets. An account whose fetch
// fails is logged and skipped; the view always contains all five buckets.
func (c *DhanController) GetOrders(ctx context.Context, scope repository.AccountScope) model.OrderBuckets {
	conns, err := c.accounts.ListConnections(ctx, scope)
	if err != nil {
		logger.WithError(err).Error("failed to list account connections")
		Capture(ctx, c.exceptions, serviceName, "controller", "GetOrders", "error", err, nil)
		return model.NewOrderBuckets()
	}

	buckets := model.NewOrderBuckets()
	var mu sync.Mutex

	c.forEachConnection(ctx, conns, func(conn model.AccountConnection) {
		orders, err := c.broker.GetOrders(ctx, conn.SessionToken)
		if err != nil {
			logger.WithField("account", conn.AccountID).WithError(err).
				Error("order book fetch failed")
			Capture(ctx, c.exceptions, serviceName, "controller", "GetOrders", "warning", err,
				map[string]interface{}{"account": conn.AccountID})
			return
		}

		mu.Lock()
		defer mu.Unlock()
		for _, o := range orders {
			bucket := mapper.StatusBucket(o.OrderStatus)
			buckets[bucket] = append(buckets[bucket], model.OrderRow{
				Name:            conn.DisplayName,
				Symbol:          o.TradingSymbol,
				TransactionType: o.TransactionType,
				Quantity:        o.Quantity,
				Price:           o.Price,
				Status:          o.OrderStatus,
				OrderID:         o.OrderID,
			})
		}
	})

	return buckets
}

// GetPositions fetches every account's position book and splits the rows
// into open (net qty != 0) and closed.
func (c *DhanController) GetPositions(ctx context.Context, scope repository.AccountScope) model.PositionsView {
	view := model.PositionsView{
		Open:   []model.PositionRow{},
		Closed: []model.PositionRow{},
	}

	conns, err := c.accounts.ListConnections(ctx, scope)
	if err != nil {
		logger.WithError(err).Error("failed to list account connections")
		Capture(ctx, c.exceptions, serviceName, "controller", "GetPositions", "error", err, nil)
		return view
	}

	var mu sync.Mutex

	c.forEachConnection(ctx, conns, func(conn model.AccountConnection) {
		positions, err := c.broker.GetPositions(ctx, conn.SessionToken)
		if err != nil {
			logger.WithField("account", conn.AccountID).WithError(err).
				Error("position book fetch failed")
			Capture(ctx, c.exceptions, serviceName, "controller", "GetPositions", "warning", err,
				map[string]interface{}{"account": conn.AccountID})
			return
		}

		mu.Lock()
		defer mu.Unlock()
		for _, p := range positions {
			row := model.PositionRow{
				Name:      conn.DisplayName,
				Symbol:    p.TradingSymbol,
				Quantity:  p.NetQty,
				BuyAvg:    round2(p.BuyAvg),
				SellAvg:   round2(p.SellAvg),
				NetProfit: round2(p.RealizedProfit + p.UnrealizedProfit),
			}
			if p.NetQty != 0 {
				view.Open = append(view.Open, row)
			} else {
				view.Closed = append(view.Closed, row)
			}
		}
	})

	return view
}

// GetHoldingsAndFunds fetches holdings and fund limits from every account
// and builds the combined holdings table plus a per-account summary.
// Holdings with non-positive quantity are excluded; a failed funds fetch
// degrades that account's fund figures to zero instead of dropping it.
func (c *DhanController) GetHoldingsAndFunds(ctx context.Context, scope repository.AccountScope) model.HoldingsView {
	view := model.HoldingsView{
		Holdings: []model.HoldingRow{},
		Summary:  []model.AccountSummary{},
	}

	conns, err := c.accounts.ListConnections(ctx, scope)
	if err != nil {
		logger.WithError(err).Error("failed to list account connections")
		Capture(ctx, c.exceptions, serviceName, "controller", "GetHoldingsAndFunds", "error", err, nil)
		return view
	}

	var mu sync.Mutex

	c.forEachConnection(ctx, conns, func(conn model.AccountConnection) {
		summary, rows, ok := c.accountHoldings(ctx, conn)
		if !ok {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		view.Holdings = append(view.Holdings, rows...)
		view.Summary = append(view.Summary, summary)
	})

	return view
}

// accountHoldings builds one account's holdings rows and summary. Returns
// ok=false only when the holdings fetch itself fails; an account with zero
// holdings still produces a summary.
func (c *DhanController) accountHoldings(ctx context.Context, conn model.AccountConnection) (model.AccountSummary, []model.HoldingRow, bool) {
	holdings, err := c.broker.GetHoldings(ctx, conn.SessionToken)
	if err != nil {
		logger.WithField("account", conn.AccountID).WithError(err).
			Error("holdings fetch failed")
		Capture(ctx, c.exceptions, serviceName, "controller", "GetHoldingsAndFunds", "warning", err,
			map[string]interface{}{"account": conn.AccountID})
		return model.AccountSummary{}, nil, false
	}

	rows := make([]model.HoldingRow, 0, len(holdings))
	var invested, totalPnl float64

	for _, h := range holdings {
		qty := mapper.FloatField(h, "quantity")
		if qty <= 0 {
			continue
		}
		buyAvg := mapper.FloatField(h, "buy_avg")
		ltp := mapper.FloatField(h, "ltp")

		pnl := round2((ltp - buyAvg) * qty)
		invested += qty * buyAvg
		totalPnl += pnl

		rows = append(rows, model.HoldingRow{
			Name:     conn.DisplayName,
			Symbol:   mapper.StringField(h, "symbol"),
			Quantity: qty,
			BuyAvg:   buyAvg,
			LTP:      ltp,
			PnL:      pnl,
		})
	}

	funds, err := c.broker.GetFundLimit(ctx, conn.SessionToken)
	if err != nil {
		logger.WithField("account", conn.AccountID).WithError(err).
			Warn("fund limit fetch failed; reporting zero balances")
		funds = map[string]interface{}{}
	}

	availableBalance := mapper.FloatField(funds, "available_balance")
	currentValue := invested + totalPnl
	availableMargin := availableBalance

	summary := model.AccountSummary{
		Name:                conn.DisplayName,
		Capital:             round2(conn.CapitalBaseline),
		Invested:            round2(invested),
		PnL:                 round2(totalPnl),
		CurrentValue:        round2(currentValue),
		AvailableMargin:     round2(availableMargin),
		AvailableBalance:    round2(availableBalance),
		WithdrawableBalance: round2(mapper.FloatField(funds, "withdrawable_balance")),
		UtilizedAmount:      round2(mapper.FloatField(funds, "utilized_amount")),
		SODLimit:            round2(mapper.FloatField(funds, "sod_limit")),
		CollateralAmount:    round2(mapper.FloatField(funds, "collateral_amount")),
		ReceivableAmount:    round2(mapper.FloatField(funds, "receivable_amount")),
		BlockedPayoutAmount: round2(mapper.FloatField(funds, "blocked_payout_amount")),
		NetGain:             round2((currentValue + availableMargin) - conn.CapitalBaseline),
	}

	return summary, rows, true
}
