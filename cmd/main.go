package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"orderrouter/src/connectors"
	"orderrouter/src/controller"
	"orderrouter/src/database"
	"orderrouter/src/model"
	"orderrouter/src/repository"
	"orderrouter/src/server"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Order Router CMD"
	app.Usage = "The order router command line interface"

	app.Commands = []cli.Command{
		serverCMD,
		squareoffCMD,
		summaryCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serverCMD = cli.Command{
		Name:        "server",
		Usage:       "run the HTTP gateway",
		Action:      serverAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the order routing HTTP gateway`,
	}
	squareoffCMD = cli.Command{
		Name:        "squareoff",
		Usage:       "close every open position across accounts",
		Action:      squareoffAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Square off all open positions with opposite market orders`,
	}
	summaryCMD = cli.Command{
		Name:        "summary",
		Usage:       "print holdings and funds summary",
		Action:      summaryAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Print the combined holdings and per-account funds summary`,
	}
)

func newController() (*controller.DhanController, error) {
	if err := database.InitMainDB(); err != nil {
		return nil, err
	}
	return controller.NewDhanController(
		repository.NewAccountRepository(),
		connectors.NewDhanConnector(),
		repository.NewGroupRepository(),
		repository.NewExceptionRepository(),
	), nil
}

func serverAction(_ *cli.Context) error {
	logrus.Info("Starting gateway server CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	server.StartServer(os.Getenv("SERVER_PORT"))
	return nil
}

func squareoffAction(_ *cli.Context) error {
	logrus.Info("Starting squareoff CMD")

	ctrl, err := newController()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	ctx := context.Background()
	scope := repository.AccountScope{}

	view := ctrl.GetPositions(ctx, scope)
	if len(view.Open) == 0 {
		logrus.Info("No open positions to close")
		return nil
	}

	selections := make([]model.CloseSelection, 0, len(view.Open))
	for _, pos := range view.Open {
		selections = append(selections, model.CloseSelection{
			Name:   pos.Name,
			Symbol: pos.Symbol,
		})
	}

	for _, msg := range ctrl.ClosePositions(ctx, scope, selections) {
		fmt.Println(msg)
	}
	return nil
}

func summaryAction(_ *cli.Context) error {
	logrus.Info("Starting summary CMD")

	ctrl, err := newController()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	view := ctrl.GetHoldingsAndFunds(context.Background(), repository.AccountScope{})

	fmt.Println("HOLDINGS")
	for _, h := range view.Holdings {
		fmt.Printf("  %-12s %-20s qty=%-8.0f buy=%-10.2f ltp=%-10.2f pnl=%.2f\n",
			h.Name, h.Symbol, h.Quantity, h.BuyAvg, h.LTP, h.PnL)
	}

	fmt.Println("SUMMARY")
	for _, s := range view.Summary {
		fmt.Printf("  %-12s capital=%-12.2f invested=%-12.2f pnl=%-10.2f current=%-12.2f margin=%-12.2f net_gain=%.2f\n",
			s.Name, s.Capital, s.Invested, s.PnL, s.CurrentValue, s.AvailableMargin, s.NetGain)
	}
	return nil
}
