package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"orderrouter/src/connectors"
	"orderrouter/src/controller"
	"orderrouter/src/handler"
	"orderrouter/src/repository"
)

func buildRouter(ctrl *controller.DhanController, groups *repository.GroupRepository, streamInterval time.Duration) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck error")
		}
	})

	r.Post("/orders/dispatch", handler.DispatchOrdersHandler(ctrl))
	r.Post("/orders/modify", handler.ModifyOrdersHandler(ctrl))
	r.Delete("/orders/{account}/{orderId}", handler.CancelOrderHandler(ctrl))
	r.Get("/orders", handler.OrdersHandler(ctrl))
	r.Get("/positions", handler.PositionsHandler(ctrl))
	r.Get("/holdings", handler.HoldingsHandler(ctrl))
	r.Post("/positions/close", handler.ClosePositionsHandler(ctrl))

	r.Post("/groups", handler.CreateGroupHandler(groups))
	r.Get("/groups", handler.ListGroupsHandler(groups))
	r.Post("/groups/{id}/replicate", handler.ReplicateOrderHandler(ctrl))

	r.Get("/ws/orders", handler.StreamOrdersHandler(ctrl, streamInterval))

	return r
}

func StartServer(port string) {
	cfg := GetConfig()
	if port == "" {
		port = cfg.Port
	}

	groups := repository.NewGroupRepository()
	ctrl := controller.NewDhanController(
		repository.NewAccountRepository(),
		connectors.NewDhanConnector(),
		groups,
		repository.NewExceptionRepository(),
	)

	r := buildRouter(ctrl, groups, cfg.StreamInterval)

	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
