package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The gateway sits behind the operator's own front end.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	defaultPushInterval = 5 * time.Second
	writeWait           = 10 * time.Second
)

// StreamOrdersHandler upgrades to a websocket and pushes the re-aggregated
// order buckets every interval until the client disconnects. Each frame is
// a fresh aggregation, not a diff.
func StreamOrdersHandler(reader orderBookReader, interval time.Duration) http.HandlerFunc {
	if interval <= 0 {
		interval = defaultPushInterval
	}

	return func(w http.ResponseWriter, r *http.Request) {
		scope := scopeFrom(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Error("websocket upgrade failed")
			return
		}
		defer conn.Close()

		// Reader goroutine only to detect the client going away.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		push := func() bool {
			buckets := reader.GetOrders(r.Context(), scope)
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(buckets); err != nil {
				logger.WithError(err).Debug("websocket client gone")
				return false
			}
			return true
		}

		if !push() {
			return
		}

		for {
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if !push() {
					return
				}
			}
		}
	}
}
