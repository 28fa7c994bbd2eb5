package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"swapgrid/internal/fleet"
	"swapgrid/internal/http/middleware"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamReadTimeout  = 60 * time.Second
	streamPingInterval = 30 * time.Second
)

// AlertStreamHandler upgrades to a websocket and streams role-filtered alert
// events. Closing the socket unregisters the subscriber.
type AlertStreamHandler struct {
	coordinator *fleet.Coordinator
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// NewAlertStreamHandler builds handler.
func NewAlertStreamHandler(coordinator *fleet.Coordinator, logger *zap.Logger) *AlertStreamHandler {
	return &AlertStreamHandler{
		coordinator: coordinator,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleStream handles GET /alerts/stream.
func (h *AlertStreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	role, ok := middleware.RoleFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "role not resolved")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("alert stream upgrade failed", zap.Error(err))
		return
	}

	sub := h.coordinator.SubscribeAlerts(role)
	defer sub.Close()
	defer conn.Close()

	h.logger.Info("alert subscriber connected", zap.String("role", string(role)))

	// Reader only watches for the peer closing; pongs extend the deadline.
	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		return nil
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			h.logger.Info("alert subscriber disconnected", zap.String("role", string(role)))
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Info("alert stream write failed", zap.String("role", string(role)), zap.Error(err))
				return
			}
		}
	}
}
