package handler

import (
	"net/http"
	"slices"
	"time"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	streamBuffer   = 64
)

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return false
			}
			if len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
}

// authStreamHandler pushes state changes, navigations and notices of the
// browser session. The current state is sent first.
func authStreamHandler(allowedOrigins []string, logger *zap.Logger) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		p := ProviderFromContext(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("auth stream upgrade failed", zap.Error(err))
			return
		}

		events, cancel := p.Events.Subscribe(streamBuffer)
		done := make(chan struct{})
		go streamReadPump(conn, done, logger)
		streamWritePump(conn, p, events, done, logger)
		cancel()
	}
}

// streamReadPump only services control frames; client messages are ignored.
func streamReadPump(conn *websocket.Conn, done chan<- struct{}, logger *zap.Logger) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("auth stream closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

func streamWritePump(conn *websocket.Conn, p *service.Provider, events <-chan domain.ClientEvent, done <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	write := func(ev domain.ClientEvent) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return false
		}
		if err := conn.WriteJSON(ev); err != nil {
			logger.Debug("auth stream write failed", zap.Error(err))
			return false
		}
		return true
	}

	st := p.Snapshot()
	if !write(domain.ClientEvent{Type: domain.ClientEventState, State: &st}) {
		return
	}

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session ended"))
				return
			}
			if !write(ev) {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
