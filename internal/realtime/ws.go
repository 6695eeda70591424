package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ecomstack/storefront/pkg/logger"
)

// Client actions accepted over the socket.
const (
	ActionSubscribe      = "subscribe"
	ActionUnsubscribe    = "unsubscribe"
	ActionSubscribeAll   = "subscribe_all"
	ActionUnsubscribeAll = "unsubscribe_all"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 512
)

// clientFrame is an inbound control frame from the browser.
type clientFrame struct {
	Action    string `json:"action"`
	ProductID string `json:"product_id,omitempty"`
}

// WSHandler upgrades HTTP requests to websocket connections and bridges them
// onto the hub.
type WSHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates the websocket endpoint handler. Origin checking is
// delegated to the CORS layer in front of the router.
func NewWSHandler(hub *Hub, log *slog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: log,
	}
}

// ServeHTTP upgrades the connection and runs the read and write pumps.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
		)
		return
	}

	client := h.hub.Register(logger.UserIDFromContext(r.Context()))

	go h.writePump(conn, client)
	h.readPump(conn, client)
}

// readPump consumes control frames until the connection drops, then
// unregisters the client which also stops the write pump.
func (h *WSHandler) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		h.hub.Unregister(client)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		switch frame.Action {
		case ActionSubscribe:
			if frame.ProductID != "" {
				client.Subscribe(frame.ProductID)
			}
		case ActionUnsubscribe:
			if frame.ProductID != "" {
				client.Unsubscribe(frame.ProductID)
			}
		case ActionSubscribeAll:
			client.SubscribeAll()
		case ActionUnsubscribeAll:
			client.UnsubscribeAll()
		}
	}
}

// writePump drains the client's queue onto the wire and keeps the connection
// alive with pings. It exits when the queue is closed or a write fails.
func (h *WSHandler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.Receive():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
