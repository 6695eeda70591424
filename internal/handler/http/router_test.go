package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomstack/storefront/internal/realtime"
	"github.com/ecomstack/storefront/pkg/health"
	"github.com/ecomstack/storefront/pkg/middleware"
)

func setupRouter(t *testing.T) (*httptest.Server, *realtime.Hub) {
	t.Helper()
	log := testLogger()
	hub := realtime.NewHub(log)

	router := NewRouter(RouterDeps{
		Logger:   log,
		Health:   health.NewHandler(),
		Stock:    NewStockHandler(nil, log),
		Checkout: NewCheckoutHandler(nil, log),
		Orders:   NewOrderHandler(nil, log),
		Coupons:  NewCouponHandler(nil, log),
		Alerts:   NewAlertHandler(nil, log),
		WS:       realtime.NewWSHandler(hub, log),
		CORS:     middleware.DefaultCORSConfig(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, hub
}

// The upgrade must succeed through the full middleware chain, not just against
// the bare handler; the logging and metrics wrappers sit between the server
// and the hijacked connection.
func TestRouter_WebsocketUpgradeThroughMiddleware(t *testing.T) {
	srv, hub := setupRouter(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action":     "subscribe",
		"product_id": "prod-1",
	}))

	// The subscription lands asynchronously via the read pump.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount("prod-1") == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastStockUpdate(context.Background(), realtime.StockUpdate{
		ProductID: "prod-1",
		Size:      "M",
		Quantity:  3,
		InStock:   true,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg realtime.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, realtime.MessageStockUpdate, msg.Type)

	var update realtime.StockUpdate
	require.NoError(t, json.Unmarshal(msg.Data, &update))
	assert.Equal(t, "prod-1", update.ProductID)
	assert.Equal(t, 3, update.Quantity)
}

func TestRouter_Liveness(t *testing.T) {
	srv, _ := setupRouter(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
