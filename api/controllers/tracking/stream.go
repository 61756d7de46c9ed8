// Package tracking serves the live order status websocket.
package tracking

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	internalorders "github.com/brewline/brewline-backend/internal/orders"
	internaltracking "github.com/brewline/brewline-backend/internal/tracking"
	"github.com/brewline/brewline-backend/pkg/auth"
	"github.com/brewline/brewline-backend/pkg/config"
	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/logger"
)

type orderLookup interface {
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
}

type subscriber interface {
	Subscribe(orderID int64, ch internaltracking.Channel)
	Unsubscribe(orderID int64, ch internaltracking.Channel)
}

// StreamParams groups the websocket endpoint dependencies.
type StreamParams struct {
	Orders         orderLookup
	Registry       subscriber
	JWT            config.JWTConfig
	SendBuffer     int
	IdleTimeout    time.Duration
	AllowedOrigins []string
	Logger         *logger.Logger
}

// Stream upgrades the request and subscribes the connection to one order.
// The token travels in the query string because browsers cannot set headers
// on websocket handshakes. Rejections close with 1008 after the upgrade.
func Stream(params StreamParams) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(params.AllowedOrigins),
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "ws.upgrade_failed")
			return
		}

		orderID, userID, reason := authorize(r, params)
		if reason != "" {
			logg.Warn(logg.WithFields(r.Context(), map[string]any{
				"order_id": chi.URLParam(r, "orderId"),
				"reason":   reason,
			}), "ws.rejected")
			reject(conn, reason)
			return
		}

		ctx := logg.WithUserID(logg.WithOrderID(r.Context(), orderID), userID)
		ch := newWSChannel(conn, params.SendBuffer)
		params.Registry.Subscribe(orderID, ch)
		logg.Debug(ctx, "ws.subscribed")

		go ch.writePump()
		readLoop(conn, ch, params.IdleTimeout)

		params.Registry.Unsubscribe(orderID, ch)
		ch.close()
		logg.Debug(ctx, "ws.unsubscribed")
	}
}

// authorize resolves the order and caller. A non-empty reason means the
// connection must be refused.
func authorize(r *http.Request, params StreamParams) (int64, int64, string) {
	orderID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "orderId")), 10, 64)
	if err != nil || orderID <= 0 {
		return 0, 0, "invalid order id"
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		return 0, 0, "missing token"
	}
	claims, err := auth.ParseAccessToken(params.JWT, token)
	if err != nil {
		return 0, 0, "invalid token"
	}
	order, err := params.Orders.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, internalorders.ErrOrderNotFound) {
			return 0, 0, "order not found"
		}
		return 0, 0, "order lookup failed"
	}
	if order.UserID != claims.UserID && !claims.IsStaff() {
		return 0, 0, "not allowed"
	}
	return orderID, claims.UserID, ""
}

// readLoop drains inbound frames until the client goes away. With an idle
// timeout set, every frame or pong pushes the read deadline forward.
func readLoop(conn *websocket.Conn, ch *wsChannel, idle time.Duration) {
	conn.SetReadLimit(maxFrameSize)
	extend := func() {
		if idle > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(idle))
		}
	}
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		select {
		case <-ch.done:
			return
		default:
		}
		extend()
	}
}

func reject(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
