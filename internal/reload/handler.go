package reload

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/conneroisu/devserve/internal/logging"
)

// Transport names.
const (
	TransportAuto      = "auto"
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// Handler opens reload subscriptions over HTTP.
type Handler struct {
	hub       *Hub
	transport string
	logger    logging.Logger
}

// NewHandler creates a handler. transport is one of the Transport constants;
// "auto" picks WebSocket for upgrade requests and SSE otherwise.
func NewHandler(hub *Hub, transport string, logger logging.Logger) *Handler {
	if transport == "" {
		transport = TransportAuto
	}
	return &Handler{hub: hub, transport: transport, logger: logger.WithComponent("reload")}
}

// ServeHTTP subscribes the requester and blocks until it goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case h.transport == TransportWebSocket,
		h.transport == TransportAuto && IsWebSocketUpgrade(r):
		h.serveWebSocket(w, r)
	default:
		h.serveSSE(w, r)
	}
}

func (h *Handler) serveSSE(w http.ResponseWriter, r *http.Request) {
	conn, err := NewSSEConn(w)
	if err != nil {
		h.logger.Error(r.Context(), err, "Cannot open event stream")
		return
	}
	_ = h.hub.Subscribe(r.Context(), conn)
}

func (h *Handler) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	// CloseRead discards client frames and cancels ctx once the peer closes.
	ctx := conn.CloseRead(r.Context())
	if err := h.hub.Subscribe(ctx, NewWebSocketConn(conn)); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// IsWebSocketUpgrade reports whether r asks to switch to the WebSocket
// protocol.
func IsWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// ClientScript returns the browser snippet that subscribes to path and
// reloads the page on every notification.
func ClientScript(path, transport string) string {
	quoted := strconv.Quote(path)
	if transport == TransportWebSocket {
		return `(() => {
  const proto = location.protocol === "https:" ? "wss:" : "ws:";
  const ws = new WebSocket(proto + "//" + location.host + ` + quoted + `);
  ws.onmessage = () => location.reload();
})();`
	}
	return `(() => {
  const es = new EventSource(` + quoted + `);
  es.onmessage = () => location.reload();
})();`
}
