package preview

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/folio/internal/logging"
)

// ReloadPath is the websocket endpoint live pages connect to.
const ReloadPath = "/_folio/ws"

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// reloadScript reconnects after the server restarts and reloads the page on
// every "reload" message.
const reloadScript = `<script>
(function () {
  function connect() {
    var scheme = location.protocol === "https:" ? "wss://" : "ws://";
    var socket = new WebSocket(scheme + location.host + "` + ReloadPath + `");
    socket.onmessage = function (event) {
      if (event.data === "reload") {
        location.reload();
      }
    };
    socket.onclose = function () {
      setTimeout(connect, 1000);
    };
  }
  connect();
})();
</script>
`

// Hub tracks connected pages and tells them to reload.
type Hub struct {
	logger  logging.Logger
	clients map[*client]struct{}
	mutex   sync.RWMutex
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the connection until the page
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*", r.Host},
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.register(c)
	defer h.unregister(c)

	// Pages never send anything; reading only detects the close.
	ctx := conn.CloseRead(context.Background())
	h.writePump(ctx, c)
}

func (h *Hub) register(c *client) {
	h.mutex.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mutex.Unlock()
	h.logger.Debug(context.Background(), "live reload client connected", "clients", count)
}

func (h *Hub) unregister(c *client) {
	h.mutex.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mutex.Unlock()
	c.conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Reload tells every connected page to reload. Slow clients are skipped.
func (h *Hub) Reload() {
	h.broadcast([]byte("reload"))
}

func (h *Hub) broadcast(message []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
		}
	}
}

// closeAll disconnects every page. Hijacked connections are not closed by
// http.Server.Shutdown.
func (h *Hub) closeAll() {
	h.mutex.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mutex.RUnlock()
	for _, conn := range conns {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// Clients returns the number of connected pages.
func (h *Hub) Clients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// InjectReloadScript inserts the reload script before the last </body>, or
// appends it when the page has none.
func InjectReloadScript(page []byte) []byte {
	i := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if i < 0 {
		return append(page, reloadScript...)
	}
	out := make([]byte, 0, len(page)+len(reloadScript))
	out = append(out, page[:i]...)
	out = append(out, reloadScript...)
	return append(out, page[i:]...)
}
