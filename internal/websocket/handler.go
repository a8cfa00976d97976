package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SoCo-NP/SoCo/pkg/interfaces"
)

// ConnHandler runs one relay session over a connection until it ends.
// *hub.Hub satisfies it.
type ConnHandler interface {
	HandleConn(conn interfaces.Conn) error
}

// HandlerOptions configures the gateway
type HandlerOptions struct {
	Connection   ConnectionOptions
	PingInterval time.Duration // 0 disables heartbeats
	// CheckOrigin overrides the default allow-all origin policy
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades HTTP requests and hands the websocket to the relay
// ARCHITECTURAL DISCOVERY: The gateway has no routing of its own; a websocket
// session is a relay session, so every rule applies unchanged
type Handler struct {
	target   ConnHandler
	opts     HandlerOptions
	upgrader websocket.Upgrader
}

// NewHandler creates a gateway feeding target
func NewHandler(target ConnHandler, opts HandlerOptions) (*Handler, error) {
	if target == nil {
		return nil, ErrNilTarget
	}

	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		// FUNCTIONAL DISCOVERY: Classroom tooling is served from arbitrary local origins
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Handler{
		target: target,
		opts:   opts,
		upgrader: websocket.Upgrader{
			CheckOrigin:      checkOrigin,
			HandshakeTimeout: 10 * time.Second,
		},
	}, nil
}

// ServeHTTP upgrades the request and blocks until the relay session ends
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		log.Printf("WebSocket upgrade failed: remote=%s error=%v", r.RemoteAddr, err)
		return
	}

	wsConn := NewConnection(conn, h.opts.Connection)
	defer wsConn.Close()

	if h.opts.PingInterval > 0 {
		if err := wsConn.Heartbeat(h.opts.PingInterval); err != nil {
			log.Printf("WebSocket heartbeat setup failed: remote=%s error=%v", wsConn.RemoteAddr(), err)
			return
		}
	}

	log.Printf("WebSocket session opened: remote=%s", wsConn.RemoteAddr())
	if err := h.target.HandleConn(wsConn); err != nil {
		log.Printf("WebSocket session ended with error: remote=%s error=%v", wsConn.RemoteAddr(), err)
		return
	}
	log.Printf("WebSocket session closed: remote=%s", wsConn.RemoteAddr())
}
