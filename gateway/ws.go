package gateway

import (
	"chatwire/domain"
	"chatwire/domain/event"
	"chatwire/errors"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Tuning parameters for the socket pumps.
const (
	writeWait      = 10 * time.Second    // time allowed to write a frame to the peer
	pongWait       = 20 * time.Second    // time allowed to read the next pong from the peer
	pingInterval   = (pongWait * 9) / 10 // send pings with this period, must be below pongWait
	maxMessageSize = 512                 // inbound frames carry no payload, keep them small
	egressSize     = 256                 // per-connection outbound buffer
)

var (
	errEgressFull = stderrors.New("egress buffer full")
	errConnClosed = stderrors.New("connection closed")

	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Origin policy is enforced by the deployment proxy, tokens gate the handshake here.
		CheckOrigin: func(*http.Request) bool { return true },
	}
)

// wsConn adapts one websocket to the push side of the system. Frames are
// queued on a bounded egress channel and serialized by the write pump, the
// only goroutine allowed to write to the socket.
type wsConn struct {
	id       string
	identity domain.Identity
	sock     *websocket.Conn
	egress   chan event.Event
	done     chan struct{}
	once     sync.Once
	log      *slog.Logger
}

func newWSConn(identity domain.Identity, sock *websocket.Conn, log *slog.Logger) *wsConn {
	return &wsConn{
		id:       uuid.New().String(),
		identity: identity,
		sock:     sock,
		egress:   make(chan event.Event, egressSize),
		done:     make(chan struct{}),
		log:      log,
	}
}

func (c *wsConn) ID() string         { return c.id }
func (c *wsConn) IdentityID() string { return c.identity.ID }

// Push enqueues a frame for the write pump. It never blocks: a full buffer
// means the peer stopped draining and the frame is reported lost.
func (c *wsConn) Push(e event.Event) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.egress <- e:
		return nil
	default:
		return errEgressFull
	}
}

func (c *wsConn) Close() {
	c.once.Do(func() { close(c.done) })
}

// readPump keeps the read side alive for pong handling and notices peer
// disconnects. Data frames from the peer are discarded, pushes are one-way.
func (c *wsConn) readPump(teardown func()) {
	defer func() {
		teardown()
		c.Close()
		_ = c.sock.Close()
	}()

	c.sock.SetReadLimit(maxMessageSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.sock.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("Peer closed the socket", "connection", c.id)
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				c.log.Debug("Peer stopped answering pings", "connection", c.id)
				return
			}
			c.log.Debug("Read failed", "connection", c.id, "error", err)
			return
		}
	}
}

// writePump owns all socket writes: queued frames and the ping keepalive.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.sock.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.sock.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case e := <-c.egress:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteJSON(e); err != nil {
				c.log.Debug("Write failed", "connection", c.id, "error", err)
				return
			}
		case <-ticker.C:
			if err := c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// ServeWS authenticates the handshake, upgrades and hands the connection to
// the registry. A bad token is rejected before the registry is ever touched.
// Browsers cannot set headers on websocket dials, so the token travels as a
// query parameter.
func (h *Handler) ServeWS(c *gin.Context) {
	identity, err := h.authenticator.Authenticate(c.Request.Context(), c.Query("token"))
	if err != nil {
		c.AbortWithStatusJSON(errors.MapToHTTPStatus(err), gin.H{"error": errors.ErrUnauthenticated.Error()})
		return
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		h.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	conn := newWSConn(identity, sock, h.log)
	h.registry.Register(conn)
	h.stats.ConnOpened()
	h.log.Info("Websocket connected", "user", identity.ID, "connection", conn.ID())

	go conn.writePump()
	go conn.readPump(func() {
		h.registry.Unregister(identity.ID, conn.ID())
		h.stats.ConnClosed()
		h.log.Info("Websocket disconnected", "user", identity.ID, "connection", conn.ID())
	})
}
