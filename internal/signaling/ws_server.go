package signaling

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/origin"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/ratelimit"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/registry"
)

const (
	wsWriteWait = 1 * time.Second
	// wsSendWait bounds one queued data frame; a client that can't take it in
	// this long is dropped.
	wsSendWait = 10 * time.Second

	DefaultMaxMessageBytes   = 64 * 1024
	DefaultMessagesPerSecond = 50
	DefaultSendQueueBytes    = 1 << 20
)

type ServerConfig struct {
	Path              string
	AllowedOrigins    []string
	TrustProxyHeaders bool

	MaxMessageBytes   int64
	MessagesPerSecond int
	SendQueueBytes    int

	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Clock   ratelimit.Clock
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.Path == "" {
		c.Path = "/ws"
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.MessagesPerSecond <= 0 {
		c.MessagesPerSecond = DefaultMessagesPerSecond
	}
	if c.SendQueueBytes <= 0 {
		c.SendQueueBytes = DefaultSendQueueBytes
	}
	if int64(c.SendQueueBytes) < c.MaxMessageBytes {
		c.SendQueueBytes = int(c.MaxMessageBytes)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = ratelimit.RealClock{}
	}
	return c
}

// Server upgrades signaling requests to WebSockets and feeds their frames to
// a Hub.
//
// Each session gets an inbound size limit, a per-session frame rate limit,
// and a bounded outbound queue drained by its own writer goroutine.
type Server struct {
	hub      *Hub
	cfg      ServerConfig
	origins  atomic.Pointer[[]string]
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, cfg ServerConfig) (*Server, error) {
	if hub == nil {
		return nil, errors.New("signaling: hub is required")
	}
	cfg = cfg.withDefaults()
	s := &Server{hub: hub, cfg: cfg}
	s.SetAllowedOrigins(cfg.AllowedOrigins)
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if origin.Check(r, *s.origins.Load()) {
				return true
			}
			cfg.Logger.Debug("rejecting signaling upgrade", "origin", r.Header.Get("Origin"))
			return false
		},
	}
	return s, nil
}

// SetAllowedOrigins replaces the origin allow-list for new upgrades.
func (s *Server) SetAllowedOrigins(allowed []string) {
	copied := append([]string(nil), allowed...)
	s.origins.Store(&copied)
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET "+s.cfg.Path, s)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ws := newWSConn(conn, s.cfg.SendQueueBytes)
	go ws.writeLoop()
	defer ws.Close()

	id, err := s.hub.Open(ws, remoteIP(r, s.cfg.TrustProxyHeaders), r.UserAgent())
	if err != nil {
		ws.closeWith(websocket.CloseTryAgainLater, "server full")
		return
	}
	defer s.hub.Close(id)

	conn.SetPongHandler(func(string) error {
		s.hub.Pong(id)
		return nil
	})

	limiter := ratelimit.NewPerSecond(s.cfg.Clock, s.cfg.MessagesPerSecond)
	for {
		msgType, msgReader, err := conn.NextReader()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			ws.closeWith(websocket.CloseUnsupportedData, "expected text message")
			return
		}

		msg, err := readLimited(msgReader, s.cfg.MaxMessageBytes)
		if err != nil {
			if errors.Is(err, errMessageTooLarge) {
				s.cfg.Metrics.Inc(metrics.DropReasonTooLarge)
				ws.closeWith(websocket.CloseMessageTooBig, "message too large")
				return
			}
			if !isTimeout(err) {
				ws.closeWith(websocket.CloseInternalServerErr, "failed to read message")
			}
			return
		}
		if !limiter.Allow(1) {
			s.cfg.Metrics.Inc(metrics.DropReasonRateLimited)
			ws.closeWith(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		s.hub.HandleFrame(id, msg)
	}
}

// wsConn adapts a gorilla connection to registry.Conn. Data frames go through
// the send queue; control frames are written directly, which gorilla allows
// concurrently with the writer goroutine.
type wsConn struct {
	conn      *websocket.Conn
	queue     *sendQueue
	closed    atomic.Bool
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, queueBytes int) *wsConn {
	return &wsConn{conn: conn, queue: newSendQueue(queueBytes)}
}

func (c *wsConn) Send(frame []byte) error {
	if c.closed.Load() {
		return ErrSessionClosed
	}
	return c.queue.Enqueue(frame)
}

func (c *wsConn) Ping() error {
	if c.closed.Load() {
		return ErrSessionClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (c *wsConn) Close() error {
	c.closeWith(websocket.CloseNormalClosure, "")
	return nil
}

func (c *wsConn) Closed() bool {
	return c.closed.Load()
}

func (c *wsConn) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.queue.Close()
		writeClose(c.conn, code, reason)
		_ = c.conn.Close()
	})
}

func (c *wsConn) writeLoop() {
	for {
		frame, ok := c.queue.Dequeue()
		if !ok {
			return
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsSendWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.closed.Store(true)
			c.queue.Close()
			_ = c.conn.Close()
			return
		}
	}
}

var _ registry.Conn = (*wsConn)(nil)

func writeClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var errMessageTooLarge = errors.New("message too large")

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return nil, errMessageTooLarge
	}
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, errMessageTooLarge
	}
	return b, nil
}
