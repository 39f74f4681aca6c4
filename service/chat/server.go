package chat

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/harbor-im/harbor/logger"
	"github.com/harbor-im/harbor/service/storage"
	"github.com/harbor-im/harbor/tools/errs"
	"github.com/harbor-im/harbor/tools/ids"
	"github.com/harbor-im/harbor/tools/safe"
)

// Options is the gateway's compiled-in policy surface, populated from config
// in main.
type Options struct {
	AllowedOrigin    string        // empty allows any origin
	HandshakeTimeout time.Duration // bound on token arrival + verification
	SendQueueSize    int
	PingInterval     time.Duration
	PongTimeout      time.Duration
	NodeID           string
}

func (o *Options) norm() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 64
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 75 * time.Second
	}
}

// Server orchestrates the connection lifecycle: handshake, event handling,
// disconnect cleanup. One goroutine per connection runs the read loop; a
// second (WritePump) owns the socket's write side.
type Server struct {
	opts     Options
	verifier CredentialVerifier
	reg      *Registry
	router   *Router
	presence *Presence
	limiter  *RateLimiter
	upgrader websocket.Upgrader
}

func NewServer(opts Options, verifier CredentialVerifier, reg *Registry, router *Router, presence *Presence, limiter *RateLimiter) *Server {
	opts.norm()
	s := &Server{
		opts:     opts,
		verifier: verifier,
		reg:      reg,
		router:   router,
		presence: presence,
		limiter:  limiter,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.opts.AllowedOrigin == "" {
		return true
	}
	return strings.EqualFold(r.Header.Get("Origin"), s.opts.AllowedOrigin)
}

// HandleWS upgrades the request and drives the connection through
// Connecting → Authenticated → Active → Closed.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade failed: %v", err)
		return
	}

	client := NewClient(ids.GenerateString(), ws, s.opts.SendQueueSize, s.opts.PingInterval)

	// Connecting: resolve identity before anything else. Auth failures are
	// terminal; write the typed signal directly (WritePump is not running
	// yet) and force-close.
	user, cerr := s.handshake(c.Request, ws)
	if cerr != nil {
		logger.Infof("[ws] auth failed conn=%s code=%s", client.ConnID, cerr.Code)
		_ = client.WriteNow(BuildAuthError(cerr))
		_ = ws.Close()
		return
	}
	client.UserID = user.ID
	client.DisplayName = user.DisplayName

	// Active: start the writer, admit into the registry (broadcasts
	// presence, including to this client), then confirm.
	safe.Go("write pump", client.WritePump)

	if evicted := s.reg.Admit(client); evicted != nil {
		logger.Infof("[ws] evict previous conn user=%s old=%s new=%s", user.ID, evicted.ConnID, client.ConnID)
		evicted.Enqueue(BuildError(errs.ErrSessionReplaced))
		evicted.Close()
	}
	s.presence.MirrorOnline(user.ID)
	client.Enqueue(BuildConnectionConfirmed(UserRef{ID: user.ID, DisplayName: user.DisplayName}))

	logger.Infof("[ws] connected user=%s conn=%s remote=%s", user.ID, client.ConnID, remoteAddr(ws))

	s.readLoop(client)

	// Closed: guarded eviction so a stale disconnect never removes a newer
	// connection's entry, then drop per-user state.
	if s.reg.Evict(client.UserID, client) {
		s.presence.MirrorOffline(client.UserID)
	}
	s.limiter.Forget(client.UserID)
	client.Close()
	logger.Infof("[ws] disconnected user=%s conn=%s", client.UserID, client.ConnID)
}

// handshake extracts the bearer token from the ?token= query parameter or,
// when absent, from the first frame which must be an auth event. The whole
// phase is bounded by HandshakeTimeout.
func (s *Server) handshake(r *http.Request, conn Conn) (user *storage.User, cerr *errs.CodeError) {
	deadline := time.Now().Add(s.opts.HandshakeTimeout)

	token := r.URL.Query().Get("token")
	if token == "" {
		_ = conn.SetReadDeadline(deadline)
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			// nothing arrived before the deadline, or the peer went away
			return nil, errs.ErrNoToken
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			return nil, errs.ErrInvalidPayload
		}
		frame, perr := ParseFrame(raw)
		if perr != nil || frame.Type != EventAuth {
			return nil, errs.ErrInvalidPayload
		}
		var p AuthPayload
		if err := frame.DecodePayload(&p); err != nil {
			return nil, errs.ErrInvalidPayload
		}
		token = p.Token
		if strings.TrimSpace(token) == "" {
			return nil, errs.ErrNoToken
		}
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	return s.verifier.Verify(ctx, token)
}

// readLoop handles events sequentially for one connection, which is what
// guarantees per-sender ordering of persists and deliveries.
func (s *Server) readLoop(client *Client) {
	conn := client.conn
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
		safe.Go("mirror refresh", func() { s.presence.MirrorRefresh(client.UserID) })
		return nil
	})

	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Debugf("[ws] peer closed conn=%s: %v", client.ConnID, err)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s: %v", client.ConnID, err)
			} else {
				logger.Infof("[ws] read error conn=%s: %v", client.ConnID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(raw)
		if perr != nil {
			client.Enqueue(BuildError(errs.ErrBadFrame))
			continue
		}
		s.handleFrame(client, frame)

		if client.Closed() {
			return
		}
	}
}

// handleFrame dispatches one inbound event. Every failure here is non-fatal:
// the error is signalled back and the connection stays open.
func (s *Server) handleFrame(client *Client, frame *Frame) {
	switch frame.Type {
	case EventSendMessage:
		var p SendMessagePayload
		if err := frame.DecodePayload(&p); err != nil {
			client.Enqueue(BuildError(errs.ErrBadFrame))
			return
		}
		if cerr := s.router.SendDirect(context.Background(), client, p); cerr != nil {
			client.Enqueue(BuildError(cerr))
		}

	case EventSendGroupMessage:
		var p SendGroupMessagePayload
		if err := frame.DecodePayload(&p); err != nil {
			client.Enqueue(BuildError(errs.ErrBadFrame))
			return
		}
		if cerr := s.router.SendGroup(context.Background(), client, p); cerr != nil {
			client.Enqueue(BuildError(cerr))
		}

	case EventTyping:
		var p TypingPayload
		if err := frame.DecodePayload(&p); err != nil {
			client.Enqueue(BuildError(errs.ErrBadFrame))
			return
		}
		s.presence.RelayTyping(client, p.To, p.Typing)

	case EventAuth:
		// already authenticated; nothing to redo
		logger.Debugf("[ws] duplicate auth frame conn=%s", client.ConnID)

	default:
		client.Enqueue(BuildError(errs.ErrUnknownEvent))
	}
}

func remoteAddr(ws *websocket.Conn) string {
	if ra := ws.RemoteAddr(); ra != nil {
		return ra.String()
	}
	return "unknown"
}
