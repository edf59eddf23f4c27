package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/4abishai/secura/internal/domain"
	"github.com/4abishai/secura/internal/protocol/wire"
)

const (
	// DefaultReconnectDelay is the fixed wait between reconnect attempts.
	DefaultReconnectDelay = 8 * time.Second
	// DefaultMaxAttempts is the number of reconnects tried after an abnormal
	// close before the session gives up.
	DefaultMaxAttempts = 5

	writeTimeout = 10 * time.Second
)

// SessionOptions configures a WebSocketSession.
type SessionOptions struct {
	URL            string
	ReconnectDelay time.Duration
	MaxAttempts    int
	Dialer         *websocket.Dialer
	Logger         logrus.FieldLogger
}

type messageHandler struct {
	fn func(wire.Envelope)
}

type statusHandler struct {
	fn func(domain.TransportStatus)
}

// WebSocketSession is the persistent connection to the message hub.
//
// One reader goroutine per connection decodes envelopes and runs the handlers
// for their type sequentially, in registration order. Writes are serialised.
// After an abnormal close the session redials every ReconnectDelay, at most
// MaxAttempts times, then settles in domain.StatusFailed. Status handlers run
// on every transition; on (re)connect they run before the first read, so a
// handler may send register before anything is received.
type WebSocketSession struct {
	opts SessionOptions
	log  logrus.FieldLogger

	writeMu sync.Mutex

	mu          sync.Mutex
	conn        *websocket.Conn
	status      domain.TransportStatus
	manual      bool
	cancelRetry context.CancelFunc
	handlers    map[wire.Type][]*messageHandler
	onStatus    []*statusHandler
}

// NewWebSocketSession returns a disconnected session.
func NewWebSocketSession(opts SessionOptions) *WebSocketSession {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &WebSocketSession{
		opts:     opts,
		log:      opts.Logger.WithFields(logrus.Fields{"component": "transport", "url": opts.URL}),
		status:   domain.StatusDisconnected,
		handlers: map[wire.Type][]*messageHandler{},
	}
}

// Connect dials the hub. It is a no-op when already connected.
func (s *WebSocketSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.manual = false
	s.stopRetryLocked()
	s.mu.Unlock()

	s.setStatus(domain.StatusConnecting)
	if err := s.dial(ctx); err != nil {
		s.setStatus(domain.StatusDisconnected)
		return fmt.Errorf("connect %s: %w", s.opts.URL, err)
	}
	return nil
}

// Disconnect closes the connection with code 1000 and cancels any pending
// reconnect.
func (s *WebSocketSession) Disconnect() {
	s.mu.Lock()
	s.manual = true
	s.stopRetryLocked()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Manual disconnect"),
			time.Now().Add(writeTimeout),
		)
		s.writeMu.Unlock()
		_ = conn.Close()
	}
	s.setStatus(domain.StatusDisconnected)
}

// Send encodes and writes env. It fails with domain.ErrTransportUnavailable
// unless the session is connected.
func (s *WebSocketSession) Send(env wire.Envelope) error {
	s.mu.Lock()
	conn, status := s.conn, s.status
	s.mu.Unlock()
	if conn == nil || status != domain.StatusConnected {
		return fmt.Errorf("send %s: %w", env.Type(), domain.ErrTransportUnavailable)
	}

	data, err := wire.Encode(env)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w: %v", env.Type(), domain.ErrTransportUnavailable, err)
	}
	return nil
}

// OnMessage registers handler for envelopes of type t. The returned func
// removes exactly this registration.
func (s *WebSocketSession) OnMessage(t wire.Type, handler func(wire.Envelope)) func() {
	h := &messageHandler{fn: handler}
	s.mu.Lock()
	s.handlers[t] = append(s.handlers[t], h)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		hs := s.handlers[t]
		for i, x := range hs {
			if x == h {
				s.handlers[t] = append(hs[:i:i], hs[i+1:]...)
				return
			}
		}
	}
}

// OnStatus registers handler for status transitions.
func (s *WebSocketSession) OnStatus(handler func(domain.TransportStatus)) func() {
	h := &statusHandler{fn: handler}
	s.mu.Lock()
	s.onStatus = append(s.onStatus, h)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, x := range s.onStatus {
			if x == h {
				s.onStatus = append(s.onStatus[:i:i], s.onStatus[i+1:]...)
				return
			}
		}
	}
}

// Status reports the current connection state.
func (s *WebSocketSession) Status() domain.TransportStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *WebSocketSession) dial(ctx context.Context) error {
	conn, _, err := s.opts.Dialer.DialContext(ctx, s.opts.URL, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.manual {
		s.mu.Unlock()
		_ = conn.Close()
		return errors.New("disconnected while dialing")
	}
	s.conn = conn
	s.mu.Unlock()

	s.log.Info("connected")
	s.setStatus(domain.StatusConnected)
	go s.readLoop(conn)
	return nil
}

func (s *WebSocketSession) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.closed(conn, err)
			return
		}
		env, err := wire.Decode(data)
		if err != nil {
			s.log.WithError(err).Warn("dropping undecodable frame")
			continue
		}
		s.dispatch(env)
	}
}

func (s *WebSocketSession) dispatch(env wire.Envelope) {
	s.mu.Lock()
	hs := append([]*messageHandler(nil), s.handlers[env.Type()]...)
	s.mu.Unlock()

	for _, h := range hs {
		s.run(env, h.fn)
	}
}

// run isolates handler panics so one faulty handler cannot kill the reader.
func (s *WebSocketSession) run(env wire.Envelope, fn func(wire.Envelope)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("type", env.Type()).Errorf("handler panic: %v", r)
		}
	}()
	fn(env)
}

// closed handles the end of conn's read loop.
func (s *WebSocketSession) closed(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		// Replaced or closed by Disconnect.
		s.mu.Unlock()
		return
	}
	s.conn = nil
	normal := websocket.IsCloseError(err, websocket.CloseNormalClosure)
	if s.manual || normal {
		s.mu.Unlock()
		_ = conn.Close()
		s.log.Info("disconnected")
		s.setStatus(domain.StatusDisconnected)
		return
	}
	s.stopRetryLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelRetry = cancel
	s.mu.Unlock()

	_ = conn.Close()
	s.log.WithError(err).Warn("connection lost")
	s.setStatus(domain.StatusReconnecting)
	go s.reconnect(ctx)
}

func (s *WebSocketSession) reconnect(ctx context.Context) {
	timer := time.NewTimer(s.opts.ReconnectDelay)
	defer timer.Stop()

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		entry := s.log.WithField("attempt", attempt)
		entry.Info("reconnecting")
		err := s.dial(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}
		entry.WithError(err).Warn("reconnect failed")
		timer.Reset(s.opts.ReconnectDelay)
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.cancelRetry = nil
	s.mu.Unlock()
	s.log.Error("giving up after reconnect attempts exhausted")
	s.setStatus(domain.StatusFailed)
}

func (s *WebSocketSession) stopRetryLocked() {
	if s.cancelRetry != nil {
		s.cancelRetry()
		s.cancelRetry = nil
	}
}

func (s *WebSocketSession) setStatus(st domain.TransportStatus) {
	s.mu.Lock()
	if s.status == st {
		s.mu.Unlock()
		return
	}
	s.status = st
	hs := append([]*statusHandler(nil), s.onStatus...)
	s.mu.Unlock()

	for _, h := range hs {
		h.fn(st)
	}
}

// Compile-time assertion that WebSocketSession implements domain.Transport.
var _ domain.Transport = (*WebSocketSession)(nil)
