package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/4abishai/secura/internal/domain"
	"github.com/4abishai/secura/internal/protocol/wire"
)

// storedMessage is a relayed ciphertext kept until its recipient acks it.
type storedMessage struct {
	id        int64
	sender    string
	recipient string
	content   string
	at        time.Time
	delivered bool
}

func (m storedMessage) envelope() wire.NewMessage {
	return wire.NewMessage{
		ID:        wire.ID(strconv.FormatInt(m.id, 10)),
		Sender:    m.sender,
		Recipient: m.recipient,
		Content:   m.content,
		Timestamp: m.at.Format(time.RFC3339Nano),
	}
}

// hubConn is one client connection to the hub.
type hubConn struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	username string
}

func (c *hubConn) send(env wire.Envelope) error {
	data, err := wire.Encode(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Server is an in-memory development relay: a key directory under /users/
// and a store-and-forward message hub on /chat. Nothing is persisted.
type Server struct {
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
	now      func() time.Time

	mu       sync.Mutex
	keys     map[domain.Username]domain.X25519Public
	clients  map[string]*hubConn
	messages map[int64]storedMessage
	nextID   int64
	dropAcks bool
}

// NewServer returns an empty relay.
func NewServer(log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		log: log.WithField("component", "relay"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now:      time.Now,
		keys:     map[domain.Username]domain.X25519Public{},
		clients:  map[string]*hubConn{},
		messages: map[int64]storedMessage{},
	}
}

// Handler returns the relay's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{name}", s.getUser)
	mux.HandleFunc("PUT /users/{name}", s.putUser)
	mux.HandleFunc("/chat", s.serveChat)
	return mux
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	name := domain.Username(r.PathValue("name"))
	s.mu.Lock()
	pub, ok := s.keys[name]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(userKey{Username: name, PublicKey: pub})
}

func (s *Server) putUser(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	name := domain.Username(r.PathValue("name"))
	var in userKey
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if in.PublicKey.IsZero() {
		http.Error(w, "missing publicKey", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.keys[name] = in.PublicKey
	s.mu.Unlock()
	s.log.WithField("user", name).Info("published key")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) serveChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("upgrade")
		return
	}
	c := &hubConn{conn: conn}
	defer s.leave(c)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := wire.Decode(data)
		if err != nil {
			s.reply(c, wire.Error{Message: "Error processing message: " + err.Error()})
			continue
		}
		s.handle(c, env)
	}
}

func (s *Server) handle(c *hubConn, env wire.Envelope) {
	switch m := env.(type) {
	case wire.Register:
		s.register(c, m)
	case wire.SendMessage:
		s.relay(c, m)
	case wire.MessageAck:
		s.ack(c, m)
	case wire.GetMessages:
		s.history(c)
	case wire.Presence:
		if c.username != "" {
			s.broadcast(c.username, wire.UserPresence{Username: c.username, Online: m.Online, LastSeen: s.now().UnixMilli()})
		}
	default:
		s.reply(c, wire.Error{Message: "Unknown message type: " + string(env.Type())})
	}
}

func (s *Server) register(c *hubConn, m wire.Register) {
	if m.Username == "" {
		s.reply(c, wire.Error{Message: "register: missing username"})
		return
	}
	s.mu.Lock()
	if prev, ok := s.clients[m.Username]; ok && prev != c {
		_ = prev.conn.Close()
	}
	c.username = m.Username
	s.clients[m.Username] = c
	var undelivered []storedMessage
	for _, msg := range s.messages {
		if msg.recipient == m.Username && !msg.delivered {
			undelivered = append(undelivered, msg)
		}
	}
	s.mu.Unlock()
	sort.Slice(undelivered, func(i, j int) bool { return undelivered[i].id < undelivered[j].id })

	s.log.WithFields(logrus.Fields{"user": m.Username, "backlog": len(undelivered)}).Info("registered")
	s.reply(c, wire.RegistrationSuccess{Username: m.Username})
	s.broadcast(m.Username, wire.UserPresence{Username: m.Username, Online: true, LastSeen: s.now().UnixMilli()})
	for _, msg := range undelivered {
		s.reply(c, msg.envelope())
	}
}

func (s *Server) relay(c *hubConn, m wire.SendMessage) {
	if c.username == "" {
		s.reply(c, wire.Error{Message: "send_message: not registered"})
		return
	}
	s.mu.Lock()
	s.nextID++
	msg := storedMessage{
		id:        s.nextID,
		sender:    c.username,
		recipient: m.Recipient,
		content:   m.Content,
		at:        s.now().UTC(),
	}
	target, online := s.clients[m.Recipient]
	msg.delivered = online
	s.messages[msg.id] = msg
	dropAck := s.dropAcks
	s.mu.Unlock()

	if online {
		if err := target.send(msg.envelope()); err != nil {
			s.log.WithError(err).WithField("user", m.Recipient).Warn("forward failed")
		}
	}
	if dropAck {
		s.log.WithField("message_id", msg.id).Debug("discarding message_sent")
		return
	}
	s.reply(c, wire.MessageSent{
		TempID:    m.TempID,
		MessageID: wire.ID(strconv.FormatInt(msg.id, 10)),
		Delivered: msg.delivered,
	})
}

func (s *Server) ack(c *hubConn, m wire.MessageAck) {
	id, err := strconv.ParseInt(m.MessageID.String(), 10, 64)
	if err != nil {
		s.reply(c, wire.Error{Message: fmt.Sprintf("message_ack: bad id %q", m.MessageID)})
		return
	}
	s.mu.Lock()
	delete(s.messages, id)
	s.mu.Unlock()
	s.log.WithField("message_id", id).Debug("acked")
}

func (s *Server) history(c *hubConn) {
	s.mu.Lock()
	var backlog []storedMessage
	for _, msg := range s.messages {
		if msg.recipient == c.username {
			backlog = append(backlog, msg)
		}
	}
	s.mu.Unlock()
	sort.Slice(backlog, func(i, j int) bool { return backlog[i].id < backlog[j].id })

	out := wire.MessagesHistory{Messages: make([]wire.NewMessage, 0, len(backlog))}
	for _, msg := range backlog {
		out.Messages = append(out.Messages, msg.envelope())
	}
	s.reply(c, out)
}

func (s *Server) broadcast(from string, env wire.Envelope) {
	s.mu.Lock()
	targets := make([]*hubConn, 0, len(s.clients))
	for name, c := range s.clients {
		if name != from {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()
	for _, c := range targets {
		_ = c.send(env)
	}
}

func (s *Server) reply(c *hubConn, env wire.Envelope) {
	if err := c.send(env); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		s.log.WithError(err).WithField("type", env.Type()).Debug("reply failed")
	}
}

func (s *Server) leave(c *hubConn) {
	_ = c.conn.Close()
	if c.username == "" {
		return
	}
	s.mu.Lock()
	if s.clients[c.username] == c {
		delete(s.clients, c.username)
	} else {
		c = nil
	}
	s.mu.Unlock()
	if c != nil {
		s.broadcast(c.username, wire.UserPresence{Username: c.username, Online: false, LastSeen: s.now().UnixMilli()})
	}
}

// Drop abruptly closes username's connection without a close frame, as a
// network failure would. It reports whether the user was connected.
func (s *Server) Drop(username string) bool {
	s.mu.Lock()
	c, ok := s.clients[username]
	s.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
	return ok
}

// DropAcks makes the hub relay messages but discard their message_sent
// confirmations, as if the sender's connection failed in between.
func (s *Server) DropAcks(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropAcks = on
}

// Pending returns the number of relayed messages not yet acknowledged.
func (s *Server) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
