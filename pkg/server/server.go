package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// TokenVerifier checks the signed token a client presents on connect and
// returns the authenticated username.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// wsMessage is the wire format of the event channel in both directions.
type wsMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// outboundMessage carries an unmarshaled payload toward the write pump.
type outboundMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// clientConn is one connected socket. Writes go through the send channel
// so the write pump is the only goroutine touching the websocket writer.
type clientConn struct {
	id   string
	ws   *websocket.Conn
	send chan outboundMessage
	done chan struct{}
	once sync.Once
}

func (c *clientConn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// userSession is the authenticated identity bound to a connection.
type userSession struct {
	Username    string
	Profile     *PlayerProfile
	ConnectedAt time.Time
}

// Server is the socket gateway: it authenticates connections, dispatches
// inbound events to the game service and emits the resulting notification
// lists. Bot-driven notifications bypass it on the way in and come back
// through the notification queue's consumer, which emits via the same
// Emit method.
type Server struct {
	cfg      *Config
	log      slog.Logger
	events   EventLogger
	profiles ProfileStore
	verifier TokenVerifier
	svc      *GameService
	queue    *NotificationQueue

	upgrader websocket.Upgrader

	connMu sync.RWMutex
	conns  map[string]*clientConn

	usersMu sync.Mutex
	users   map[string]*userSession
}

// NewServer creates the gateway. The game service is attached afterwards
// via SetGameService because it needs the gateway's profile resolver.
func NewServer(cfg *Config, log slog.Logger, events EventLogger, profiles ProfileStore, verifier TokenVerifier, queue *NotificationQueue) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		events:   events,
		profiles: profiles,
		verifier: verifier,
		queue:    queue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*clientConn),
		users: make(map[string]*userSession),
	}
}

// SetGameService attaches the game service façade.
func (s *Server) SetGameService(svc *GameService) {
	s.svc = svc
}

// ProfileByConn returns the cached profile of an authenticated connection.
func (s *Server) ProfileByConn(connID string) *PlayerProfile {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if us, ok := s.users[connID]; ok && us.Profile != nil {
		profile := *us.Profile
		return &profile
	}
	return nil
}

// UsernameByConn returns the authenticated username of a connection.
func (s *Server) UsernameByConn(connID string) string {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if us, ok := s.users[connID]; ok {
		return us.Username
	}
	return ""
}

// Emit implements Emitter: it delivers one event to one connection.
// Unknown targets are dropped silently, matching disconnected clients.
func (s *Server) Emit(target, event string, payload interface{}) {
	s.connMu.RLock()
	client, ok := s.conns[target]
	s.connMu.RUnlock()
	if !ok {
		return
	}

	select {
	case client.send <- outboundMessage{Event: event, Payload: payload}:
	case <-client.done:
	default:
		s.log.Warnf("send buffer full for %s, dropping %s", target, event)
	}
}

// emitAll sends a handler's notification list synchronously in order.
func (s *Server) emitAll(notifications []Notification) {
	for _, n := range notifications {
		if n.Target == "" {
			continue
		}
		s.Emit(n.Target, n.Event, n.Payload)
	}
}

// HandleWS upgrades the HTTP request and runs the connection lifecycle.
// The token comes from the "token" query parameter. Invalid or expired
// tokens get auth_failed and an immediate close.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugf("websocket upgrade failed: %v", err)
		return
	}

	client := &clientConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan outboundMessage, 64),
		done: make(chan struct{}),
	}

	s.connMu.Lock()
	s.conns[client.id] = client
	s.connMu.Unlock()

	go s.writePump(client)

	if !s.authenticate(client, r.URL.Query().Get("token")) {
		// Let the write pump flush auth_failed before tearing down.
		time.Sleep(100 * time.Millisecond)
		s.removeConn(client)
		return
	}

	s.readLoop(client)
	s.handleDisconnect(client)
}

// authenticate verifies the token, loads the profile and pushes
// profile_data_update. Terminal faults emit auth_failed.
func (s *Server) authenticate(client *clientConn, token string) bool {
	if token == "" {
		s.Emit(client.id, EventAuthFailed, RejectionPayload{Message: "No token provided."})
		return false
	}

	username, err := s.verifier.Verify(token)
	if err != nil {
		s.log.Debugf("connection %s presented invalid token: %v", client.id, err)
		s.Emit(client.id, EventAuthFailed, RejectionPayload{Message: "Invalid or expired token."})
		return false
	}

	profile, err := s.profiles.Profile(username)
	if err != nil {
		s.log.Errorf("authenticated user %s not resolvable: %v", username, err)
		s.Emit(client.id, EventAuthFailed, RejectionPayload{Message: "Account could not be loaded."})
		return false
	}

	s.usersMu.Lock()
	s.users[client.id] = &userSession{
		Username:    username,
		Profile:     profile,
		ConnectedAt: time.Now(),
	}
	s.usersMu.Unlock()

	s.events.LogEvent("SESSION_START", "user authenticated and joined",
		map[string]string{"user": username, "conn": client.id})
	s.Emit(client.id, EventProfileDataUpdate, profile)
	return true
}

// readLoop dispatches inbound events until the socket drops.
func (s *Server) readLoop(client *clientConn) {
	for {
		var msg wsMessage
		if err := client.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debugf("connection %s read error: %v", client.id, err)
			}
			return
		}
		s.dispatch(client, msg)
	}
}

// writePump serializes outbound messages for one connection.
func (s *Server) writePump(client *clientConn) {
	for {
		select {
		case msg := <-client.send:
			if err := client.ws.WriteJSON(msg); err != nil {
				s.log.Debugf("connection %s write error: %v", client.id, err)
				client.close()
				return
			}
		case <-client.done:
			return
		}
	}
}

// handleDisconnect tears a connection down: identity map, matchmaking
// queue, seat vacancy and the opponent's notification.
func (s *Server) handleDisconnect(client *clientConn) {
	s.removeConn(client)

	s.usersMu.Lock()
	us := s.users[client.id]
	delete(s.users, client.id)
	s.usersMu.Unlock()

	if us == nil {
		s.events.LogEvent("SESSION_END", "disconnected pre-auth", map[string]string{"conn": client.id})
		return
	}

	duration := time.Since(us.ConnectedAt).Round(time.Second)
	s.events.LogEvent("SESSION_END", "user disconnected after "+duration.String(),
		map[string]string{"user": us.Username, "conn": client.id})

	_, opponentNotif := s.svc.HandleDisconnect(client.id)
	if opponentNotif != nil {
		s.Emit(opponentNotif.Target, opponentNotif.Event, opponentNotif.Payload)
	}
}

func (s *Server) removeConn(client *clientConn) {
	client.close()
	s.connMu.Lock()
	delete(s.conns, client.id)
	s.connMu.Unlock()
}
