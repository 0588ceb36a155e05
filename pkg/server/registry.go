package server

import (
	"sync"

	"github.com/decred/slog"
)

// Registry is the process-wide index of live sessions, keyed three ways:
// game id, connection id, and username (for auto-rejoin). One mutex guards
// all three maps so no session can appear in two indexes pointing at
// different sessions.
type Registry struct {
	mu         sync.Mutex
	games      map[string]*GameSession
	connToGame map[string]string
	userToGame map[string]string
	log        slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log slog.Logger) *Registry {
	return &Registry{
		games:      make(map[string]*GameSession),
		connToGame: make(map[string]string),
		userToGame: make(map[string]string),
		log:        log,
	}
}

// Add registers a session under all three indexes. The session lock is
// taken before the registry lock, never the other way around: end-of-game
// paths call back into the registry while holding their session's lock.
func (r *Registry) Add(session *GameSession) {
	connIDs := session.AllConnIDs()
	usernames := session.AllUsernames()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.games[session.ID]; exists {
		r.log.Warnf("game %s already registered", session.ID)
		return
	}
	r.games[session.ID] = session
	for _, connID := range connIDs {
		if connID != "" {
			r.connToGame[connID] = session.ID
		}
	}
	for _, username := range usernames {
		if username != "" {
			r.userToGame[username] = session.ID
		}
	}
	r.log.Debugf("game %s registered, %d live games", session.ID, len(r.games))
}

// RemoveByID deletes a session and every index entry referencing it.
func (r *Registry) RemoveByID(gameID string) {
	if gameID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.games[gameID]; !exists {
		return
	}
	delete(r.games, gameID)
	for connID, gid := range r.connToGame {
		if gid == gameID {
			delete(r.connToGame, connID)
		}
	}
	for username, gid := range r.userToGame {
		if gid == gameID {
			delete(r.userToGame, username)
		}
	}
	r.log.Debugf("game %s removed, %d live games", gameID, len(r.games))
}

// ByID returns the session for a game id.
func (r *Registry) ByID(gameID string) *GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.games[gameID]
}

// ByConn returns the session a connection is seated in.
func (r *Registry) ByConn(connID string) *GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	gameID, ok := r.connToGame[connID]
	if !ok {
		return nil
	}
	return r.games[gameID]
}

// GameIDByUsername returns the id of the session a username is seated in.
func (r *Registry) GameIDByUsername(username string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userToGame[username]
}

// AssociateConn binds a connection to an existing game (rejoin). The
// username index is left untouched.
func (r *Registry) AssociateConn(connID, gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.games[gameID]; !exists {
		r.log.Warnf("cannot associate %s with unknown game %s", connID, gameID)
		return
	}
	r.connToGame[connID] = gameID
}

// DisassociateConn unbinds a connection, returning the game id it was
// bound to, if any.
func (r *Registry) DisassociateConn(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	gameID, ok := r.connToGame[connID]
	if !ok {
		return ""
	}
	delete(r.connToGame, connID)
	return gameID
}
