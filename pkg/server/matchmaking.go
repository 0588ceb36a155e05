package server

import (
	"math/rand"
	"sync"

	"github.com/decred/slog"
)

// Match statuses returned by FindOrQueue.
const (
	MatchStatusQueued        = "queued"
	MatchStatusFound         = "match_found"
	MatchStatusAlreadyQueued = "already_in_queue"
)

// MatchResult is the outcome of one matchmaking attempt. On a found match
// the two connections carry their randomly assigned colors.
type MatchResult struct {
	Status    string
	WhiteConn string
	BlackConn string
}

// Matchmaker owns the FIFO queue of connections waiting for a PvP
// opponent. It knows nothing about sessions.
type Matchmaker struct {
	mu    sync.Mutex
	queue []string
	log   slog.Logger
}

// NewMatchmaker creates an empty matchmaker.
func NewMatchmaker(log slog.Logger) *Matchmaker {
	return &Matchmaker{log: log}
}

// FindOrQueue pairs the caller with the queue head, or enqueues them.
// Colors are assigned by fair coin.
func (m *Matchmaker) FindOrQueue(connID string) MatchResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, queued := range m.queue {
		if queued == connID {
			return MatchResult{Status: MatchStatusAlreadyQueued}
		}
	}

	if len(m.queue) > 0 {
		opponent := m.queue[0]
		m.queue = m.queue[1:]

		white, black := connID, opponent
		if rand.Intn(2) == 0 {
			white, black = black, white
		}
		m.log.Debugf("match found: white=%s black=%s", white, black)
		return MatchResult{Status: MatchStatusFound, WhiteConn: white, BlackConn: black}
	}

	m.queue = append(m.queue, connID)
	m.log.Debugf("queued %s, queue length %d", connID, len(m.queue))
	return MatchResult{Status: MatchStatusQueued}
}

// Cancel removes a connection from the queue, reporting whether it was
// present.
func (m *Matchmaker) Cancel(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, queued := range m.queue {
		if queued == connID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return true
		}
	}
	return false
}

// HandleDisconnect drops a vanished connection from the queue.
func (m *Matchmaker) HandleDisconnect(connID string) {
	m.Cancel(connID)
}
