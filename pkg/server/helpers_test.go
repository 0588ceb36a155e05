package server

import (
	"os"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/vater-v/backgammon-server/pkg/backgammon"
	"github.com/vater-v/backgammon-server/pkg/statemachine"
)

func testLogger() slog.Logger {
	backend := slog.NewBackend(os.Stderr)
	log := backend.Logger("test")
	log.SetLevel(slog.LevelError)
	return log
}

// recordingStats captures reward updates and match records.
type recordingStats struct {
	mu      sync.Mutex
	updates []statUpdate
	matches []MatchStats
}

type statUpdate struct {
	Username   string
	EloDelta   int
	MoneyDelta int
}

func (r *recordingStats) UpdateStats(username string, eloDelta, moneyDelta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, statUpdate{username, eloDelta, moneyDelta})
}

func (r *recordingStats) LogMatch(rec MatchStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches = append(r.matches, rec)
}

func (r *recordingStats) Updates() []statUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]statUpdate(nil), r.updates...)
}

func (r *recordingStats) Matches() []MatchStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MatchStats(nil), r.matches...)
}

// nopEvents discards lifecycle events.
type nopEvents struct{}

func (nopEvents) LogEvent(string, string, map[string]string) {}

// fixedMover returns a canned turn regardless of position.
type fixedMover struct {
	mu   sync.Mutex
	turn backgammon.Turn
	err  error
	// pickFirst computes the turn from the actual enumeration instead.
	pickFirst bool
}

func (m *fixedMover) Turn(board backgammon.Board, dice []int, botSign int) (backgammon.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.pickFirst {
		turns := backgammon.AllTurns(board, dice, botSign)
		if len(turns) == 0 {
			return nil, nil
		}
		return turns[0], nil
	}
	return m.turn, nil
}

// harness bundles the collaborators a session test needs.
type harness struct {
	cfg        *Config
	stats      *recordingStats
	queue      *NotificationQueue
	registry   *Registry
	matchmaker *Matchmaker
	factory    *GameFactory
	svc        *GameService
	controller *AIController
	profiles   map[string]*PlayerProfile
}

func newHarness(mover BotMover) *harness {
	cfg := &Config{}
	cfg.Normalize()

	h := &harness{
		cfg:      cfg,
		stats:    &recordingStats{},
		queue:    NewNotificationQueue(256),
		profiles: make(map[string]*PlayerProfile),
	}

	log := testLogger()
	h.registry = NewRegistry(log)
	h.matchmaker = NewMatchmaker(log)

	if mover == nil {
		mover = &fixedMover{pickFirst: true}
	}
	h.controller = NewAIController(mover, log)
	h.controller.thinkDelay = func() time.Duration { return 0 }
	h.controller.Start()

	profileByConn := func(connID string) *PlayerProfile {
		return h.profiles[connID]
	}
	h.factory = NewGameFactory(cfg, log, nopEvents{}, h.stats, h.controller, h.queue,
		profileByConn, h.registry.RemoveByID)
	h.svc = NewGameService(h.registry, h.matchmaker, h.factory, profileByConn, log)
	return h
}

func (h *harness) addProfile(connID, username string) {
	h.profiles[connID] = &PlayerProfile{Username: username, Money: 500, Diamonds: 10, Icon: "default.png"}
}

// drainOne reads one notification from the queue, or nil on timeout.
func (h *harness) drainOne(timeout time.Duration) *Notification {
	select {
	case n := <-h.queue.ch:
		return n
	case <-time.After(timeout):
		return nil
	}
}

// playingPvPSession builds a registered PvP session forced into PLAYING
// with white to move.
func (h *harness) playingPvPSession(connWhite, connBlack string) *GameSession {
	h.addProfile(connWhite, "alice")
	h.addProfile(connBlack, "bob")

	session := h.factory.CreatePvPGame(connWhite, connBlack, "alice", "bob")
	h.registry.Add(session)

	session.state.Machine.Advance(statemachine.Playing)
	session.state.Turn = backgammon.White
	return session
}

// playingPvESession builds a registered PvE session in PLAYING with the
// human playing white.
func (h *harness) playingPvESession(connID string) *GameSession {
	h.addProfile(connID, "alice")

	session := h.factory.CreatePvEGame(connID, "Bot_Easy", "alice", backgammon.White)
	h.registry.Add(session)

	session.players.SetSigns(backgammon.White)
	session.state.Machine.Advance(statemachine.Playing)
	session.state.Turn = backgammon.White
	return session
}
