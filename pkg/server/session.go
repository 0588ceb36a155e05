package server

import (
	"sync"

	"github.com/decred/slog"

	"github.com/vater-v/backgammon-server/pkg/backgammon"
	"github.com/vater-v/backgammon-server/pkg/statemachine"
)

// GameSession is the façade composing the per-session managers under one
// lock. The gateway talks only to this type; managers assume the lock is
// held and never lock themselves, which keeps the call graph between them
// re-entrant without a reentrant mutex.
type GameSession struct {
	ID   string
	Mode string

	mu      sync.Mutex
	state   *GameState
	players *PlayerManager
	turns   *TurnManager
	ai      *AIManager

	log    slog.Logger
	events EventLogger

	// pendingPlayerSign holds the PvE color choice between game creation
	// and the client's ready-for-roll event.
	pendingPlayerSign int
}

// SetupPvE seats the human against the bot and stores their color choice.
func (s *GameSession) SetupPvE(connID, username, botName string, playerSign int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players.SetupPvE(connID, username, botName)
	s.pendingPlayerSign = playerSign
	s.state.Machine.Advance(statemachine.AwaitingReady)
}

// SetupPvP seats both players.
func (s *GameSession) SetupPvP(connWhite, connBlack, usernameWhite, usernameBlack string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players.SetupPvP(connWhite, connBlack, usernameWhite, usernameBlack)
	s.state.Machine.Advance(statemachine.AwaitingReady)
}

// AllConnIDs returns every seated connection id, empty seats included.
func (s *GameSession) AllConnIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players.AllConnIDs()
}

// AllUsernames returns the seated usernames.
func (s *GameSession) AllUsernames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players.AllUsernames()
}

// StateName returns the lifecycle state for logging and sync decisions.
func (s *GameSession) StateName() statemachine.State {
	return s.state.Machine.Current()
}

// BotName returns the bot username (PvE sessions).
func (s *GameSession) BotName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players.BotName()
}

// OpponentUsername returns the username seated opposite the given role
// sign; in PvE it is the bot's name.
func (s *GameSession) OpponentUsername(roleSign int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Mode == ModePvE {
		return s.players.BotName()
	}
	if roleSign == backgammon.White {
		return s.players.usernameBlack
	}
	return s.players.usernameWhite
}

// OpponentConn returns the opponent's connection id for a seated
// connection, or "".
func (s *GameSession) OpponentConn(connID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, opponentConn, _ := s.players.PlayerContext(connID)
	return opponentConn
}

// HandleDisconnect vacates the seat and arms the forfeit timer.
func (s *GameSession) HandleDisconnect(connID string) *Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players.HandleDisconnect(connID, s.state)
}

// Rejoin rebinds a connection to its old seat by username.
func (s *GameSession) Rejoin(connID, username string) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players.Rejoin(connID, username)
}

// SetPlayerReady records PvP readiness. The second ready moves the session
// to the starting roll and reports startGame=true.
func (s *GameSession) SetPlayerReady(connID string) (*Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Machine.Is(statemachine.AwaitingReady) {
		return nil, false
	}
	opponentNotif, startGame := s.players.SetReady(connID)
	if startGame {
		s.state.Machine.Advance(statemachine.StartingRoll)
		s.events.LogEvent("STATE_CHANGE", "state -> STARTING_ROLL (all ready)",
			map[string]string{"game_id": s.ID})
	}
	return opponentNotif, startGame
}

// StartPvPGame emits the initial setup to both seats.
func (s *GameSession) StartPvPGame() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players.StartPvPGame(s.state)
}

// TriggerPvPFirstRoll performs one opening-roll attempt. A decisive roll
// moves the session to PLAYING; on a tie the gateway re-enters after a
// backoff.
func (s *GameSession) TriggerPvPFirstRoll() ([]Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Machine.Is(statemachine.StartingRoll) {
		return nil, false
	}
	notifications, isTie := s.players.PvPFirstRoll(s.state)
	if !isTie {
		s.state.Machine.Advance(statemachine.Playing)
		s.events.LogEvent("STATE_CHANGE", "state -> PLAYING (first roll resolved)",
			map[string]string{"game_id": s.ID})
	}
	return notifications, isTie
}

// StartPvEFirstRoll performs one PvE opening-roll attempt. The first call
// moves AWAITING_READY to STARTING_ROLL; tie re-entries stay in
// STARTING_ROLL. If the bot wins the roll its turn is triggered
// immediately.
func (s *GameSession) StartPvEFirstRoll(connID string) ([]Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.Machine.Current() {
	case statemachine.AwaitingReady:
		s.state.Machine.Advance(statemachine.StartingRoll)
		s.events.LogEvent("STATE_CHANGE", "state -> STARTING_ROLL (client ready)",
			map[string]string{"game_id": s.ID})
	case statemachine.StartingRoll:
		// Tie re-entry.
	default:
		s.events.LogEvent("STATE_VIOLATION_BLOCKED",
			"first roll requested in state "+s.state.Machine.Current().String(),
			map[string]string{"conn": connID, "game_id": s.ID})
		return []Notification{reject(connID, "Action not possible in the current game state.")}, false
	}

	notifications, isTie := s.ai.StartPvEFirstRoll(s.state, s.players, s.pendingPlayerSign)
	if isTie {
		return notifications, true
	}

	s.state.Machine.Advance(statemachine.Playing)
	s.events.LogEvent("STATE_CHANGE", "state -> PLAYING (first roll resolved)",
		map[string]string{"game_id": s.ID})

	if s.state.Turn == s.players.BotSign() {
		s.ai.TriggerBotTurn(s.state, s.players)
	}
	return notifications, false
}

// RollDice handles a player's roll; when the roll leaves no moves in PvE
// the bot's turn starts immediately.
func (s *GameSession) RollDice(connID string) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	notifications, botRollNeeded := s.turns.RollDice(s.state, s.players, connID)
	if botRollNeeded {
		s.ai.TriggerBotTurn(s.state, s.players)
	}
	return notifications
}

// ApplyStep commits one sub-step.
func (s *GameSession) ApplyStep(connID string, step backgammon.Step) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns.ApplyStep(s.state, s.players, connID, step)
}

// Undo reverts the last committed sub-step.
func (s *GameSession) Undo(connID string) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns.Undo(s.state, s.players, connID)
}

// FinalizeTurn ends the mover's turn; in PvE the bot rolls next.
func (s *GameSession) FinalizeTurn(connID string) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	notifications, botRollNeeded, gameEnded := s.turns.FinalizeTurn(s.state, s.players, connID)
	if !gameEnded && botRollNeeded {
		s.ai.TriggerBotTurn(s.state, s.players)
	}
	return notifications
}

// GiveUp forfeits the game for the calling seat.
func (s *GameSession) GiveUp(connID string) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns.GiveUp(s.state, s.players, connID)
}

// SyncPayload builds the full reconnect snapshot for the given seat sign.
// The stored possible-turn set is reused; nothing is recomputed.
func (s *GameSession) SyncPayload(roleSign int) FullGameSyncPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	possibleTurns := []backgammon.Turn{}
	if s.state.Machine.Is(statemachine.Playing) && s.state.PossibleTurns != nil {
		possibleTurns = s.state.PossibleTurns
	}
	readyWhite, readyBlack := s.players.ReadyFlags()

	return FullGameSyncPayload{
		BoardState:    boardSlice(s.state.Board),
		Dice:          append([]int(nil), s.state.Dice...),
		PossibleTurns: possibleTurns,
		Turn:          s.state.Turn,
		BorneOffWhite: s.state.BorneOffWhite,
		BorneOffBlack: s.state.BorneOffBlack,
		CanUndo:       s.state.CanUndoFor(roleSign),
		WhiteReady:    readyWhite,
		BlackReady:    readyBlack,
	}
}

// RoleSign maps a rejoin role to the seat's sign.
func (s *GameSession) RoleSign(role string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players.RoleSign(role)
}

// HumanConn returns the PvE human connection id.
func (s *GameSession) HumanConn() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players.HumanConn()
}

// onBotTurnCalculated is the worker-pool callback; it re-acquires the
// session lock before touching state.
func (s *GameSession) onBotTurnCalculated(turn backgammon.Turn, dice []int, botSign int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ai.OnBotTurnCalculated(s.state, s.players, s.turns, turn, dice, botSign)
}

// onDisconnectTimeout fires on the timer goroutine and re-acquires the
// session lock.
func (s *GameSession) onDisconnectTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players.ResolveTimeout(s.state)
}
