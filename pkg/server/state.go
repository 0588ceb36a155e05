package server

import (
	"github.com/vater-v/backgammon-server/pkg/backgammon"
	"github.com/vater-v/backgammon-server/pkg/statemachine"
)

// Game modes.
const (
	ModePvP = "pvp"
	ModePvE = "pve"
)

// GameState is the plain per-session mutable record. It holds no logic and
// is only ever touched under the owning session's lock.
type GameState struct {
	Board         backgammon.Board
	Dice          []int
	History       []backgammon.MoveRecord
	Turn          int // 0 only during a tied starting roll
	BorneOffWhite int
	BorneOffBlack int
	PossibleTurns []backgammon.Turn
	Machine       *statemachine.Machine
}

// NewGameState returns a state holding the starting position.
func NewGameState() *GameState {
	return &GameState{
		Board:   backgammon.NewBoard(),
		Machine: statemachine.New(),
	}
}

// CanUndoFor reports whether the given seat may undo right now: it must be
// their turn and the turn history must be non-empty.
func (gs *GameState) CanUndoFor(sign int) bool {
	return gs.Turn == sign && len(gs.History) > 0
}
