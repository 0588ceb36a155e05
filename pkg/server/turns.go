package server

import (
	"sort"

	"github.com/decred/slog"

	"github.com/vater-v/backgammon-server/pkg/backgammon"
	"github.com/vater-v/backgammon-server/pkg/statemachine"
)

// Game-end outcome labels for the stats log.
const (
	OutcomeWin     = "WIN"
	OutcomeGiveUp  = "GIVE_UP"
	OutcomeTimeout = "TIMEOUT"
)

// TurnManager implements the per-session state machine for play: dice
// rolls, step application, undo, turn finalization, forfeit and victory
// detection. Every method assumes the owning session's lock is held.
type TurnManager struct {
	gameID string
	mode   string
	cfg    *Config

	log      slog.Logger
	events   EventLogger
	stats    StatsRecorder
	finalize func(gameID string)
}

// NewTurnManager wires a turn manager for one session.
func NewTurnManager(gameID, mode string, cfg *Config, log slog.Logger, events EventLogger, stats StatsRecorder, finalize func(string)) *TurnManager {
	return &TurnManager{
		gameID:   gameID,
		mode:     mode,
		cfg:      cfg,
		log:      log,
		events:   events,
		stats:    stats,
		finalize: finalize,
	}
}

// RollDice handles a player's roll request. When the roll leaves no legal
// moves the turn is auto-finished; the returned flag signals that the bot
// must roll next (PvE only).
func (tm *TurnManager) RollDice(gs *GameState, pm *PlayerManager, connID string) ([]Notification, bool) {
	var notifications []Notification

	if !gs.Machine.Is(statemachine.Playing) {
		tm.events.LogEvent("STATE_VIOLATION_BLOCKED",
			"roll requested in state "+gs.Machine.Current().String(),
			map[string]string{"conn": connID, "game_id": tm.gameID})
		return append(notifications, reject(connID, "Action not possible: the game is not in progress.")), false
	}

	sign, opponentConn, ok := pm.PlayerContext(connID)
	if !ok {
		tm.events.LogEvent("AUTH_ERROR", "player not found for connection",
			map[string]string{"conn": connID, "game_id": tm.gameID})
		return notifications, false
	}
	if gs.Turn != sign {
		return append(notifications, reject(connID, "It is not your turn.")), false
	}
	if len(gs.Dice) > 0 {
		return append(notifications, reject(connID, "Dice already rolled.")), false
	}
	if len(gs.History) > 0 {
		return append(notifications, reject(connID, "You have already moved; finish your turn.")), false
	}

	dice := backgammon.ExpandRoll(backgammon.RollDice())
	possibleTurns := backgammon.AllTurns(gs.Board, dice, sign)

	gs.Dice = dice
	gs.History = nil
	gs.PossibleTurns = possibleTurns

	payload := DiceRollPayload{Dice: dice, PossibleTurns: possibleTurns}
	notifications = append(notifications, Notification{Event: EventDiceRollResult, Payload: payload, Target: connID})
	if opponentConn != "" {
		notifications = append(notifications, Notification{Event: EventOpponentRollResult, Payload: payload, Target: opponentConn})
	}

	botRollNeeded := false
	if !backgammon.MovesAvailable(possibleTurns) {
		tm.events.LogEvent("AUTO_TURN_FINISH", "no moves available, auto-finishing turn",
			map[string]string{"conn": connID, "game_id": tm.gameID})

		gs.Dice, gs.PossibleTurns, gs.History = nil, nil, nil
		gs.Turn = -sign
		if tm.mode == ModePvE {
			botRollNeeded = true
		}

		notifications = append(notifications, Notification{
			Event:   EventTurnFinished,
			Payload: TurnFinishedPayload{Message: "No moves available."},
			Target:  connID,
		})
		if opponentConn != "" {
			notifications = append(notifications, Notification{Event: EventTurnFinished, Payload: TurnFinishedPayload{}, Target: opponentConn})
		}
	}
	return notifications, botRollNeeded
}

// ApplyStep commits one sub-step of the mover's turn. An immediate winner
// check follows the commit; on victory only the game-over notifications are
// returned.
func (tm *TurnManager) ApplyStep(gs *GameState, pm *PlayerManager, connID string, step backgammon.Step) []Notification {
	var notifications []Notification

	if !gs.Machine.Is(statemachine.Playing) {
		return append(notifications, reject(connID, "Move not possible: the game is not active."))
	}
	sign, opponentConn, ok := pm.PlayerContext(connID)
	if !ok {
		tm.events.LogEvent("AUTH_ERROR", "player not found for connection",
			map[string]string{"conn": connID, "game_id": tm.gameID})
		return notifications
	}
	if gs.Turn != sign {
		return append(notifications, reject(connID, "It is not your turn."))
	}

	valid, dieUsed, wasBlot := backgammon.MoveDetails(gs.Board, gs.Dice, sign, step, gs.PossibleTurns)
	if !valid {
		return append(notifications, reject(connID, "Illegal move."))
	}

	newBoard := backgammon.ApplyStep(gs.Board, step, sign)
	borneWhite, borneBlack := gs.BorneOffWhite, gs.BorneOffBlack
	if sign == backgammon.White && step.To == backgammon.TrayWhite {
		borneWhite++
	} else if sign == backgammon.Black && step.To == backgammon.TrayBlack {
		borneBlack++
	}

	remaining := removeDie(gs.Dice, dieUsed)
	var possibleTurns []backgammon.Turn
	if len(remaining) > 0 {
		possibleTurns = backgammon.AllTurns(newBoard, remaining, sign)
	}

	gs.Board = newBoard
	gs.BorneOffWhite = borneWhite
	gs.BorneOffBlack = borneBlack
	gs.Dice = remaining
	gs.History = append(gs.History, backgammon.MoveRecord{Step: step, DieUsed: dieUsed, WasBlot: wasBlot})
	gs.PossibleTurns = possibleTurns

	if victory, ended := tm.CheckVictory(gs, pm, nil); ended {
		return victory
	}

	notifications = append(notifications, Notification{
		Event: EventStepAccepted,
		Payload: StepAcceptedPayload{
			AppliedMove:   step,
			RemainingDice: remaining,
			PossibleTurns: possibleTurns,
			CanUndo:       len(gs.History) > 0,
			BorneOffWhite: gs.BorneOffWhite,
			BorneOffBlack: gs.BorneOffBlack,
			BoardState:    boardSlice(gs.Board),
		},
		Target: connID,
	})
	if opponentConn != "" {
		notifications = append(notifications, Notification{
			Event: EventOpponentStepExecuted,
			Payload: OpponentStepPayload{
				AppliedMove:   step,
				BorneOffWhite: gs.BorneOffWhite,
				BorneOffBlack: gs.BorneOffBlack,
				WasBlot:       wasBlot,
				BoardState:    boardSlice(gs.Board),
			},
			Target: opponentConn,
		})
	}
	return notifications
}

// Undo reverts the last committed step of the current turn.
func (tm *TurnManager) Undo(gs *GameState, pm *PlayerManager, connID string) []Notification {
	var notifications []Notification

	if !gs.Machine.Is(statemachine.Playing) {
		return notifications
	}
	sign, opponentConn, ok := pm.PlayerContext(connID)
	if !ok {
		tm.events.LogEvent("AUTH_ERROR", "player not found for connection",
			map[string]string{"conn": connID, "game_id": tm.gameID})
		return notifications
	}
	if gs.Turn != sign {
		return append(notifications, reject(connID, "Cannot undo while not your turn."))
	}
	if len(gs.History) == 0 {
		return append(notifications, reject(connID, "No moves to undo."))
	}

	last := gs.History[len(gs.History)-1]
	gs.History = gs.History[:len(gs.History)-1]

	board, borneWhite, borneBlack := backgammon.UndoStep(gs.Board, last, sign, gs.BorneOffWhite, gs.BorneOffBlack)
	gs.Board = board
	gs.BorneOffWhite = borneWhite
	gs.BorneOffBlack = borneBlack

	gs.Dice = insertDieSorted(gs.Dice, last.DieUsed)
	gs.PossibleTurns = backgammon.AllTurns(gs.Board, gs.Dice, sign)

	notifications = append(notifications, Notification{
		Event: EventUndoAccepted,
		Payload: UndoAcceptedPayload{
			RevertedMove:  last,
			RemainingDice: gs.Dice,
			PossibleTurns: gs.PossibleTurns,
			CanUndo:       len(gs.History) > 0,
			BorneOffWhite: borneWhite,
			BorneOffBlack: borneBlack,
			BoardState:    boardSlice(gs.Board),
		},
		Target: connID,
	})
	if opponentConn != "" {
		notifications = append(notifications, Notification{
			Event: EventOpponentUndoExecuted,
			Payload: OpponentUndoPayload{
				RevertedMove:  last,
				BorneOffWhite: borneWhite,
				BorneOffBlack: borneBlack,
				BoardState:    boardSlice(gs.Board),
			},
			Target: opponentConn,
		})
	}
	return notifications
}

// FinalizeTurn ends the mover's turn. The turn must be exhausted: while any
// enumerated move remains the request is rejected.
func (tm *TurnManager) FinalizeTurn(gs *GameState, pm *PlayerManager, connID string) (notifications []Notification, botRollNeeded, gameEnded bool) {
	if !gs.Machine.Is(statemachine.Playing) {
		return notifications, false, false
	}
	sign, opponentConn, ok := pm.PlayerContext(connID)
	if !ok {
		tm.events.LogEvent("AUTH_ERROR", "player not found for connection",
			map[string]string{"conn": connID, "game_id": tm.gameID})
		return notifications, false, false
	}
	if gs.Turn != sign {
		return notifications, false, false
	}
	if backgammon.MovesAvailable(gs.PossibleTurns) {
		return append(notifications, reject(connID, "You must play all available moves.")), false, false
	}

	victory, ended := tm.CheckVictory(gs, pm, nil)
	notifications = append(notifications, victory...)
	if ended {
		return notifications, false, true
	}

	gs.Dice, gs.PossibleTurns, gs.History = nil, nil, nil
	gs.Turn = -sign
	if tm.mode == ModePvE {
		botRollNeeded = true
	}

	notifications = append(notifications, Notification{Event: EventTurnFinished, Payload: TurnFinishedPayload{}, Target: connID})
	if opponentConn != "" {
		notifications = append(notifications, Notification{Event: EventTurnFinished, Payload: TurnFinishedPayload{}, Target: opponentConn})
	}
	return notifications, botRollNeeded, false
}

// GiveUp forfeits the game for the calling seat.
func (tm *TurnManager) GiveUp(gs *GameState, pm *PlayerManager, connID string) []Notification {
	sign, _, ok := pm.PlayerContext(connID)
	if !ok {
		tm.events.LogEvent("AUTH_ERROR", "player not found for connection",
			map[string]string{"conn": connID, "game_id": tm.gameID})
		return nil
	}

	winnerSign := -sign
	tm.events.LogEvent("GAME_END_GIVE_UP", "player gave up",
		map[string]string{"conn": connID, "game_id": tm.gameID})

	return tm.concludeGame(gs, pm, winnerSign, OutcomeGiveUp, "give_up", nil)
}

// CheckVictory runs the end-of-game path when a winner exists on the
// bear-off counters. finalBotTurn, when non-nil, is attached to the winner
// payload so clients can animate the bot's final ply.
func (tm *TurnManager) CheckVictory(gs *GameState, pm *PlayerManager, finalBotTurn backgammon.Turn) ([]Notification, bool) {
	winnerSign := backgammon.Winner(gs.BorneOffWhite, gs.BorneOffBlack)
	if winnerSign == 0 {
		return nil, false
	}
	notifications := tm.concludeGame(gs, pm, winnerSign, OutcomeWin, "", finalBotTurn)
	return notifications, true
}

// concludeGame transitions to FINISHED, applies rewards, records stats,
// notifies every seat and schedules registry removal. Entering twice is a
// no-op: the forward-only state machine refuses the second transition, so
// give-up racing the disconnect timer cannot double-credit.
func (tm *TurnManager) concludeGame(gs *GameState, pm *PlayerManager, winnerSign int, outcome, reason string, finalBotTurn backgammon.Turn) []Notification {
	if !gs.Machine.Advance(statemachine.Finished) {
		return nil
	}

	tm.log.Infof("game %s over, winner sign %d (%s)", tm.gameID, winnerSign, outcome)
	tm.events.LogEvent("GAME_END", "winner sign "+signString(winnerSign),
		map[string]string{"game_id": tm.gameID})

	tm.applyRewards(pm, winnerSign, outcome)

	payload := GameOverPayload{Winner: winnerSign, Reason: reason, BotTurn: finalBotTurn}
	var notifications []Notification
	for _, connID := range pm.ConnectedConnIDs() {
		notifications = append(notifications, Notification{Event: EventGameOver, Payload: payload, Target: connID})
	}

	if tm.finalize != nil {
		tm.finalize(tm.gameID)
	}
	return notifications
}

// applyRewards credits the winner and debits the loser, then appends the
// match stats record.
func (tm *TurnManager) applyRewards(pm *PlayerManager, winnerSign int, outcome string) {
	winner, loser := pm.UsernamesForResult(winnerSign)

	if winner != "" {
		tm.stats.UpdateStats(winner, tm.cfg.EloRewardWin, tm.cfg.MoneyRewardWin)
	}
	if loser != "" {
		tm.stats.UpdateStats(loser, tm.cfg.EloPenaltyLoss, 0)
	}
	tm.stats.LogMatch(MatchStats{
		GameID:          tm.gameID,
		Mode:            modeLabel(tm.mode),
		Outcome:         outcome,
		Winner:          winner,
		Loser:           loser,
		EloChangeWinner: tm.cfg.EloRewardWin,
		EloChangeLoser:  tm.cfg.EloPenaltyLoss,
	})
}

// insertDieSorted re-inserts an undone die, keeping the vector descending
// so clients render the larger die first.
func insertDieSorted(dice []int, die int) []int {
	out := append(append([]int(nil), dice...), die)
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// removeDie drops one occurrence of die from the vector.
func removeDie(dice []int, die int) []int {
	out := make([]int, 0, len(dice))
	removed := false
	for _, d := range dice {
		if !removed && d == die {
			removed = true
			continue
		}
		out = append(out, d)
	}
	return out
}

func signString(sign int) string {
	if sign == backgammon.White {
		return "+1"
	}
	return "-1"
}

func modeLabel(mode string) string {
	if mode == ModePvE {
		return "PVE"
	}
	return "PVP"
}
