package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vater-v/backgammon-server/pkg/backgammon"
	"github.com/vater-v/backgammon-server/pkg/statemachine"
)

func notifEvents(ns []Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Event)
	}
	return out
}

func findNotif(ns []Notification, event, target string) *Notification {
	for i := range ns {
		if ns[i].Event == event && (target == "" || ns[i].Target == target) {
			return &ns[i]
		}
	}
	return nil
}

func TestRollDiceHappyPath(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvPSession("w", "b")

	ns := session.RollDice("w")
	require.NotNil(t, findNotif(ns, EventDiceRollResult, "w"))
	require.NotNil(t, findNotif(ns, EventOpponentRollResult, "b"))

	require.NotEmpty(t, session.state.Dice)
	require.Equal(t,
		backgammon.AllTurns(session.state.Board, session.state.Dice, backgammon.White),
		session.state.PossibleTurns)
}

func TestRollDiceRejectsWrongTurn(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvPSession("w", "b")

	ns := session.RollDice("b")
	require.NotNil(t, findNotif(ns, EventMoveRejection, "b"))
	require.Empty(t, session.state.Dice)
}

func TestRollDiceRejectsDoubleRoll(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvPSession("w", "b")

	session.RollDice("w")
	ns := session.RollDice("w")
	require.NotNil(t, findNotif(ns, EventMoveRejection, "w"))
}

func TestRollDiceRejectsOutsidePlaying(t *testing.T) {
	h := newHarness(nil)
	session := h.factory.CreatePvPGame("w", "b", "alice", "bob")

	ns := session.RollDice("w")
	require.NotNil(t, findNotif(ns, EventMoveRejection, "w"))
}

func TestApplyStepCommitsAndNotifies(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvPSession("w", "b")

	session.state.Dice = []int{6, 5}
	session.state.PossibleTurns = backgammon.AllTurns(session.state.Board, session.state.Dice, backgammon.White)

	ns := session.ApplyStep("w", backgammon.Step{From: 24, To: 18})
	accepted := findNotif(ns, EventStepAccepted, "w")
	require.NotNil(t, accepted)
	mirrored := findNotif(ns, EventOpponentStepExecuted, "b")
	require.NotNil(t, mirrored)

	payload := accepted.Payload.(StepAcceptedPayload)
	require.Equal(t, []int{5}, payload.RemainingDice)
	require.True(t, payload.CanUndo)

	require.Len(t, session.state.History, 1)
	require.Equal(t, 6, session.state.History[0].DieUsed)
	require.Equal(t, 1, session.state.Board[18])

	// Dice/history coupling: one die consumed, one record pushed.
	require.Equal(t, 2, len(session.state.History)+len(session.state.Dice))
}

func TestApplyStepRejectsIllegalMove(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvPSession("w", "b")

	session.state.Dice = []int{6, 5}
	session.state.PossibleTurns = backgammon.AllTurns(session.state.Board, session.state.Dice, backgammon.White)

	ns := session.ApplyStep("w", backgammon.Step{From: 24, To: 20})
	require.NotNil(t, findNotif(ns, EventMoveRejection, "w"))
	require.Empty(t, session.state.History)
}

func TestUndoRestoresPosition(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvPSession("w", "b")

	before := session.state.Board
	session.state.Dice = []int{6, 5}
	session.state.PossibleTurns = backgammon.AllTurns(before, session.state.Dice, backgammon.White)

	session.ApplyStep("w", backgammon.Step{From: 24, To: 18})
	ns := session.Undo("w")

	require.NotNil(t, findNotif(ns, EventUndoAccepted, "w"))
	require.NotNil(t, findNotif(ns, EventOpponentUndoExecuted, "b"))

	require.Equal(t, before, session.state.Board)
	require.Equal(t, []int{6, 5}, session.state.Dice)
	require.Empty(t, session.state.History)
	require.Equal(t,
		backgammon.AllTurns(before, []int{6, 5}, backgammon.White),
		session.state.PossibleTurns)
}

func TestUndoRejectsEmptyHistory(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvPSession("w", "b")
	session.state.Dice = []int{3, 1}

	ns := session.Undo("w")
	require.NotNil(t, findNotif(ns, EventMoveRejection, "w"))
}

func TestFinalizeTurnRejectsWithMovesLeft(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvPSession("w", "b")

	session.state.Dice = []int{6, 5}
	session.state.PossibleTurns = backgammon.AllTurns(session.state.Board, session.state.Dice, backgammon.White)

	ns := session.FinalizeTurn("w")
	require.NotNil(t, findNotif(ns, EventMoveRejection, "w"))
	require.Equal(t, backgammon.White, session.state.Turn)
}

func TestFinalizeTurnFlipsTurn(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvPSession("w", "b")

	// No dice, no moves left: the turn may be finalized.
	ns := session.FinalizeTurn("w")
	require.Equal(t, []string{EventTurnFinished, EventTurnFinished}, notifEvents(ns))
	require.Equal(t, backgammon.Black, session.state.Turn)
	require.Empty(t, session.state.Dice)
	require.Empty(t, session.state.History)
}

func TestGiveUpAwardsOpponent(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvPSession("w", "b")

	ns := session.GiveUp("w")
	over := findNotif(ns, EventGameOver, "")
	require.NotNil(t, over)
	payload := over.Payload.(GameOverPayload)
	require.Equal(t, backgammon.Black, payload.Winner)
	require.Equal(t, "give_up", payload.Reason)

	updates := h.stats.Updates()
	require.Contains(t, updates, statUpdate{"bob", h.cfg.EloRewardWin, h.cfg.MoneyRewardWin})
	require.Contains(t, updates, statUpdate{"alice", h.cfg.EloPenaltyLoss, 0})

	matches := h.stats.Matches()
	require.Len(t, matches, 1)
	require.Equal(t, OutcomeGiveUp, matches[0].Outcome)
	require.Equal(t, "bob", matches[0].Winner)

	// Session removed from every registry index.
	require.Nil(t, h.registry.ByID(session.ID))
	require.Nil(t, h.registry.ByConn("w"))
	require.Empty(t, h.registry.GameIDByUsername("alice"))
}

func TestVictoryPathIsSingleShot(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvPSession("w", "b")

	session.GiveUp("w")
	// A second end-of-game entrant is refused by the FINISHED gate.
	ns := session.GiveUp("b")
	require.Empty(t, ns)
	require.Len(t, h.stats.Matches(), 1)
}

func TestStepVictoryEmitsOnlyGameOver(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvPSession("w", "b")

	// White one step from victory: last checker on point 1.
	var b backgammon.Board
	b[1] = 1
	b[19] = -5
	session.state.Board = b
	session.state.BorneOffWhite = 14
	session.state.Dice = []int{2, 1}
	session.state.PossibleTurns = backgammon.AllTurns(b, session.state.Dice, backgammon.White)

	ns := session.ApplyStep("w", backgammon.Step{From: 1, To: backgammon.TrayWhite})
	for _, n := range ns {
		require.Equal(t, EventGameOver, n.Event)
	}
	require.Equal(t, statemachine.Finished, session.state.Machine.Current())
	require.Equal(t, 15, session.state.BorneOffWhite)
}
