package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vater-v/backgammon-server/pkg/backgammon"
)

// collectBotTurn drains the queue until turn_finished or game_over shows
// up, or the timeout passes.
func collectBotTurn(t *testing.T, h *harness) []Notification {
	t.Helper()
	var out []Notification
	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-h.queue.ch:
			require.NotNil(t, n)
			out = append(out, *n)
			if n.Event == EventTurnFinished || n.Event == EventGameOver {
				return out
			}
		case <-deadline:
			t.Fatalf("bot turn did not complete, got %d notifications", len(out))
		}
	}
}

func TestBotTurnPipeline(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvESession("h1")
	session.state.Turn = backgammon.Black

	session.mu.Lock()
	session.ai.TriggerBotTurn(session.state, session.players)
	session.mu.Unlock()

	ns := collectBotTurn(t, h)
	require.GreaterOrEqual(t, len(ns), 2)

	// The stream is roll, then per-step events, then the handover.
	require.Equal(t, EventBotDiceRollResult, ns[0].Event)
	require.Equal(t, "h1", ns[0].Target)
	require.Equal(t, EventTurnFinished, ns[len(ns)-1].Event)

	for _, n := range ns[1 : len(ns)-1] {
		require.Equal(t, EventOnOpponentStepExecuted, n.Event)
		payload := n.Payload.(OpponentStepPayload)
		require.True(t, payload.IsBotMove)
	}

	// The turn came back to the human with the dice cleared.
	session.mu.Lock()
	defer session.mu.Unlock()
	require.Equal(t, backgammon.White, session.state.Turn)
	require.Empty(t, session.state.Dice)
}

func TestBotTurnEngineFailurePassesTurnBack(t *testing.T) {
	h := newHarness(&fixedMover{err: fmt.Errorf("engine crashed")})
	session := h.playingPvESession("h1")
	session.state.Turn = backgammon.Black

	session.mu.Lock()
	session.ai.TriggerBotTurn(session.state, session.players)
	session.mu.Unlock()

	ns := collectBotTurn(t, h)
	require.Equal(t, EventBotDiceRollResult, ns[0].Event)
	require.Equal(t, EventTurnFinished, ns[len(ns)-1].Event)
	// No step events: the failure degrades to "no moves".
	require.Len(t, ns, 2)

	session.mu.Lock()
	defer session.mu.Unlock()
	require.Equal(t, backgammon.White, session.state.Turn)
}

func TestBotTurnRejectsNonCanonicalTurn(t *testing.T) {
	// A mover answering with an illegal turn is discarded and treated as
	// "no moves".
	h := newHarness(&fixedMover{turn: backgammon.Turn{{From: 3, To: 1}}})
	session := h.playingPvESession("h1")
	session.state.Turn = backgammon.Black

	session.mu.Lock()
	session.ai.TriggerBotTurn(session.state, session.players)
	session.mu.Unlock()

	ns := collectBotTurn(t, h)
	require.Len(t, ns, 2)
	require.Equal(t, EventBotDiceRollResult, ns[0].Event)
	require.Equal(t, EventTurnFinished, ns[1].Event)
}

func TestBotVictoryMidSequenceCarriesFinalTurn(t *testing.T) {
	h := newHarness(nil)
	session := h.playingPvESession("h1")

	// Black one checker from victory, bearing off from 24.
	var b backgammon.Board
	b[24] = -1
	b[6] = 5
	session.state.Board = b
	session.state.BorneOffBlack = 14
	session.state.Turn = backgammon.Black

	session.mu.Lock()
	session.ai.TriggerBotTurn(session.state, session.players)
	session.mu.Unlock()

	ns := collectBotTurn(t, h)
	last := ns[len(ns)-1]
	require.Equal(t, EventGameOver, last.Event)

	payload := last.Payload.(GameOverPayload)
	require.Equal(t, backgammon.Black, payload.Winner)
	require.NotEmpty(t, payload.BotTurn)

	updates := h.stats.Updates()
	require.Contains(t, updates, statUpdate{"Bot_Easy", h.cfg.EloRewardWin, h.cfg.MoneyRewardWin})
	require.Nil(t, h.registry.ByID(session.ID))
}
