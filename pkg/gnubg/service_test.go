package gnubg

import (
	"os"
	"testing"

	"github.com/decred/slog"
	"github.com/stretchr/testify/require"

	"github.com/vater-v/backgammon-server/pkg/backgammon"
)

func testLogger() slog.Logger {
	backend := slog.NewBackend(os.Stderr)
	log := backend.Logger("test")
	log.SetLevel(slog.LevelError)
	return log
}

// scriptedRunner feeds canned engine output and records the script it was
// given.
type scriptedRunner struct {
	output string
	script string
}

func (r *scriptedRunner) Run(script string) (string, error) {
	r.script = script
	return r.output, nil
}

// fixedPosition is a board where white with dice [3,1] has exactly the
// canonical turn 8/5 6/5 among its options.
func fixedPosition() backgammon.Board {
	var b backgammon.Board
	b[8] = 2
	b[6] = 2
	b[24] = -2
	return b
}

func TestReconcileDirectMatch(t *testing.T) {
	b := fixedPosition()
	turns := backgammon.AllTurns(b, []int{3, 1}, backgammon.White)
	require.NotEmpty(t, turns)

	parsed := []backgammon.Step{{From: 8, To: 5}, {From: 6, To: 5}}
	canonical := Reconcile(parsed, turns)
	require.NotNil(t, canonical)
	require.ElementsMatch(t, parsed, []backgammon.Step(canonical))
}

func TestReconcileReducedMatch(t *testing.T) {
	// A chained rendition of the same point-to-point movement must resolve
	// to the same canonical turn.
	var b backgammon.Board
	b[24] = 1
	b[13] = 1
	b[5] = -2

	turns := backgammon.AllTurns(b, []int{6, 5}, backgammon.White)
	require.NotEmpty(t, turns)

	// Both halves printed as the single chain 24/13.
	parsed := ParseAtomicSteps("24/13", backgammon.White)
	canonical := Reconcile(parsed, turns)
	require.NotNil(t, canonical)
	require.Len(t, canonical, 2)
	require.Equal(t, []backgammon.Step{{From: 24, To: 13}}, ReduceTurn(canonical))
}

func TestReconcileNoMatch(t *testing.T) {
	b := fixedPosition()
	turns := backgammon.AllTurns(b, []int{3, 1}, backgammon.White)
	parsed := []backgammon.Step{{From: 24, To: 21}}
	require.Nil(t, Reconcile(parsed, turns))
}

func TestServiceTurnParsesHint(t *testing.T) {
	runner := &scriptedRunner{output: `GNU Backgammon  Position ID: xxxx
    1. Cubeful 2-ply    8/5 6/5                    Eq.:  +0.124
    2. Cubeful 2-ply    8/5 8/7                    Eq.:  +0.011
`}
	svc := NewService(runner, testLogger())

	turn, err := svc.Turn(fixedPosition(), []int{3, 1}, backgammon.White)
	require.NoError(t, err)
	require.NotNil(t, turn)
	require.ElementsMatch(t,
		[]backgammon.Step{{From: 8, To: 5}, {From: 6, To: 5}},
		[]backgammon.Step(turn))

	// The command script carries the fixed sequence.
	require.Contains(t, runner.script, "set matchid ")
	require.Contains(t, runner.script, "set board ")
	require.Contains(t, runner.script, "swap players")
	require.Contains(t, runner.script, "hint 1")
	require.Contains(t, runner.script, "exit")
}

func TestServiceTurnStepOrder(t *testing.T) {
	// The engine may list the steps of the same ply in another order;
	// reconciliation must land on the identical canonical turn.
	runner := &scriptedRunner{output: `    1. Cubeful 2-ply    8/5 6/5    Eq.: +0.1`}
	reordered := &scriptedRunner{output: `    1. Cubeful 2-ply    6/5 8/5    Eq.: +0.1`}

	svc := NewService(runner, testLogger())
	turnA, err := svc.Turn(fixedPosition(), []int{3, 1}, backgammon.White)
	require.NoError(t, err)

	svc = NewService(reordered, testLogger())
	turnB, err := svc.Turn(fixedPosition(), []int{3, 1}, backgammon.White)
	require.NoError(t, err)

	require.ElementsMatch(t, []backgammon.Step(turnA), []backgammon.Step(turnB))
}

func TestServiceTurnNoDice(t *testing.T) {
	svc := NewService(&scriptedRunner{}, testLogger())
	turn, err := svc.Turn(fixedPosition(), nil, backgammon.White)
	require.NoError(t, err)
	require.Nil(t, turn)
}

func TestServiceTurnNoLegalMoves(t *testing.T) {
	// White fully blocked on the bar: the service answers nil without ever
	// spawning the engine.
	var b backgammon.Board
	b[backgammon.BarWhite] = 1
	b[22] = -2
	b[24] = -2

	runner := &scriptedRunner{}
	svc := NewService(runner, testLogger())
	turn, err := svc.Turn(b, []int{3, 1}, backgammon.White)
	require.NoError(t, err)
	require.Nil(t, turn)
	require.Empty(t, runner.script)
}

func TestServiceTurnSyncFailure(t *testing.T) {
	// A hint that cannot be reconciled is a hard error.
	runner := &scriptedRunner{output: `    1. Cubeful 2-ply    24/21    Eq.: +0.1`}
	svc := NewService(runner, testLogger())

	_, err := svc.Turn(fixedPosition(), []int{3, 1}, backgammon.White)
	require.Error(t, err)
}

func TestServiceTurnMissingHint(t *testing.T) {
	runner := &scriptedRunner{output: "The engine printed nothing useful\n"}
	svc := NewService(runner, testLogger())

	_, err := svc.Turn(fixedPosition(), []int{3, 1}, backgammon.White)
	require.Error(t, err)
}
