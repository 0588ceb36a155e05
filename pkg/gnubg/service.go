package gnubg

import (
	"fmt"
	"strings"

	"github.com/decred/slog"

	"github.com/vater-v/backgammon-server/pkg/backgammon"
)

// hintSentinel marks the line carrying the engine's best move.
const hintSentinel = "1. Cubeful"

// Service asks the external engine for a full-turn recommendation and
// reconciles it against the rule engine's enumeration so that only
// canonical turns are ever committed.
type Service struct {
	runner Runner
	log    slog.Logger
}

// NewService creates a Service around the given runner.
func NewService(runner Runner, log slog.Logger) *Service {
	return &Service{runner: runner, log: log}
}

// Turn returns the canonical turn the engine recommends for the position,
// or nil when the mover has no legal moves. A recommendation that cannot be
// matched to any enumerated turn is a hard synchronization failure.
func (s *Service) Turn(board backgammon.Board, dice []int, botSign int) (backgammon.Turn, error) {
	if len(dice) == 0 {
		return nil, nil
	}

	allTurns := backgammon.AllTurns(board, dice, botSign)
	if !backgammon.MovesAvailable(allTurns) {
		s.log.Debugf("no legal turns for sign %d with dice %v", botSign, dice)
		return nil, nil
	}

	pid, err := PositionID(board, botSign)
	if err != nil {
		return nil, err
	}

	// gnubg indexes players 0/1; the API index and the console "set turn"
	// index are opposite for the same mover.
	apiIndex := 0
	consoleIndex := 1
	if botSign == backgammon.Black {
		apiIndex = 1
		consoleIndex = 0
	}

	die2 := 0
	if len(dice) > 1 {
		die2 = dice[1]
	}
	mid := MatchID(MatchState{
		CubeValue:  1,
		CubeOwner:  3,
		OnRoll:     apiIndex,
		TurnToMove: apiIndex,
		GameState:  1,
		Die1:       dice[0],
		Die2:       die2,
	})

	script := fmt.Sprintf(
		"set matchid %s\nset board %s\nset turn %d\nswap players\nhint 1\nexit\n",
		mid, pid, consoleIndex)

	output, err := s.runner.Run(script)
	if err != nil {
		return nil, err
	}
	if output == "" {
		return nil, fmt.Errorf("engine returned no output")
	}

	var hintLine string
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, hintSentinel) {
			hintLine = line
			break
		}
	}
	if hintLine == "" {
		return nil, fmt.Errorf("no %q hint line in engine output", hintSentinel)
	}

	moveText := ExtractMoveIsland(hintLine)
	if moveText == "" {
		return nil, fmt.Errorf("no move text in hint line %q", hintLine)
	}
	s.log.Debugf("engine hinted %q for sign %d dice %v", moveText, botSign, dice)

	parsed := ParseAtomicSteps(moveText, botSign)
	turn := Reconcile(parsed, allTurns)
	if turn == nil {
		return nil, fmt.Errorf("engine move %q does not match any legal turn", moveText)
	}
	return turn, nil
}

// Reconcile matches a parsed atomic step list against the enumerated turns:
// first by direct sorted equality, then by comparing reduced forms. Returns
// the matching canonical turn, or nil.
func Reconcile(parsed []backgammon.Step, turns []backgammon.Turn) backgammon.Turn {
	parsedSorted := sortSteps(parsed)
	parsedReduced := sortSteps(ReduceTurn(parsed))

	for _, turn := range turns {
		if stepsEqual(sortSteps(turn), parsedSorted) {
			return turn
		}
		if stepsEqual(sortSteps(ReduceTurn(turn)), parsedReduced) {
			return turn
		}
	}
	return nil
}
