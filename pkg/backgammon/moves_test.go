package backgammon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func turnsContain(turns []Turn, want Turn) bool {
	for _, turn := range turns {
		if len(turn) != len(want) {
			continue
		}
		match := true
		for i := range turn {
			if turn[i] != want[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func firstStepsOf(turns []Turn) map[Step]bool {
	out := make(map[Step]bool)
	for _, turn := range turns {
		if len(turn) > 0 {
			out[turn[0]] = true
		}
	}
	return out
}

func TestOpeningRollSixFive(t *testing.T) {
	turns := AllTurns(NewBoard(), []int{6, 5}, White)
	require.NotEmpty(t, turns)

	// The lover's leap must be enumerated.
	require.True(t, turnsContain(turns, Turn{{From: 24, To: 18}, {From: 18, To: 13}}))

	// Play-maximum: no short sequence may survive when two dice are
	// playable.
	for _, turn := range turns {
		require.Len(t, turn, 2)
	}
}

func TestForcedLargerDie(t *testing.T) {
	// One white checker on 24; a black point on 18 blocks the second step
	// of either order, so exactly one die is playable and it must be the 4.
	var b Board
	b[24] = 1
	b[18] = -2

	turns := AllTurns(b, []int{2, 4}, White)
	require.NotEmpty(t, turns)
	for _, turn := range turns {
		require.Len(t, turn, 1)
		require.Equal(t, Step{From: 24, To: 20}, turn[0])
	}
}

func TestBarReentry(t *testing.T) {
	// White on the bar; black holds a blot on 22 and a made point on 24.
	var b Board
	b[BarWhite] = 1
	b[22] = -1
	b[24] = -2
	b[6] = 5 // some white checkers on the board too

	turns := AllTurns(b, []int{3, 1}, White)
	require.NotEmpty(t, turns)

	first := firstStepsOf(turns)
	require.True(t, first[Step{From: BarWhite, To: 22}])
	require.False(t, first[Step{From: BarWhite, To: 24}])

	// Bar-first: every sequence must start from the bar.
	for step := range first {
		require.Equal(t, BarWhite, step.From)
	}

	// The entry is a hit: the blot goes to the black bar.
	valid, dieUsed, wasBlot := MoveDetails(b, []int{3, 1}, White, Step{From: BarWhite, To: 22}, turns)
	require.True(t, valid)
	require.Equal(t, 3, dieUsed)
	require.True(t, wasBlot)

	next := ApplyStep(b, Step{From: BarWhite, To: 22}, White)
	require.Equal(t, -1, next[BarBlack])
}

func TestBearOffWithOvershoot(t *testing.T) {
	// White on 3, 2, 1 with counts 1, 1, 3: pip 6 may only bear off from
	// the farthest point (3); pip 1 bears off exactly from 1.
	var b Board
	b[3] = 1
	b[2] = 1
	b[1] = 3

	turns := AllTurns(b, []int{6, 1}, White)
	require.NotEmpty(t, turns)

	valid, dieUsed, _ := MoveDetails(b, []int{6, 1}, White, Step{From: 3, To: TrayWhite}, turns)
	require.True(t, valid)
	require.Equal(t, 6, dieUsed)

	valid, dieUsed, _ = MoveDetails(b, []int{6, 1}, White, Step{From: 1, To: TrayWhite}, turns)
	require.True(t, valid)
	require.Equal(t, 1, dieUsed)

	// Overshoot from a non-farthest point is illegal.
	valid, _, _ = MoveDetails(b, []int{6, 1}, White, Step{From: 2, To: TrayWhite}, turns)
	require.False(t, valid)
}

func TestDoublesOnlyTwoPlayable(t *testing.T) {
	// Two white checkers on 24 and a black point on 14: each checker plays
	// 24->19 but 19->14 is blocked, so the double 5 yields exactly
	// length-2 sequences.
	var b Board
	b[24] = 2
	b[14] = -2

	dice := ExpandRoll([]int{5, 5})
	require.Len(t, dice, 4)

	turns := AllTurns(b, dice, White)
	require.NotEmpty(t, turns)
	for _, turn := range turns {
		require.Len(t, turn, 2)
	}
}

func TestNoMovesFullyBlocked(t *testing.T) {
	// White on the bar with both entry points held by black.
	var b Board
	b[BarWhite] = 1
	b[22] = -2
	b[20] = -2

	turns := AllTurns(b, []int{3, 5}, White)
	require.Empty(t, turns)
	require.False(t, MovesAvailable(turns))
}

func TestBlackDirectionAndBarEntry(t *testing.T) {
	// Black re-enters from its bar onto the die's point number.
	var b Board
	b[BarBlack] = -1
	b[19] = -5

	turns := AllTurns(b, []int{4, 2}, Black)
	require.NotEmpty(t, turns)
	first := firstStepsOf(turns)
	require.True(t, first[Step{From: BarBlack, To: 4}] || first[Step{From: BarBlack, To: 2}])
	for step := range first {
		require.Equal(t, BarBlack, step.From)
	}
}

func TestCheckerConservationAcrossTurn(t *testing.T) {
	b := NewBoard()
	turns := AllTurns(b, []int{6, 5}, White)
	require.NotEmpty(t, turns)

	// checkerSum includes the trays, so the total never changes.
	for _, turn := range turns {
		current := b
		for _, step := range turn {
			current = ApplyStep(current, step, White)
			require.Equal(t, 15, checkerSum(current, White))
			require.Equal(t, 15, checkerSum(current, Black))
		}
	}
}
