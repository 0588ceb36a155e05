package backgammon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMoveDetailsValidStep(t *testing.T) {
	b := NewBoard()
	dice := []int{6, 5}
	turns := AllTurns(b, dice, White)

	valid, dieUsed, wasBlot := MoveDetails(b, dice, White, Step{From: 24, To: 18}, turns)
	require.True(t, valid)
	require.Equal(t, 6, dieUsed)
	require.False(t, wasBlot)
}

func TestMoveDetailsInvalidStep(t *testing.T) {
	b := NewBoard()
	dice := []int{6, 5}
	turns := AllTurns(b, dice, White)

	// 24->20 would need a 4 that was not rolled.
	valid, _, _ := MoveDetails(b, dice, White, Step{From: 24, To: 20}, turns)
	require.False(t, valid)

	// A step that is never the head of any sequence is invalid even if
	// geometrically plausible.
	valid, _, _ = MoveDetails(b, dice, White, Step{From: 3, To: 1}, turns)
	require.False(t, valid)
}

func TestMoveDetailsBlotDetection(t *testing.T) {
	var b Board
	b[10] = 1
	b[7] = -1
	dice := []int{3, 2}
	turns := AllTurns(b, dice, White)

	valid, dieUsed, wasBlot := MoveDetails(b, dice, White, Step{From: 10, To: 7}, turns)
	require.True(t, valid)
	require.Equal(t, 3, dieUsed)
	require.True(t, wasBlot)
}

func TestRollDiceRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		dice := RollDice()
		require.Len(t, dice, 2)
		for _, d := range dice {
			require.GreaterOrEqual(t, d, 1)
			require.LessOrEqual(t, d, 6)
		}
	}
}

func TestExpandRoll(t *testing.T) {
	require.Equal(t, []int{6, 2}, ExpandRoll([]int{6, 2}))
	require.Equal(t, []int{4, 4, 4, 4}, ExpandRoll([]int{4, 4}))
}
