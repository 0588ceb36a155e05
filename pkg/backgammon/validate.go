package backgammon

import "math/rand"

// MoveDetails validates one step against the enumerated turns. It returns
// whether the step is the legal head of some turn, which die it consumes,
// and whether the destination holds an opponent blot.
func MoveDetails(b Board, dice []int, sign int, step Step, turns []Turn) (valid bool, dieUsed int, wasBlot bool) {
	for _, turn := range turns {
		if len(turn) > 0 && turn[0] == step {
			valid = true
			break
		}
	}
	if !valid {
		return false, 0, false
	}

	if step.To >= Point1 && step.To <= Point24 && b[step.To] == -sign {
		wasBlot = true
	}

	for _, die := range distinct(dice) {
		for _, candidate := range singleSteps(b, die, sign) {
			if candidate == step {
				return true, die, wasBlot
			}
		}
	}
	// Unreachable when turns was produced from (b, dice, sign).
	return false, 0, false
}

// RollDice returns two uniform 1..6 pips.
func RollDice() []int {
	return []int{rand.Intn(6) + 1, rand.Intn(6) + 1}
}

// ExpandRoll duplicates a double so the turn has four plays of the pip.
func ExpandRoll(dice []int) []int {
	out := make([]int, len(dice))
	copy(out, dice)
	if len(out) == 2 && out[0] == out[1] {
		out = append(out, out...)
	}
	return out
}
