package backgammon

// searchNode is one frontier entry of the turn enumeration: the steps taken
// so far, the dice they consumed, the dice still unspent, and the resulting
// board.
type searchNode struct {
	steps     Turn
	diceUsed  []int
	remaining []int
	board     Board
}

// AllTurns enumerates every legal full turn for the given dice, applying the
// canonical constraints of short backgammon: maximal sequences only, the
// larger die when only one die can be played, and bar re-entry before any
// other step.
func AllTurns(b Board, dice []int, sign int) []Turn {
	type terminal struct {
		steps    Turn
		diceUsed []int
	}
	var terminals []terminal

	stack := []searchNode{{remaining: dice, board: b}}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		expanded := false
		for _, die := range distinct(node.remaining) {
			for _, step := range singleSteps(node.board, die, sign) {
				expanded = true
				stack = append(stack, searchNode{
					steps:     appendStep(node.steps, step),
					diceUsed:  appendDie(node.diceUsed, die),
					remaining: removeDie(node.remaining, die),
					board:     ApplyStep(node.board, step, sign),
				})
			}
		}
		if !expanded {
			terminals = append(terminals, terminal{steps: node.steps, diceUsed: node.diceUsed})
		}
	}

	maxLen := 0
	for _, t := range terminals {
		if len(t.steps) > maxLen {
			maxLen = len(t.steps)
		}
	}
	if maxLen == 0 {
		return nil
	}

	var maximal []terminal
	for _, t := range terminals {
		if len(t.steps) == maxLen {
			maximal = append(maximal, t)
		}
	}

	// Larger-die rule: on a non-double pair where only one die is playable,
	// the higher die must be played if it can be.
	isDouble := len(dice) > 2 && allEqual(dice)
	if !isDouble && len(dice) == 2 && maxLen == 1 {
		higher := dice[0]
		if dice[1] > higher {
			higher = dice[1]
		}
		higherPossible := false
		for _, t := range maximal {
			if t.diceUsed[0] == higher {
				higherPossible = true
				break
			}
		}
		if higherPossible {
			var turns []Turn
			for _, t := range maximal {
				if t.diceUsed[0] == higher {
					turns = append(turns, t.steps)
				}
			}
			return turns
		}
	}

	turns := make([]Turn, 0, len(maximal))
	for _, t := range maximal {
		turns = append(turns, t.steps)
	}
	return turns
}

// MovesAvailable reports whether any enumerated turn exists.
func MovesAvailable(turns []Turn) bool {
	return len(turns) > 0
}

// singleSteps returns every legal single step for one die. A checker on the
// bar must re-enter before anything else moves.
func singleSteps(b Board, die, sign int) []Step {
	var steps []Step

	bar := BarFor(sign)
	if b[bar]*sign > 0 {
		var to int
		if sign == White {
			to = BarWhite - die
		} else {
			to = die
		}
		if b[to]*sign >= -1 {
			steps = append(steps, Step{From: bar, To: to})
		}
		return steps
	}

	outerLo, outerHi := outerRange(sign)
	allHome := true
	for i := outerLo; i <= outerHi; i++ {
		if b[i]*sign > 0 {
			allHome = false
			break
		}
	}

	tray := TrayFor(sign)
	for from := Point1; from <= Point24; from++ {
		if b[from]*sign <= 0 {
			continue
		}
		to := from - die*sign

		if to >= Point1 && to <= Point24 {
			if b[to]*sign >= -1 {
				steps = append(steps, Step{From: from, To: to})
			}
			continue
		}

		if !allHome {
			continue
		}
		overEdge := (sign == White && to <= TrayWhite) || (sign == Black && to > Point24)
		if !overEdge {
			continue
		}

		exact := (sign == White && from == die) || (sign == Black && from == Point24-die+1)
		if exact {
			steps = append(steps, Step{From: from, To: tray})
			continue
		}

		// Overshoot is only allowed from the point farthest from home.
		furthest := true
		if sign == White {
			for i := from + 1; i <= Point24; i++ {
				if b[i]*sign > 0 {
					furthest = false
					break
				}
			}
		} else {
			for i := Point1; i < from; i++ {
				if b[i]*sign > 0 {
					furthest = false
					break
				}
			}
		}
		if furthest {
			steps = append(steps, Step{From: from, To: tray})
		}
	}
	return steps
}

func distinct(dice []int) []int {
	var out []int
	seen := [7]bool{}
	for _, d := range dice {
		if d >= 1 && d <= 6 && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

func allEqual(dice []int) bool {
	for _, d := range dice[1:] {
		if d != dice[0] {
			return false
		}
	}
	return true
}

func appendStep(steps Turn, s Step) Turn {
	out := make(Turn, len(steps), len(steps)+1)
	copy(out, steps)
	return append(out, s)
}

func appendDie(dice []int, d int) []int {
	out := make([]int, len(dice), len(dice)+1)
	copy(out, dice)
	return append(out, d)
}

func removeDie(dice []int, d int) []int {
	out := make([]int, 0, len(dice))
	removed := false
	for _, v := range dice {
		if !removed && v == d {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out
}
