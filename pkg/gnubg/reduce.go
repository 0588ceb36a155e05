package gnubg

import (
	"sort"

	"github.com/vater-v/backgammon-server/pkg/backgammon"
)

// ReduceTurn collapses chains of atomic steps into gross from/to segments:
// a step whose source is not the destination of any remaining step heads a
// chain, which is extended through steps departing from its current tail.
// [{12,17} {12,17} {14,19} {19,24}] reduces to [{12,17} {12,17} {14,24}].
func ReduceTurn(steps []backgammon.Step) []backgammon.Step {
	if len(steps) == 0 {
		return nil
	}

	remaining := append([]backgammon.Step(nil), steps...)
	var reduced []backgammon.Step

	for len(remaining) > 0 {
		destinations := make(map[int]bool, len(remaining))
		for _, s := range remaining {
			destinations[s.To] = true
		}

		headIdx := -1
		for i, s := range remaining {
			if !destinations[s.From] {
				headIdx = i
				break
			}
		}
		if headIdx < 0 {
			// Cyclic leftovers cannot chain; keep them as-is.
			reduced = append(reduced, remaining...)
			break
		}

		head := remaining[headIdx]
		remaining = append(remaining[:headIdx], remaining[headIdx+1:]...)
		from, tail := head.From, head.To

		for {
			nextIdx := -1
			for i, s := range remaining {
				if s.From == tail {
					nextIdx = i
					break
				}
			}
			if nextIdx < 0 {
				break
			}
			tail = remaining[nextIdx].To
			remaining = append(remaining[:nextIdx], remaining[nextIdx+1:]...)
		}

		reduced = append(reduced, backgammon.Step{From: from, To: tail})
	}
	return reduced
}

// sortSteps orders steps by (from, to) for order-insensitive comparison.
func sortSteps(steps []backgammon.Step) []backgammon.Step {
	out := append([]backgammon.Step(nil), steps...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

func stepsEqual(a, b []backgammon.Step) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
