package backgammon

// Player signs. White checkers are stored as positive counts, Black as
// negative; every rule-engine function takes the mover's sign.
const (
	White = 1
	Black = -1
)

// Board slot indices. Slots 1..24 are points; the remaining four slots hold
// the bear-off trays and the bars.
const (
	TrayWhite = 0
	Point1    = 1
	Point24   = 24
	BarWhite  = 25
	TrayBlack = 26
	BarBlack  = 27

	NumSlots = 28
)

// WinningScore is the number of borne-off checkers that ends the game.
const WinningScore = 15

// Board is the 28-slot position vector. board[i] > 0 means White owns slot i
// with that many checkers, < 0 means Black.
type Board [NumSlots]int

// Step is a single checker movement from one slot to another.
type Step struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Turn is an ordered sequence of steps played with one dice roll.
type Turn []Step

// MoveRecord captures one committed step so it can be undone.
type MoveRecord struct {
	Step    Step `json:"step"`
	DieUsed int  `json:"die_used"`
	WasBlot bool `json:"was_blot"`
}

// StandardWhiteSetup and StandardBlackSetup map point -> checker count for
// the short backgammon starting position.
var (
	StandardWhiteSetup = map[int]int{24: 2, 13: 5, 8: 3, 6: 5}
	StandardBlackSetup = map[int]int{1: 2, 12: 5, 17: 3, 19: 5}
)

// NewBoard returns the starting position.
func NewBoard() Board {
	var b Board
	for point, count := range StandardWhiteSetup {
		b[point] = count * White
	}
	for point, count := range StandardBlackSetup {
		b[point] = count * Black
	}
	return b
}

// BarFor returns the bar slot index for the given player sign.
func BarFor(sign int) int {
	if sign == White {
		return BarWhite
	}
	return BarBlack
}

// TrayFor returns the bear-off tray slot index for the given player sign.
func TrayFor(sign int) int {
	if sign == White {
		return TrayWhite
	}
	return TrayBlack
}

// homeRange returns the inclusive point range of the player's home board.
func homeRange(sign int) (int, int) {
	if sign == White {
		return 1, 6
	}
	return 19, 24
}

// outerRange returns the inclusive point range outside the player's home
// board, used for the all-checkers-home test before bearing off.
func outerRange(sign int) (int, int) {
	if sign == White {
		return 7, 24
	}
	return 1, 18
}

// ApplyStep returns a new board with the step applied for the given mover.
// Landing on an opponent blot sends that checker to the opponent's bar.
// The step is assumed legal; callers validate via MoveDetails first.
func ApplyStep(b Board, step Step, sign int) Board {
	next := b
	next[step.From] -= sign

	switch {
	case step.To >= Point1 && step.To <= Point24:
		if next[step.To]*sign == -1 {
			next[BarFor(-sign)] -= sign
			next[step.To] = sign
		} else if next[step.To]*sign >= 0 {
			next[step.To] += sign
		}
	case step.To == TrayWhite || step.To == TrayBlack:
		next[step.To] += sign
	}
	return next
}

// UndoStep inverts ApplyStep using the recorded blot flag, returning the
// restored board and adjusted bear-off counters.
func UndoStep(b Board, rec MoveRecord, sign, borneWhite, borneBlack int) (Board, int, int) {
	next := b
	from, to := rec.Step.From, rec.Step.To

	if to >= Point1 && to <= Point24 {
		next[to] -= sign
	}
	if to == TrayWhite || to == TrayBlack {
		next[to] -= sign
	}
	if sign == White && to == TrayWhite {
		borneWhite--
	} else if sign == Black && to == TrayBlack {
		borneBlack--
	}

	if rec.WasBlot {
		next[BarFor(-sign)] += sign
		next[to] -= sign
	}

	if from == BarWhite || from == BarBlack || (from >= Point1 && from <= Point24) {
		next[from] += sign
	}
	return next, borneWhite, borneBlack
}

// Winner returns White, Black, or 0 depending on the bear-off counters.
func Winner(borneWhite, borneBlack int) int {
	if borneWhite >= WinningScore {
		return White
	}
	if borneBlack >= WinningScore {
		return Black
	}
	return 0
}
