package gnubg

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vater-v/backgammon-server/pkg/backgammon"
)

// gnubg prints moves as whitespace-separated chains like
// "24/18 13/11(2) bar/22*". moveIslandRE finds the span of such chains in a
// hint line.
var moveIslandRE = regexp.MustCompile(
	`(?i)((?:\b(?:bar|off|\d{1,2})\*?(?:/(?:bar|off|\d{1,2})\*?)+(?:\(\d+\))?\s*)+)`)

var segmentRE = regexp.MustCompile(`^(\w+)/(\w+)\*?`)

var multiplierRE = regexp.MustCompile(`\((\d+)\)\s*$`)

// ExtractMoveIsland pulls the move text out of a gnubg hint line. The line
// must contain the "Eq.:" separator; everything to its left is scanned for
// the move chains. Returns "" when no move text is present.
func ExtractMoveIsland(line string) string {
	idx := strings.LastIndex(line, "Eq.:")
	if idx < 0 {
		return ""
	}
	left := strings.TrimRight(line[:idx], " \t")
	m := moveIslandRE.FindString(left)
	return strings.TrimSpace(m)
}

// expandChainToken splits one chain token into its from/to segments. A
// trailing "(n)" repeats the whole chain n times; a "*" marks a hit and is
// preserved on the segment it annotates.
func expandChainToken(token string) []string {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	count := 1
	if m := multiplierRE.FindStringSubmatchIndex(token); m != nil {
		count, _ = strconv.Atoi(token[m[2]:m[3]])
		token = strings.TrimSpace(token[:m[0]])
	}

	parts := strings.Split(token, "/")
	if len(parts) <= 2 {
		out := make([]string, 0, count)
		for i := 0; i < count; i++ {
			out = append(out, token)
		}
		return out
	}

	type node struct {
		name string
		star bool
	}
	nodes := make([]node, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		star := strings.HasSuffix(p, "*")
		if star {
			p = p[:len(p)-1]
		}
		nodes = append(nodes, node{name: p, star: star})
	}

	segs := make([]string, 0, len(nodes)-1)
	for i := 0; i < len(nodes)-1; i++ {
		seg := nodes[i].name + "/" + nodes[i+1].name
		if nodes[i+1].star {
			seg += "*"
		}
		segs = append(segs, seg)
	}

	if count > 1 {
		base := append([]string(nil), segs...)
		for i := 1; i < count; i++ {
			segs = append(segs, base...)
		}
	}
	return segs
}

// ParseAtomicSteps parses a move string into atomic steps in the server's
// coordinate system. gnubg speaks player-relative coordinates with bar=25
// and off=0; for a Black mover every point p becomes 25-p, the bar becomes
// 27 and the tray 26.
func ParseAtomicSteps(moveText string, botSign int) []backgammon.Step {
	var steps []backgammon.Step
	for _, token := range strings.Fields(moveText) {
		if !strings.Contains(token, "/") {
			continue
		}
		for _, seg := range expandChainToken(token) {
			m := segmentRE.FindStringSubmatch(strings.TrimSpace(seg))
			if m == nil {
				continue
			}
			from, ok1 := parsePoint(m[1], backgammon.BarWhite, backgammon.TrayWhite)
			to, ok2 := parsePoint(m[2], backgammon.BarWhite, backgammon.TrayWhite)
			if !ok1 || !ok2 {
				continue
			}
			steps = append(steps, backgammon.Step{From: from, To: to})
		}
	}

	if botSign != backgammon.Black {
		return steps
	}
	converted := make([]backgammon.Step, 0, len(steps))
	for _, s := range steps {
		converted = append(converted, backgammon.Step{
			From: convertForBlack(s.From),
			To:   convertForBlack(s.To),
		})
	}
	return converted
}

func parsePoint(s string, bar, off int) (int, bool) {
	switch strings.ToLower(s) {
	case "bar":
		return bar, true
	case "off":
		return off, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func convertForBlack(p int) int {
	switch {
	case p == backgammon.BarWhite:
		return backgammon.BarBlack
	case p == backgammon.TrayWhite:
		return backgammon.TrayBlack
	case p >= 1 && p <= 24:
		return 25 - p
	}
	return p
}
