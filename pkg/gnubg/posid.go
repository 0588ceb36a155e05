// Package gnubg drives an external GNU Backgammon process to pick bot moves:
// it encodes positions into gnubg's identifier formats, feeds the engine a
// fixed command script over stdin, and parses the hinted move back into the
// server's board coordinates.
package gnubg

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"github.com/vater-v/backgammon-server/pkg/backgammon"
)

// PositionID encodes the board into gnubg's 14-character position
// identifier. Each side's points are written in player-relative orientation
// (the mover forward 1..24, the opponent reversed), each point as N ones
// followed by a zero, then the side's bar; the bit string is padded to 80
// bits, packed little-endian within each byte, and base64 encoded without
// padding.
func PositionID(b backgammon.Board, onRoll int) (string, error) {
	if onRoll != backgammon.White && onRoll != backgammon.Black {
		return "", fmt.Errorf("on-roll sign must be +1 or -1, got %d", onRoll)
	}

	var bits []byte
	writeSide := func(points []int, bar, sign int) {
		for _, i := range points {
			if count := b[i] * sign; count > 0 {
				for j := 0; j < count; j++ {
					bits = append(bits, 1)
				}
			}
			bits = append(bits, 0)
		}
		if count := b[bar] * sign; count > 0 {
			for j := 0; j < count; j++ {
				bits = append(bits, 1)
			}
		}
		bits = append(bits, 0)
	}

	forward := make([]int, 0, 24)
	reversed := make([]int, 0, 24)
	for i := 1; i <= 24; i++ {
		forward = append(forward, i)
		reversed = append(reversed, 25-i)
	}

	if onRoll == backgammon.White {
		writeSide(reversed, backgammon.BarBlack, backgammon.Black)
		writeSide(forward, backgammon.BarWhite, backgammon.White)
	} else {
		writeSide(forward, backgammon.BarWhite, backgammon.White)
		writeSide(reversed, backgammon.BarBlack, backgammon.Black)
	}

	// Legal positions never exceed 80 bits; a longer string means the board
	// violates checker conservation.
	if len(bits) > 80 {
		return "", fmt.Errorf("position bit string is %d bits, board is corrupt", len(bits))
	}
	for len(bits) < 80 {
		bits = append(bits, 0)
	}

	packed := make([]byte, 10)
	for i := 0; i < 10; i++ {
		var v byte
		for j := 0; j < 8; j++ {
			if bits[i*8+j] == 1 {
				v |= 1 << j
			}
		}
		packed[i] = v
	}

	id := base64.StdEncoding.EncodeToString(packed)
	return strings.TrimRight(id, "="), nil
}

// MatchState holds the match-level fields gnubg packs into its match
// identifier. For this server everything but the dice and the player on
// roll is fixed: money play, centered cube at 1.
type MatchState struct {
	Score0        int
	Score1        int
	MatchLength   int
	CubeValue     int
	CubeOwner     int
	OnRoll        int
	TurnToMove    int
	GameState     int
	Crawford      bool
	DoubleOffered bool
	ResignOffered int
	Die1          int
	Die2          int
	JacobyOff     bool
}

// MatchID encodes the match state into gnubg's 12-character identifier: a
// 72-bit key laid out at gnubg's fixed offsets, serialized as 9 bytes
// little-endian and base64 encoded.
func MatchID(ms MatchState) string {
	key := new(big.Int)
	setField := func(value int64, offset, width uint) {
		mask := int64(1)<<width - 1
		v := big.NewInt(value & mask)
		key.Or(key, v.Lsh(v, offset))
	}

	cubeValue := ms.CubeValue
	if cubeValue < 1 {
		cubeValue = 1
	}
	cubeLog := 0
	for v := cubeValue; v > 1; v >>= 1 {
		cubeLog++
	}

	setField(int64(cubeLog), 0, 4)
	setField(int64(ms.CubeOwner), 4, 2)
	setField(int64(ms.OnRoll), 6, 1)
	setField(boolBit(ms.Crawford), 7, 1)
	setField(int64(ms.GameState), 8, 3)
	setField(int64(ms.TurnToMove), 11, 1)
	setField(boolBit(ms.DoubleOffered), 12, 1)
	setField(int64(ms.ResignOffered), 13, 2)
	setField(int64(ms.Die1), 15, 3)
	setField(int64(ms.Die2), 18, 3)
	setField(int64(ms.MatchLength), 21, 15)
	setField(int64(ms.Score0), 36, 15)
	setField(int64(ms.Score1), 51, 15)
	setField(boolBit(ms.JacobyOff), 66, 1)

	buf := make([]byte, 9)
	raw := key.Bytes() // big-endian
	for i, b := range raw {
		buf[len(raw)-1-i] = b
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func boolBit(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
