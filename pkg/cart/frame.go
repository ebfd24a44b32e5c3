package cart

import (
	"errors"
	"fmt"
	"strconv"
)

// Frame delimiters.
const (
	FrameStart = '*'
	FrameEnd   = '#'
)

// ErrMalformedFrame is returned by Decode for input outside the frame grammar.
var ErrMalformedFrame = errors.New("cart: malformed frame")

// field letters in wire order
const fieldLetters = "ABCDEFGHIJ"

// Encode renders s as
//
//	*A{A}B{Throttle}C{C}D{Steering}E{Left}F{Horn}G{Light}H{Right}I{Brake}J{Reverse}#
//
// Values are written as-is; throttle and steering must already be clamped.
func Encode(s State) []byte {
	buf := make([]byte, 0, 32)
	buf = append(buf, FrameStart)
	for i, v := range s.values() {
		buf = append(buf, fieldLetters[i])
		buf = strconv.AppendInt(buf, int64(v), 10)
	}
	return append(buf, FrameEnd)
}

// Decode parses a frame produced by Encode.
func Decode(frame []byte) (State, error) {
	if len(frame) < 2 || frame[0] != FrameStart || frame[len(frame)-1] != FrameEnd {
		return State{}, fmt.Errorf("%w: missing %q/%q delimiters", ErrMalformedFrame, FrameStart, FrameEnd)
	}
	body := frame[1 : len(frame)-1]

	var vals [len(fieldLetters)]int
	pos := 0
	for i := range len(fieldLetters) {
		if pos >= len(body) || body[pos] != fieldLetters[i] {
			return State{}, fmt.Errorf("%w: expected %q at offset %d", ErrMalformedFrame, fieldLetters[i], pos+1)
		}
		pos++
		start := pos
		if pos < len(body) && body[pos] == '-' && signed(i) {
			pos++
		}
		for pos < len(body) && body[pos] >= '0' && body[pos] <= '9' {
			pos++
		}
		v, err := strconv.Atoi(string(body[start:pos]))
		if err != nil {
			return State{}, fmt.Errorf("%w: field %c: %v", ErrMalformedFrame, fieldLetters[i], err)
		}
		if i >= 4 && v != 0 && v != 1 {
			return State{}, fmt.Errorf("%w: field %c must be 0 or 1, got %d", ErrMalformedFrame, fieldLetters[i], v)
		}
		vals[i] = v
	}
	if pos != len(body) {
		return State{}, fmt.Errorf("%w: trailing data at offset %d", ErrMalformedFrame, pos+1)
	}

	return State{
		A:              vals[0],
		Throttle:       vals[1],
		C:              vals[2],
		Steering:       vals[3],
		LeftIndicator:  vals[4] == 1,
		Horn:           vals[5] == 1,
		Light:          vals[6] == 1,
		RightIndicator: vals[7] == 1,
		Brake:          vals[8] == 1,
		Reverse:        vals[9] == 1,
	}, nil
}

// only the reserved A and C fields may carry a sign
func signed(i int) bool {
	return i == 0 || i == 2
}

func (s State) values() [len(fieldLetters)]int {
	return [...]int{
		s.A,
		s.Throttle,
		s.C,
		s.Steering,
		bit(s.LeftIndicator),
		bit(s.Horn),
		bit(s.Light),
		bit(s.RightIndicator),
		bit(s.Brake),
		bit(s.Reverse),
	}
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
