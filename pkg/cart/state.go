// Package cart models the commanded state of the cart and its ASCII wire frame.
package cart

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MinLevel and MaxLevel bound throttle and steering.
	MinLevel = 0
	MaxLevel = 100

	// Neutral is the throttle staging value and the centred steering value.
	Neutral = 50
)

// ErrInvalidInput is returned for throttle/steering values or flag names
// that cannot be applied. The state is never touched when it is returned.
var ErrInvalidInput = errors.New("cart: invalid input")

// State is the full set of commanded cart fields. Every frame carries all of them.
type State struct {
	A        int // reserved, passed through
	Throttle int
	C        int // reserved, passed through
	Steering int

	LeftIndicator  bool
	Horn           bool
	Light          bool
	RightIndicator bool
	Brake          bool
	Reverse        bool
}

// Idle returns the startup state: throttle 0, steering centred, all flags off.
func Idle() State {
	return State{Steering: Neutral}
}

// Clamp limits v to [MinLevel, MaxLevel].
func Clamp(v int) int {
	return max(MinLevel, min(v, MaxLevel))
}

// Flag identifies one of the toggleable boolean fields.
type Flag int

// Toggleable flags, in wire order.
const (
	LeftIndicator Flag = iota + 1
	Horn
	Light
	RightIndicator
	Brake
	Reverse
)

var flagNames = map[Flag]string{
	LeftIndicator:  "Left Indicator",
	Horn:           "Horn",
	Light:          "Lights",
	RightIndicator: "Right Indicator",
	Brake:          "Brake",
	Reverse:        "Reverse",
}

// console aliases accepted by ParseFlag
var flagAliases = map[string]Flag{
	"li":      LeftIndicator,
	"ri":      RightIndicator,
	"lights":  Light,
	"light":   Light,
	"horn":    Horn,
	"brake":   Brake,
	"reverse": Reverse,
}

// AllFlags returns every toggleable flag in wire order.
func AllFlags() []Flag {
	return []Flag{LeftIndicator, Horn, Light, RightIndicator, Brake, Reverse}
}

func (f Flag) String() string {
	if name, ok := flagNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Flag(%d)", int(f))
}

// Valid reports whether f names a toggleable field.
func (f Flag) Valid() bool {
	_, ok := flagNames[f]
	return ok
}

// ParseFlag resolves a console alias such as "li" or "lights".
func ParseFlag(name string) (Flag, error) {
	f, ok := flagAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown flag %q", ErrInvalidInput, name)
	}
	return f, nil
}

// ParseLevel parses a throttle or steering value. Range is not checked;
// callers clamp.
func ParseLevel(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidInput, s)
	}
	return v, nil
}

// Get returns the value of flag f. Unknown flags read as false.
func (s State) Get(f Flag) bool {
	p := s.field(f)
	if p == nil {
		return false
	}
	return *p
}

// Toggle flips flag f and returns its new value.
func (s *State) Toggle(f Flag) (bool, error) {
	p := s.field(f)
	if p == nil {
		return false, fmt.Errorf("%w: %v is not toggleable", ErrInvalidInput, f)
	}
	*p = !*p
	return *p, nil
}

func (s *State) field(f Flag) *bool {
	switch f {
	case LeftIndicator:
		return &s.LeftIndicator
	case Horn:
		return &s.Horn
	case Light:
		return &s.Light
	case RightIndicator:
		return &s.RightIndicator
	case Brake:
		return &s.Brake
	case Reverse:
		return &s.Reverse
	}
	return nil
}
