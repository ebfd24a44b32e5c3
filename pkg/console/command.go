// Package console interprets the line commands an operator types to drive
// the cart and renders what happened as log lines.
package console

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gwillem/cartctl/pkg/cart"
)

// ErrUnknownCommand is returned by Parse for a command word it does not know.
var ErrUnknownCommand = errors.New("console: unknown command")

// UsageError is returned when th or st is not followed by exactly one value.
type UsageError struct {
	Command string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Command + " <value> (0 to 100)"
}

// ValueError is returned when a th or st value is not an integer. It
// unwraps to cart.ErrInvalidInput.
type ValueError struct {
	Field string
	Err   error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid %s value: %v", e.Field, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }

// Kind is the action a command line asks for.
type Kind int

const (
	Empty Kind = iota
	Throttle
	Steering
	Toggle
	Show
	Help
	Send
	Quit
)

// Command is one parsed console line.
type Command struct {
	Kind  Kind
	Value int       // Throttle, Steering
	Flag  cart.Flag // Toggle
}

// Parse reads one console line. Input is case-insensitive; a blank line
// parses as Empty.
func Parse(line string) (Command, error) {
	parts := strings.Fields(strings.ToLower(line))
	if len(parts) == 0 {
		return Command{Kind: Empty}, nil
	}

	switch word := parts[0]; word {
	case "quit", "q", "exit":
		return Command{Kind: Quit}, nil
	case "help", "?":
		return Command{Kind: Help}, nil
	case "show":
		return Command{Kind: Show}, nil
	case "send":
		return Command{Kind: Send}, nil
	case "th", "st":
		kind, name := Throttle, "throttle"
		if word == "st" {
			kind, name = Steering, "steering"
		}
		if len(parts) != 2 {
			return Command{}, &UsageError{Command: word}
		}
		v, err := cart.ParseLevel(parts[1])
		if err != nil {
			return Command{}, &ValueError{Field: name, Err: err}
		}
		return Command{Kind: kind, Value: v}, nil
	default:
		f, err := cart.ParseFlag(word)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, word)
		}
		return Command{Kind: Toggle, Flag: f}, nil
	}
}

// HelpText lists the console commands.
const HelpText = `Available commands:
  th <value>      : Set throttle (e.g. 'th 70'), sent at 50 first unless already there
  st <value>      : Set steering (e.g. 'st 40')
  li              : Toggle left indicator
  ri              : Toggle right indicator
  lights          : Toggle lights
  horn            : Toggle horn
  brake           : Toggle brake
  reverse         : Toggle reverse
  send            : Resend the current state
  show            : Show current state
  help            : Show this help menu
  quit / q        : Exit the console`
