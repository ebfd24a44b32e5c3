package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gwillem/cartctl/pkg/cart"
	"github.com/gwillem/cartctl/pkg/control"
)

// Controller is the part of control.Session the console drives.
type Controller interface {
	State() cart.State
	SendCurrentState(ctx context.Context) (control.Exchange, error)
	SetThrottle(ctx context.Context, target int) ([]control.Exchange, error)
	SetSteering(ctx context.Context, target int) (control.Exchange, error)
	Toggle(ctx context.Context, f cart.Flag) (control.Exchange, error)
}

// Level tags a console line.
type Level int

const (
	Text Level = iota
	Info
	Error
	Response
)

var levelTags = map[Level]string{
	Info:     "[INFO] ",
	Error:    "[ERROR] ",
	Response: "[RESPONSE] ",
}

// Line is one line of console output.
type Line struct {
	Level Level
	Text  string
}

func (l Line) String() string {
	return levelTags[l.Level] + l.Text
}

func infof(format string, args ...any) Line {
	return Line{Level: Info, Text: fmt.Sprintf(format, args...)}
}

// Result is the output of one console command.
type Result struct {
	Lines []Line
	// Quit is set when the operator asked to leave.
	Quit bool
	// Err is the failure, if any. It is also rendered in Lines.
	Err error
}

func (r *Result) add(lines ...Line) {
	r.Lines = append(r.Lines, lines...)
}

func (r *Result) fail(err error) {
	r.Err = err
	r.add(Line{Level: Error, Text: Describe(err)})
}

// Run parses and executes one console line.
func Run(ctx context.Context, c Controller, line string) Result {
	cmd, err := Parse(line)
	if err != nil {
		var r Result
		r.fail(err)
		return r
	}
	return Execute(ctx, c, cmd)
}

// Execute applies cmd to the controller.
func Execute(ctx context.Context, c Controller, cmd Command) Result {
	var r Result
	switch cmd.Kind {
	case Empty:
	case Quit:
		r.Quit = true
		r.add(infof("Exiting console."))
	case Help:
		r.add(textLines(HelpText)...)
	case Show:
		r.add(textLines(ShowState(c.State()))...)
	case Send:
		r.add(infof("Sending current state"))
		ex, err := c.SendCurrentState(ctx)
		r.add(ResponseLines(ex.Response)...)
		if err != nil {
			r.fail(err)
		}
	case Throttle:
		r.throttle(ctx, c, cmd.Value)
	case Steering:
		ex, err := c.SetSteering(ctx, cmd.Value)
		if !errors.Is(err, control.ErrShutdown) {
			r.add(infof("Steering set to %d", ex.State.Steering))
			r.add(ResponseLines(ex.Response)...)
		}
		if err != nil {
			r.fail(err)
		}
	case Toggle:
		ex, err := c.Toggle(ctx, cmd.Flag)
		if !errors.Is(err, cart.ErrInvalidInput) && !errors.Is(err, control.ErrShutdown) {
			r.add(infof("%v %s", cmd.Flag, onOff(ex.State.Get(cmd.Flag))))
			r.add(ResponseLines(ex.Response)...)
		}
		if err != nil {
			r.fail(err)
		}
	default:
		r.fail(fmt.Errorf("%w: kind %d", ErrUnknownCommand, cmd.Kind))
	}
	return r
}

// throttle reports the staging exchange, when there is one, before the
// final one, in the order they went out.
func (r *Result) throttle(ctx context.Context, c Controller, target int) {
	staged := c.State().Throttle != cart.Neutral
	exs, err := c.SetThrottle(ctx, target)
	if errors.Is(err, control.ErrShutdown) {
		r.fail(err)
		return
	}

	if staged {
		r.add(infof("Setting throttle to %d first...", cart.Neutral))
		if len(exs) == 0 {
			r.fail(err)
			return
		}
		r.add(ResponseLines(exs[0].Response)...)
		exs = exs[1:]
	}
	r.add(infof("Throttle set to %d", cart.Clamp(target)))
	if len(exs) > 0 {
		r.add(ResponseLines(exs[0].Response)...)
	}
	if err != nil {
		r.fail(err)
	}
}

// ResponseLines tags each device line for display.
func ResponseLines(resp []string) []Line {
	lines := make([]Line, 0, len(resp))
	for _, s := range resp {
		lines = append(lines, Line{Level: Response, Text: s})
	}
	return lines
}

// ShowState renders the state listing printed by the show command.
func ShowState(s cart.State) string {
	var b strings.Builder
	b.WriteString("Current state:\n")
	fmt.Fprintf(&b, "  %-17s%d\n", "Throttle:", s.Throttle)
	fmt.Fprintf(&b, "  %-17s%d\n", "Steering:", s.Steering)
	for _, f := range []cart.Flag{cart.LeftIndicator, cart.RightIndicator, cart.Light, cart.Horn, cart.Brake, cart.Reverse} {
		fmt.Fprintf(&b, "  %-17s%d\n", f.String()+":", bit(s.Get(f)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// ShutdownLines reports the result of control.Session.Shutdown.
func ShutdownLines(ex control.Exchange, err error) []Line {
	var lines []Line
	lines = append(lines, ResponseLines(ex.Response)...)
	if err != nil {
		return append(lines, Line{Level: Error, Text: Describe(err)})
	}
	return append(lines,
		Line{Level: Text, Text: "Publishing zero velocity and steering."},
		infof("Serial port closed."),
	)
}

// Describe turns an error into the message shown to the operator.
func Describe(err error) string {
	var usage *UsageError
	var value *ValueError
	switch {
	case errors.As(err, &usage):
		return fmt.Sprintf("Usage: %s <value> (0 to 100)", usage.Command)
	case errors.As(err, &value):
		return fmt.Sprintf("Invalid %s value. Must be an integer.", value.Field)
	case errors.Is(err, ErrUnknownCommand):
		return "Unknown command. Type 'help' for a list of commands."
	case errors.Is(err, control.ErrShutdown):
		return "Session is shut down."
	}
	return err.Error()
}

func textLines(s string) []Line {
	var lines []Line
	for _, l := range strings.Split(s, "\n") {
		lines = append(lines, Line{Level: Text, Text: l})
	}
	return lines
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
