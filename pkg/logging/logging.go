// Package logging builds the zerolog logger shared by cartctl commands.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	EnvLogLevel   = "CARTCTL_LOG_LEVEL"
	EnvLogNoColor = "CARTCTL_LOG_NOCOLOR"
)

// Options controls where and how much is logged.
type Options struct {
	// Out defaults to stderr. Colour is disabled unless Out is a terminal.
	Out     io.Writer
	Level   zerolog.Level
	NoColor bool
}

// New returns a console logger tagged with app. Environment overrides are
// applied on top of opts.
func New(app string, opts Options) zerolog.Logger {
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	if !isTerminal(opts.Out) {
		opts.NoColor = true
	}
	applyEnvOverrides(&opts)

	output := zerolog.ConsoleWriter{
		Out:        opts.Out,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}
	return zerolog.New(output).Level(opts.Level).With().Timestamp().Str("app", app).Logger()
}

// File opens path for appending and returns a logger writing to it, for use
// while the terminal belongs to the TUI. An empty path discards everything.
func File(app, path string, level zerolog.Level) (zerolog.Logger, io.Closer, error) {
	if path == "" {
		return zerolog.Nop(), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return New(app, Options{Out: f, Level: level, NoColor: true}), f, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func applyEnvOverrides(opts *Options) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		opts.Level = lvl
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(EnvLogNoColor))); err == nil {
		opts.NoColor = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return zerolog.InfoLevel, false
	}
	if raw == "warning" {
		raw = "warn"
	}
	lvl, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.InfoLevel, false
	}
	return lvl, true
}
