// Package link owns the serial channel to the cart controller and implements
// send-and-drain: write one frame, then collect response lines until the
// device goes quiet.
package link

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
	"golang.org/x/text/encoding/unicode"
)

// Port is the duplex byte channel. A Read that times out returns 0, nil,
// which is how go.bug.st/serial ports behave.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// lines longer than this are split
const maxLineLen = 1024

// Response is the ordered list of lines the device sent after a frame.
type Response []string

// OpenPort opens the device at path. It is a variable so tests and the
// simulator can substitute their own transports.
var OpenPort = func(path string, baud int) (Port, error) {
	return serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// Session is an open link to the cart. It is not safe for concurrent use;
// the control session serializes access.
type Session struct {
	port   Port
	name   string
	cfg    Config
	clock  clock.Clock
	logger zerolog.Logger

	buf     []byte
	pending []byte
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source used for the settle delay and drain bound.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Open opens the configured device and sets its read timeout.
func Open(cfg Config, opts ...Option) (*Session, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	port, err := OpenPort(cfg.Port, cfg.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s at %d,8N1: %v%s", ErrChannelOpen, cfg.Port, cfg.BaudRate, err, openHint(err))
	}
	if err := port.SetReadTimeout(time.Duration(cfg.ReadTimeout)); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: set read timeout on %s: %v", ErrChannelOpen, cfg.Port, err)
	}

	s := New(port, cfg, opts...)
	s.logger.Info().Str("port", cfg.Port).Int("baud", cfg.BaudRate).Msg("serial port opened at 8N1")
	return s, nil
}

// New wraps an already open port. The port's read timeout must already be set.
func New(port Port, cfg Config, opts ...Option) *Session {
	cfg = cfg.WithDefaults()
	s := &Session{
		port:   port,
		name:   cfg.Port,
		cfg:    cfg,
		clock:  clock.New(),
		logger: zerolog.Nop(),
		buf:    make([]byte, 256),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the device path.
func (s *Session) Name() string {
	return s.name
}

// Send writes frame verbatim and drains the response.
func (s *Session) Send(ctx context.Context, frame []byte) (Response, error) {
	if s == nil || s.port == nil {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.write(frame); err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", ErrTransport, s.name, err)
	}
	s.logger.Debug().Bytes("frame", frame).Msg("frame sent")

	// give the controller time to process before the first read
	s.clock.Sleep(time.Duration(s.cfg.Settle))

	resp, err := s.drain(ctx)
	if err != nil {
		return resp, fmt.Errorf("%w: read %s: %v", ErrTransport, s.name, err)
	}
	return resp, nil
}

// Close releases the port. Only the first call closes it.
func (s *Session) Close() error {
	if s == nil || s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.pending = nil
	s.logger.Info().Str("port", s.name).Msg("serial port closed")
	return err
}

func (s *Session) write(frame []byte) error {
	for len(frame) > 0 {
		n, err := s.port.Write(frame)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		frame = frame[n:]
	}
	return nil
}

func (s *Session) drain(ctx context.Context) (Response, error) {
	var resp Response
	deadline := s.clock.Now().Add(time.Duration(s.cfg.MaxDrain))
	for ctx.Err() == nil {
		raw, err := s.readLine()
		if len(raw) > 0 {
			if line := decodeLine(raw); line != "" {
				resp = append(resp, line)
				s.logger.Debug().Str("line", line).Msg("response")
			}
		}
		if err != nil {
			return resp, err
		}
		if len(raw) == 0 {
			break
		}
		if !s.clock.Now().Before(deadline) {
			s.logger.Warn().Dur("max_drain", time.Duration(s.cfg.MaxDrain)).Msg("device still talking, drain cut short")
			break
		}
	}
	return resp, nil
}

// readLine returns the next line including its newline, or whatever arrived
// before a read came back empty. An empty result means the channel is quiet.
func (s *Session) readLine() ([]byte, error) {
	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := s.pending[:i+1:i+1]
			s.pending = s.pending[i+1:]
			return line, nil
		}
		n, err := s.port.Read(s.buf)
		if n > 0 {
			s.pending = append(s.pending, s.buf[:n]...)
			if len(s.pending) >= maxLineLen {
				line := s.pending
				s.pending = nil
				return line, nil
			}
			continue
		}
		line := s.pending
		s.pending = nil
		if err != nil && !errors.Is(err, io.EOF) {
			return line, err
		}
		return line, nil
	}
}

// decodeLine replaces invalid UTF-8 with U+FFFD and trims line endings.
func decodeLine(raw []byte) string {
	text, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		text = bytes.ToValidUTF8(raw, []byte("\uFFFD"))
	}
	return strings.TrimRight(string(text), "\r\n\t ")
}

func openHint(err error) string {
	var perr *serial.PortError
	if !errors.As(err, &perr) {
		return ""
	}
	switch perr.Code() {
	case serial.PortNotFound:
		return " (is the cart plugged in? try 'cartctl ports')"
	case serial.PortBusy:
		return " (port is in use by another program)"
	case serial.PermissionDenied:
		return " (add your user to the dialout group)"
	}
	return ""
}
