// Package control owns the commanded cart state and turns user actions into
// frame exchanges on the link.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/gwillem/cartctl/pkg/cart"
	"github.com/gwillem/cartctl/pkg/link"
)

// ErrShutdown is returned by every operation once Shutdown has run.
var ErrShutdown = errors.New("control: session shut down")

// Transport sends one frame and returns the drained response.
type Transport interface {
	Send(ctx context.Context, frame []byte) (link.Response, error)
	Close() error
}

// Exchange is one frame written to the cart and the lines it answered with.
type Exchange struct {
	State    cart.State
	Frame    []byte
	Response link.Response
}

// Session is the single owner of the cart state. Operations are serialized
// and each one finishes its exchanges before returning.
type Session struct {
	mu        sync.Mutex
	transport Transport
	state     cart.State
	logger    zerolog.Logger
	done      bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithState replaces the idle startup state.
func WithState(st cart.State) Option {
	return func(s *Session) { s.state = st }
}

// New creates a session in the idle state. Nothing is sent until the first operation.
func New(t Transport, opts ...Option) *Session {
	s := &Session{
		transport: t,
		state:     cart.Idle(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Throttle = cart.Clamp(s.state.Throttle)
	s.state.Steering = cart.Clamp(s.state.Steering)
	return s
}

// State returns a snapshot of the commanded state.
func (s *Session) State() cart.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SendCurrentState sends the state unchanged. Used at startup to establish the idle baseline.
func (s *Session) SendCurrentState(ctx context.Context) (Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return Exchange{}, ErrShutdown
	}
	return s.send(ctx)
}

// SetThrottle moves the throttle to target, clamped to [0,100]. Unless the
// throttle is already at neutral, it is first sent at neutral; the cart
// expects that step before any other throttle change.
func (s *Session) SetThrottle(ctx context.Context, target int) ([]Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil, ErrShutdown
	}

	target = cart.Clamp(target)
	var exchanges []Exchange
	if s.state.Throttle != cart.Neutral {
		s.logger.Info().Int("from", s.state.Throttle).Msg("staging throttle through neutral")
		s.state.Throttle = cart.Neutral
		ex, err := s.send(ctx)
		if err != nil {
			return exchanges, fmt.Errorf("stage throttle: %w", err)
		}
		exchanges = append(exchanges, ex)
	}

	s.state.Throttle = target
	ex, err := s.send(ctx)
	if err != nil {
		return exchanges, fmt.Errorf("set throttle: %w", err)
	}
	return append(exchanges, ex), nil
}

// SetSteering sets steering to target, clamped to [0,100].
func (s *Session) SetSteering(ctx context.Context, target int) (Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return Exchange{}, ErrShutdown
	}

	s.state.Steering = cart.Clamp(target)
	ex, err := s.send(ctx)
	if err != nil {
		return ex, fmt.Errorf("set steering: %w", err)
	}
	return ex, nil
}

// Toggle flips one of the boolean flags.
func (s *Session) Toggle(ctx context.Context, f cart.Flag) (Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return Exchange{}, ErrShutdown
	}

	if _, err := s.state.Toggle(f); err != nil {
		return Exchange{}, err
	}
	ex, err := s.send(ctx)
	if err != nil {
		return ex, fmt.Errorf("toggle %v: %w", f, err)
	}
	return ex, nil
}

// Shutdown sends throttle 0 and centred steering, leaving the flags as they
// are, and then closes the transport. The transport is closed even if the
// send fails. Cancellation of ctx is ignored so an interrupt cannot suppress
// the neutral frame. Later calls return ErrShutdown.
func (s *Session) Shutdown(ctx context.Context) (Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return Exchange{}, ErrShutdown
	}
	s.done = true

	s.state.Throttle = 0
	s.state.Steering = cart.Neutral
	ex, sendErr := s.send(context.WithoutCancel(ctx))
	if sendErr != nil {
		sendErr = fmt.Errorf("publish neutral: %w", sendErr)
	} else {
		s.logger.Info().Msg("published zero velocity and steering")
	}

	var closeErr error
	if err := s.transport.Close(); err != nil {
		closeErr = fmt.Errorf("close link: %w", err)
	}
	return ex, multierr.Combine(sendErr, closeErr)
}

// Closed reports whether Shutdown has run.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// send encodes the current state and exchanges it. Callers hold mu.
func (s *Session) send(ctx context.Context) (Exchange, error) {
	ex := Exchange{State: s.state, Frame: cart.Encode(s.state)}
	resp, err := s.transport.Send(ctx, ex.Frame)
	ex.Response = resp
	if err != nil {
		s.logger.Error().Err(err).Bytes("frame", ex.Frame).Msg("exchange failed")
		return ex, err
	}
	s.logger.Debug().Bytes("frame", ex.Frame).Int("lines", len(resp)).Msg("exchange")
	return ex, nil
}
