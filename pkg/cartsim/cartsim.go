// Package cartsim simulates the cart controller end of the serial link.
//
// It decodes frames from the byte stream and answers each one with a line:
//
//	OK *A0B70C0D50E0F0G0H0I0J0#
//	WARN unstaged throttle 0->70
//	ERR cart: malformed frame: ...
//
// A throttle change between two values other than neutral (50) is reported
// as unstaged. Dropping to 0 is always accepted.
package cartsim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gwillem/cartctl/pkg/cart"
)

// frames longer than this are discarded
const maxFrameLen = 64

// Cart is a simulated cart controller.
type Cart struct {
	mu     sync.Mutex
	state  cart.State
	frames int
	warns  int
	buf    []byte
	logger zerolog.Logger
}

// Option configures a Cart.
type Option func(*Cart)

// WithLogger sets the simulator logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cart) { c.logger = l }
}

// New returns a simulated cart in the idle state.
func New(opts ...Option) *Cart {
	c := &Cart{state: cart.Idle(), logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the state from the last valid frame.
func (c *Cart) State() cart.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Frames returns the number of valid frames received.
func (c *Cart) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Warnings returns the number of unstaged throttle changes seen.
func (c *Cart) Warnings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warns
}

// Feed consumes raw bytes from the link and returns the reply lines for
// every frame completed by them. Bytes outside a frame are ignored.
func (c *Cart) Feed(p []byte) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf = append(c.buf, p...)
	var replies []string
	for {
		start := bytes.IndexByte(c.buf, cart.FrameStart)
		if start < 0 {
			c.buf = c.buf[:0]
			return replies
		}
		c.buf = c.buf[start:]

		end := bytes.IndexByte(c.buf, cart.FrameEnd)
		if end < 0 {
			if len(c.buf) > maxFrameLen {
				c.buf = c.buf[:0]
				replies = append(replies, "ERR frame too long")
			}
			return replies
		}

		frame := bytes.Clone(c.buf[:end+1])
		c.buf = c.buf[end+1:]
		replies = append(replies, c.apply(frame)...)
	}
}

func (c *Cart) apply(frame []byte) []string {
	next, err := cart.Decode(frame)
	if err != nil {
		c.logger.Warn().Err(err).Bytes("frame", frame).Msg("rejected frame")
		return []string{"ERR " + err.Error()}
	}

	var replies []string
	prev := c.state.Throttle
	if next.Throttle != prev && prev != cart.Neutral && next.Throttle != cart.Neutral && next.Throttle != 0 {
		c.warns++
		replies = append(replies, fmt.Sprintf("WARN unstaged throttle %d->%d", prev, next.Throttle))
	}
	c.state = next
	c.frames++
	c.logger.Debug().Bytes("frame", frame).Msg("frame applied")
	return append(replies, "OK "+string(frame))
}

// Serve answers frames read from rw until ctx ends or the stream closes.
// rw should return from Read periodically (a serial port with a read
// timeout does) so cancellation is noticed.
func (c *Cart) Serve(ctx context.Context, rw io.ReadWriter) error {
	buf := make([]byte, 256)
	for ctx.Err() == nil {
		n, err := rw.Read(buf)
		if n > 0 {
			for _, line := range c.Feed(buf[:n]) {
				if _, werr := io.WriteString(rw, line+"\r\n"); werr != nil {
					return fmt.Errorf("write reply: %w", werr)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read frames: %w", err)
		}
	}
	return nil
}
