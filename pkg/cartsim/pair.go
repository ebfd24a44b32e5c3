package cartsim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoSocat is returned when the socat binary is not installed.
var ErrNoSocat = errors.New("cartsim: socat not found in PATH")

// Pair is a virtual serial cable made of two linked PTYs. The driver opens
// Host; the simulator serves Device.
type Pair struct {
	Host   string
	Device string

	mu     sync.Mutex
	cmd    *exec.Cmd
	logger zerolog.Logger
	closed bool
}

// NewPair starts socat linking host and device, and waits until both
// links exist.
func NewPair(ctx context.Context, host, device string, logger zerolog.Logger) (*Pair, error) {
	bin, err := exec.LookPath("socat")
	if err != nil {
		return nil, ErrNoSocat
	}

	cmd := exec.Command(bin, "-d", "-d",
		fmt.Sprintf("pty,raw,echo=0,link=%s", host),
		fmt.Sprintf("pty,raw,echo=0,link=%s", device),
	)
	cmd.Stdout = logger
	cmd.Stderr = logger
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start socat: %w", err)
	}

	p := &Pair{Host: host, Device: device, cmd: cmd, logger: logger}
	logger.Info().Int("pid", cmd.Process.Pid).Str("host", host).Str("device", device).Msg("virtual serial pair started")

	if err := p.wait(ctx, 5*time.Second); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pair) wait(ctx context.Context, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		_, herr := os.Stat(p.Host)
		_, derr := os.Stat(p.Device)
		if herr == nil && derr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s and %s: %w", p.Host, p.Device, ctx.Err())
		case <-tick.C:
		}
	}
}

// Close stops socat and removes the links. Safe to call more than once.
func (p *Pair) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	}
	for _, path := range []string{p.Host, p.Device} {
		if _, err := os.Lstat(path); err == nil {
			_ = os.Remove(path)
		}
	}
	p.logger.Info().Msg("virtual serial pair removed")
}
