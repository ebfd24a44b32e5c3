package link

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
)

// steppingClock is a mock clock whose Sleep advances time instead of blocking.
type steppingClock struct {
	*clock.Mock
}

func (c steppingClock) Sleep(d time.Duration) {
	c.Add(d)
}

// fakePort replays scripted reads. A nil chunk, or an exhausted script,
// behaves like a serial read timeout and advances the clock.
type fakePort struct {
	clock    *clock.Mock
	timeout  time.Duration
	reads    [][]byte
	eof      bool
	chatter  []byte
	readErr  error
	writeErr error
	maxWrite int

	written    bytes.Buffer
	writeCalls int
	closed     int
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.reads) == 0 {
		switch {
		case p.readErr != nil:
			return 0, p.readErr
		case p.eof:
			return 0, io.EOF
		case p.chatter != nil:
			p.clock.Add(50 * time.Millisecond)
			return copy(b, p.chatter), nil
		}
		p.clock.Add(p.timeout)
		return 0, nil
	}
	chunk := p.reads[0]
	p.reads = p.reads[1:]
	if chunk == nil {
		p.clock.Add(p.timeout)
		return 0, nil
	}
	n := copy(b, chunk)
	if n < len(chunk) {
		p.reads = append([][]byte{chunk[n:]}, p.reads...)
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.writeCalls++
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	if p.maxWrite > 0 && len(b) > p.maxWrite {
		b = b[:p.maxWrite]
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.closed++
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

var testConfig = Config{
	Port:        "/dev/ttyFAKE0",
	ReadTimeout: Duration(100 * time.Millisecond),
	Settle:      Duration(100 * time.Millisecond),
	MaxDrain:    Duration(time.Second),
}

func newTestSession(t *testing.T, reads ...string) (*Session, *fakePort, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	port := &fakePort{clock: mock, timeout: time.Duration(testConfig.ReadTimeout)}
	for _, r := range reads {
		if r == "" {
			port.reads = append(port.reads, nil)
			continue
		}
		port.reads = append(port.reads, []byte(r))
	}
	return New(port, testConfig, WithClock(steppingClock{mock})), port, mock
}

var idleFrame = []byte("*A0B0C0D50E0F0G0H0I0J0#")

func TestSendDrainsLinesUntilQuiet(t *testing.T) {
	s, port, mock := newTestSession(t, "OK 1\r\n", "OK 2\r\n", "OK 3\r\n")
	start := mock.Now()

	resp, err := s.Send(context.Background(), idleFrame)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got := port.written.String(); got != string(idleFrame) {
		t.Errorf("written = %q, want %q", got, idleFrame)
	}
	if diff := cmp.Diff(Response{"OK 1", "OK 2", "OK 3"}, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}

	// settle delay plus the one quiet read that ends the drain
	want := time.Duration(testConfig.Settle + testConfig.ReadTimeout)
	if elapsed := mock.Now().Sub(start); elapsed != want {
		t.Errorf("drain took %v, want %v", elapsed, want)
	}
}

func TestSendLineSplitAcrossReads(t *testing.T) {
	s, _, _ := newTestSession(t, "OK B", "70 D50\r", "\nsecond\nthi", "", "rd\n")

	resp, err := s.Send(context.Background(), idleFrame)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	// a read timeout cuts "thi" short; "rd" then arrives as a line of its own
	if diff := cmp.Diff(Response{"OK B70 D50", "second", "thi", "rd"}, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestSendDrainsEachFrameSeparately(t *testing.T) {
	s, port, _ := newTestSession(t, "first\n", "")
	if _, err := s.Send(context.Background(), idleFrame); err != nil {
		t.Fatal(err)
	}

	port.reads = [][]byte{[]byte("late\nreply\n")}
	resp, err := s.Send(context.Background(), idleFrame)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Response{"late", "reply"}, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestSendReplacesInvalidBytes(t *testing.T) {
	s, _, _ := newTestSession(t, "\xffOK\xfe\n")

	resp, err := s.Send(context.Background(), idleFrame)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if diff := cmp.Diff(Response{"\uFFFDOK\uFFFD"}, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestSendSkipsBlankLines(t *testing.T) {
	s, _, _ := newTestSession(t, "\r\n", "  \n", "ready\n")

	resp, err := s.Send(context.Background(), idleFrame)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if diff := cmp.Diff(Response{"ready"}, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestSendSilentDevice(t *testing.T) {
	s, port, _ := newTestSession(t)

	resp, err := s.Send(context.Background(), idleFrame)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(resp) != 0 {
		t.Errorf("response = %v, want none", resp)
	}
	if port.written.Len() != len(idleFrame) {
		t.Errorf("wrote %d bytes, want %d", port.written.Len(), len(idleFrame))
	}
}

func TestSendEndOfStream(t *testing.T) {
	s, port, _ := newTestSession(t, "bye\n")
	port.eof = true

	resp, err := s.Send(context.Background(), idleFrame)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if diff := cmp.Diff(Response{"bye"}, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestSendDrainIsBounded(t *testing.T) {
	s, port, mock := newTestSession(t)
	port.chatter = []byte("status\n")
	start := mock.Now()

	resp, err := s.Send(context.Background(), idleFrame)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(resp) == 0 {
		t.Fatal("expected chatter lines")
	}

	limit := time.Duration(testConfig.Settle + testConfig.MaxDrain)
	if elapsed := mock.Now().Sub(start); elapsed > limit {
		t.Errorf("drain took %v, want at most %v", elapsed, limit)
	}
}

func TestSendWriteError(t *testing.T) {
	s, port, _ := newTestSession(t)
	port.writeErr = errors.New("device disconnected")

	_, err := s.Send(context.Background(), idleFrame)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Send error = %v, want ErrTransport", err)
	}
}

func TestSendReadError(t *testing.T) {
	s, port, _ := newTestSession(t, "partial answer\n")
	port.readErr = errors.New("input/output error")

	resp, err := s.Send(context.Background(), idleFrame)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Send error = %v, want ErrTransport", err)
	}
	if diff := cmp.Diff(Response{"partial answer"}, resp); diff != "" {
		t.Errorf("lines before the error mismatch (-want +got):\n%s", diff)
	}
}

func TestSendShortWrites(t *testing.T) {
	s, port, _ := newTestSession(t)
	port.maxWrite = 5

	if _, err := s.Send(context.Background(), idleFrame); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := port.written.String(); got != string(idleFrame) {
		t.Errorf("written = %q, want %q", got, idleFrame)
	}
	if port.writeCalls < 2 {
		t.Errorf("write calls = %d, want several", port.writeCalls)
	}
}

func TestSendCancelledContext(t *testing.T) {
	s, port, _ := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Send(ctx, idleFrame); !errors.Is(err, context.Canceled) {
		t.Errorf("Send error = %v, want context.Canceled", err)
	}
	if port.writeCalls != 0 {
		t.Errorf("frame written despite cancelled context")
	}
}

func TestCloseOnce(t *testing.T) {
	s, port, _ := newTestSession(t)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if port.closed != 1 {
		t.Errorf("port closed %d times, want 1", port.closed)
	}

	_, err := s.Send(context.Background(), idleFrame)
	if !errors.Is(err, ErrClosed) || !errors.Is(err, ErrTransport) {
		t.Errorf("Send after Close error = %v, want ErrClosed", err)
	}
}

func TestSendNeverOpened(t *testing.T) {
	var s *Session
	if _, err := s.Send(context.Background(), idleFrame); !errors.Is(err, ErrTransport) {
		t.Errorf("Send on nil session error = %v, want ErrTransport", err)
	}
}

func TestOpen(t *testing.T) {
	mock := clock.NewMock()
	port := &fakePort{clock: mock}
	var gotPath string
	var gotBaud int

	orig := OpenPort
	t.Cleanup(func() { OpenPort = orig })
	OpenPort = func(path string, baud int) (Port, error) {
		gotPath, gotBaud = path, baud
		return port, nil
	}

	s, err := Open(Config{Port: "/dev/ttyUSB1"}, WithClock(steppingClock{mock}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if gotPath != "/dev/ttyUSB1" || gotBaud != DefaultBaudRate {
		t.Errorf("opened %s at %d, want /dev/ttyUSB1 at %d", gotPath, gotBaud, DefaultBaudRate)
	}
	if port.timeout != DefaultReadTimeout {
		t.Errorf("read timeout = %v, want %v", port.timeout, DefaultReadTimeout)
	}
	if s.Name() != "/dev/ttyUSB1" {
		t.Errorf("Name() = %q", s.Name())
	}
}

func TestOpenFailure(t *testing.T) {
	orig := OpenPort
	t.Cleanup(func() { OpenPort = orig })
	OpenPort = func(string, int) (Port, error) {
		return nil, errors.New("no such file or directory")
	}

	_, err := Open(Config{Port: "/dev/ttyUSB9"})
	if !errors.Is(err, ErrChannelOpen) {
		t.Errorf("Open error = %v, want ErrChannelOpen", err)
	}

	_, err = Open(Config{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Open without port error = %v, want ErrInvalidConfig", err)
	}
}
