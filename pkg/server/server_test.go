package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lines struct {
	sync.Mutex
	got          []string
	connected    int
	disconnected int
}

func (l *lines) HandleLine(remote, line string) {
	l.Lock()
	defer l.Unlock()
	l.got = append(l.got, line)
}

func (l *lines) Connected(string) {
	l.Lock()
	defer l.Unlock()
	l.connected++
}

func (l *lines) Disconnected(string) {
	l.Lock()
	defer l.Unlock()
	l.disconnected++
}

func (l *lines) snapshot() ([]string, int, int) {
	l.Lock()
	defer l.Unlock()
	return append([]string(nil), l.got...), l.connected, l.disconnected
}

func startServer(t *testing.T, h Handler) (*Server, chan error) {
	t.Helper()
	s := New("127.0.0.1:0", h, WithLogger(zerolog.Nop()))
	require.NoError(t, s.Listen())
	errs := make(chan error, 1)
	go func() { errs <- s.Serve(context.Background()) }()
	t.Cleanup(func() { s.Close() })
	return s, errs
}

func TestServeLines(t *testing.T) {
	h := &lines{}
	s, _ := startServer(t, h)

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("shift\n  a \r\n\n\nmouse_move 5 -3\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, _, _ := h.snapshot()
		return len(got) == 3
	}, 2*time.Second, 10*time.Millisecond)

	got, connected, _ := h.snapshot()
	assert.Equal(t, []string{"shift", "a", "mouse_move 5 -3"}, got, "lines should be trimmed, blanks skipped, order kept")
	assert.Equal(t, 1, connected)

	conn.Close()
	assert.Eventually(t, func() bool {
		_, _, disconnected := h.snapshot()
		return disconnected == 1
	}, 2*time.Second, 10*time.Millisecond, "the handler should hear about the disconnect")
}

func TestCloseDropsClients(t *testing.T) {
	s, errs := startServer(t, HandlerFunc(func(string, string) {}))

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// make sure the server tracks the client before closing
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Close())

	select {
	case err := <-errs:
		assert.NoError(t, err, "Serve should return nil after Close")
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err, "the client connection should have been closed")

	assert.NoError(t, s.Close(), "Close should be idempotent")
	assert.Equal(t, ErrServerClosed, s.Listen())
}

func TestServeStopsOnContext(t *testing.T) {
	s := New("127.0.0.1:0", HandlerFunc(func(string, string) {}), WithLogger(zerolog.Nop()))
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- s.Serve(ctx) }()

	assert.Eventually(t, func() bool { return s.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

// slowHangup takes a while to hear about a disconnect
type slowHangup struct {
	lines
}

func (s *slowHangup) Disconnected(remote string) {
	time.Sleep(100 * time.Millisecond)
	s.lines.Disconnected(remote)
}

func TestServeWaitsForHandlersOnContext(t *testing.T) {
	h := &slowHangup{}
	s := New("127.0.0.1:0", h, WithLogger(zerolog.Nop()))
	require.NoError(t, s.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- s.Serve(ctx) }()

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool {
		_, connected, _ := h.snapshot()
		return connected == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	_, _, disconnected := h.snapshot()
	assert.Equal(t, 1, disconnected, "Serve should return only after client handlers finish")
}
