package client

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// peer is a bare listener recording every byte it receives
type peer struct {
	t    *testing.T
	addr string

	sync.Mutex
	l     net.Listener
	conns []net.Conn
	buf   bytes.Buffer
}

func newPeer(t *testing.T) *peer {
	t.Helper()
	p := &peer{t: t}
	p.listen("127.0.0.1:0")
	p.addr = p.l.Addr().String()
	t.Cleanup(p.stop)
	return p
}

func (p *peer) listen(addr string) {
	l, err := net.Listen("tcp", addr)
	require.NoError(p.t, err)
	p.Lock()
	p.l = l
	p.Unlock()
	go p.accept(l)
}

func (p *peer) accept(l net.Listener) {
	for {
		c, err := l.Accept()
		if err != nil {
			return
		}
		p.Lock()
		p.conns = append(p.conns, c)
		p.Unlock()
		go p.read(c)
	}
}

func (p *peer) read(c net.Conn) {
	b := make([]byte, 4096)
	for {
		n, err := c.Read(b)
		p.Lock()
		p.buf.Write(b[:n])
		p.Unlock()
		if err != nil {
			return
		}
	}
}

func (p *peer) received() string {
	p.Lock()
	defer p.Unlock()
	return p.buf.String()
}

func (p *peer) connCount() int {
	p.Lock()
	defer p.Unlock()
	return len(p.conns)
}

// stop closes the listener and every accepted connection
func (p *peer) stop() {
	p.Lock()
	defer p.Unlock()
	if p.l != nil {
		p.l.Close()
		p.l = nil
	}
	for _, c := range p.conns {
		c.Close()
	}
	p.conns = nil
}

// restart listens again on the same address
func (p *peer) restart() {
	p.listen(p.addr)
}

func (p *peer) endpoint() Endpoint {
	host, port, err := net.SplitHostPort(p.addr)
	require.NoError(p.t, err)
	n, err := strconv.Atoi(port)
	require.NoError(p.t, err)
	return Endpoint{Host: host, Port: n}
}

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f dialFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// trackedConn counts Close calls
type trackedConn struct {
	net.Conn
	closes int32
}

func (c *trackedConn) Close() error {
	atomic.AddInt32(&c.closes, 1)
	return c.Conn.Close()
}

func (c *trackedConn) closeCount() int {
	return int(atomic.LoadInt32(&c.closes))
}

// trackingDialer dials for real and remembers every conn it handed out
type trackingDialer struct {
	sync.Mutex
	d     net.Dialer
	conns []*trackedConn
}

func (td *trackingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	c, err := td.d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	tc := &trackedConn{Conn: c}
	td.Lock()
	td.conns = append(td.conns, tc)
	td.Unlock()
	return tc, nil
}

func (td *trackingDialer) all() []*trackedConn {
	td.Lock()
	defer td.Unlock()
	return append([]*trackedConn(nil), td.conns...)
}

func quiet() Option {
	return WithLogger(zerolog.Nop())
}

func newTestManager(t *testing.T, ep Endpoint, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(ep, append([]Option{quiet()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}
