// Package client keeps a best-effort line connection to a remotekeys listener
package client

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/josh23french/remotekeys/pkg/protocol"
)

// Defaults for a Manager
const (
	DefaultConnectTimeout    = 1500 * time.Millisecond
	DefaultReconnectInterval = 2 * time.Second
	DefaultQueueSize         = 256
)

// Dialer opens the transport. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Sender is anything lines can be handed to fire-and-forget
type Sender interface {
	Send(line string)
}

// Option configures a Manager
type Option func(*Manager)

// WithDialer replaces the default net.Dialer
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dialer = d
	}
}

// WithConnectTimeout bounds each connect attempt
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.connectTimeout = d
		}
	}
}

// WithReconnectInterval sets how often a disconnected manager retries
func WithReconnectInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.reconnectInterval = d
		}
	}
}

// WithWriteTimeout puts a deadline on each write+flush. Zero, the default,
// lets a stalled write block the loop until the kernel gives up.
func WithWriteTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.writeTimeout = d
	}
}

// WithQueueSize sets how many lines may wait for the writer before Send
// starts dropping them
func WithQueueSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// WithLogger sets the logger; the endpoint is added as a field
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// link is a live connection. It only exists while Connected.
type link struct {
	conn net.Conn
	w    *bufio.Writer
}

// Manager owns the connection to one Endpoint. A single goroutine holds the
// link, drains the send queue in FIFO order and retries the connection on a
// fixed interval, so callers never block on the network.
type Manager struct {
	endpoint          Endpoint
	dialer            Dialer
	connectTimeout    time.Duration
	reconnectInterval time.Duration
	writeTimeout      time.Duration
	queueSize         int
	log               zerolog.Logger

	queue     chan string
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}

	// stopped is set under enqueueMu once run stops reading the queue
	enqueueMu sync.RWMutex
	stopped   bool

	observer *Observer
	stats    stats

	link *link // nil while Disconnected; only touched by run
}

// NewManager validates ep and starts the connection loop. The first connect
// attempt happens right away.
func NewManager(ep Endpoint, opts ...Option) (*Manager, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		endpoint:          ep,
		dialer:            &net.Dialer{},
		connectTimeout:    DefaultConnectTimeout,
		reconnectInterval: DefaultReconnectInterval,
		queueSize:         DefaultQueueSize,
		log:               log.Logger,
		done:              make(chan struct{}),
		observer:          newObserver(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With().Str("endpoint", ep.String()).Logger()
	m.queue = make(chan string, m.queueSize)
	m.ctx, m.cancel = context.WithCancel(context.Background())

	go m.run()
	return m, nil
}

// Endpoint returns the endpoint this manager talks to
func (m *Manager) Endpoint() Endpoint {
	return m.endpoint
}

// State returns the current connectivity
func (m *Manager) State() State {
	return m.observer.Current()
}

// Observer exposes state changes to subscribers
func (m *Manager) Observer() *Observer {
	return m.observer
}

// Stats returns a snapshot of the manager's counters
func (m *Manager) Stats() Stats {
	return m.stats.snapshot()
}

// Send queues line for the writer and returns immediately. Lines are dropped,
// silently as far as the caller is concerned, when they contain a line break,
// when the queue is full, when the manager is closed, or when the connect or
// write for them fails. Nothing is retried.
func (m *Manager) Send(line string) {
	if err := protocol.ValidateLine(line); err != nil {
		m.stats.drop()
		m.log.Debug().Err(err).Msg("dropping invalid line")
		return
	}
	m.enqueueMu.RLock()
	defer m.enqueueMu.RUnlock()
	if m.stopped || m.ctx.Err() != nil {
		m.stats.drop()
		return
	}
	select {
	case m.queue <- line:
	default:
		m.stats.drop()
		m.log.Warn().Int("queue_size", m.queueSize).Msg("send queue full, dropping line")
	}
}

// Close stops the loop and releases the connection. It does not wait: a write
// already in progress is left to finish or fail on its own. Use Done to wait.
// Calling Close more than once is harmless.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.log.Debug().Msg("closing connection manager")
		m.cancel()
	})
	return nil
}

// Done is closed once the loop has exited and the connection is released
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) run() {
	defer close(m.done)
	defer m.observer.close()
	defer m.disconnect()
	defer m.dropQueued()

	ticker := time.NewTicker(m.reconnectInterval)
	defer ticker.Stop()

	m.ensureConnected()
	for {
		select {
		case <-m.ctx.Done():
			return
		case line := <-m.queue:
			m.write(line)
		case <-ticker.C:
			m.ensureConnected()
		}
	}
}

// dropQueued counts every line left in the queue as dropped. Once it holds
// enqueueMu no Send can add more.
func (m *Manager) dropQueued() {
	m.enqueueMu.Lock()
	defer m.enqueueMu.Unlock()
	m.stopped = true
	for {
		select {
		case <-m.queue:
			m.stats.drop()
		default:
			return
		}
	}
}

// ensureConnected makes at most one connect attempt and reports whether a
// link exists afterwards
func (m *Manager) ensureConnected() bool {
	if m.link != nil {
		return true
	}
	if m.ctx.Err() != nil {
		return false
	}

	m.stats.attempt()
	ctx, cancel := context.WithTimeout(m.ctx, m.connectTimeout)
	defer cancel()

	conn, err := m.dialer.DialContext(ctx, "tcp", m.endpoint.String())
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		m.stats.connectFailed(&ConnectError{Endpoint: m.endpoint, Err: err})
		m.log.Debug().Err(err).Msg("connect failed")
		m.observer.set(Disconnected)
		return false
	}

	m.link = &link{
		conn: conn,
		w:    bufio.NewWriter(conn),
	}
	m.stats.connected()
	m.log.Info().Msg("connected")
	m.observer.set(Connected)
	return true
}

func (m *Manager) write(line string) {
	if m.ctx.Err() != nil || !m.ensureConnected() {
		m.stats.drop()
		return
	}

	if m.writeTimeout > 0 {
		m.link.conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
	}
	_, err := m.link.w.WriteString(line + "\n")
	if err == nil {
		err = m.link.w.Flush()
	}
	if err != nil {
		m.stats.writeFailed(&WriteError{Endpoint: m.endpoint, Err: err})
		m.log.Warn().Err(err).Msg("write failed, dropping line and disconnecting")
		m.disconnect()
		return
	}
	m.stats.written()
}

func (m *Manager) disconnect() {
	if m.link == nil {
		return
	}
	if err := m.link.conn.Close(); err != nil {
		m.log.Debug().Err(err).Msg("error closing connection")
	}
	m.link = nil
	m.log.Info().Msg("disconnected")
	m.observer.set(Disconnected)
}
