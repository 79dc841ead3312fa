// Package server accepts remotekeys clients and feeds their lines to a Handler
package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultAddress is the port the original receiver listens on
const DefaultAddress = ":7642"

// ErrServerClosed is returned by Serve and Listen after Close
var ErrServerClosed = errors.New("server closed")

// Handler receives every non-blank line, trimmed, in the order each client
// sent them. Lines from different clients may be handled concurrently.
type Handler interface {
	HandleLine(remote string, line string)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(remote string, line string)

// HandleLine calls f
func (f HandlerFunc) HandleLine(remote string, line string) {
	f(remote, line)
}

// ConnHandler is optionally implemented by a Handler that keeps per-client state
type ConnHandler interface {
	Connected(remote string)
	Disconnected(remote string)
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// Server represents a remotekeys listener
type Server struct {
	addr    string
	handler Handler
	log     zerolog.Logger

	sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// New constructs a new Server; nothing is bound until Listen or Serve
func New(addr string, h Handler, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		handler: h,
		log:     log.Logger,
		conns:   make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the listening socket. Serve calls it if needed.
func (s *Server) Listen() error {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if s.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = l
	s.log.Info().Str("addr", l.Addr().String()).Msg("listening")
	return nil
}

// Addr returns the bound address, nil before Listen
func (s *Server) Addr() net.Addr {
	s.Lock()
	defer s.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts clients until ctx is done or Close is called. It returns nil
// on a clean shutdown, once every client handler has finished.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.Lock()
	l := s.listener
	s.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return s.Close()
			}
			s.log.Warn().Err(err).Msg("error accepting connection")
			continue
		}
		if !s.track(conn) {
			conn.Close()
			return s.Close()
		}
		// each client gets its own goroutine; the loop goes back to accepting
		go s.handle(conn)
	}
}

// Close stops accepting, drops every client and waits for their handlers.
// Later calls only wait.
func (s *Server) Close() error {
	s.Lock()
	if s.closed {
		s.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for c := range s.conns {
		c.Close()
	}
	s.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("server closed")
	return err
}

func (s *Server) isClosed() bool {
	s.Lock()
	defer s.Unlock()
	return s.closed
}

func (s *Server) track(c net.Conn) bool {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.Lock()
	delete(s.conns, c)
	s.Unlock()
	s.wg.Done()
}

func (s *Server) handle(c net.Conn) {
	defer s.untrack(c)
	defer c.Close()

	remote := c.RemoteAddr().String()
	logger := s.log.With().Str("remote", remote).Logger()
	logger.Info().Msg("client connected")

	if ch, ok := s.handler.(ConnHandler); ok {
		ch.Connected(remote)
		defer ch.Disconnected(remote)
	}

	scanner := bufio.NewScanner(c)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug().Str("line", line).Msg("got line")
		s.handler.HandleLine(remote, line)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Warn().Err(err).Msg("error reading from connection")
	}
	logger.Info().Msg("client disconnected")
}
