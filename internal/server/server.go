package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/linechat/internal/auth"
	"github.com/Tyrowin/linechat/internal/eventlog"
)

// ErrServerClosed is returned by Serve after Shutdown has been called.
var ErrServerClosed = errors.New("chat server closed")

const welcomeFormat = `welcome to the server, your id is %d, use the console to send messages, exit via "exit"`

// Server accepts chat connections and runs the command protocol over a
// shared Registry.
type Server struct {
	opts     Options
	registry *Registry
	recorder eventlog.Recorder
	secret   *auth.AdminSecret
	logger   *slog.Logger
	origins  originPolicy
	upgrader websocket.Upgrader

	nextID atomic.Int64

	mu        sync.Mutex
	closing   bool
	listeners map[net.Listener]struct{}
	wg        sync.WaitGroup
}

// New builds a Server from opts.
func New(opts Options) (*Server, error) {
	opts, err := sanitizeOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:      opts,
		registry:  opts.Registry,
		recorder:  opts.Recorder,
		secret:    opts.AdminSecret,
		logger:    opts.Logger,
		origins:   newOriginPolicy(opts.AllowedOrigins, opts.Logger),
		listeners: make(map[net.Listener]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

// Registry returns the server's connection registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// serveConn runs one connection from accept to teardown.
func (s *Server) serveConn(t Transport, r LineReader) {
	c := s.accept(t)
	if c == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("invariant violation: connection task panicked", "conn_id", c.ID(), "panic", rec)
			s.disconnect(c, errors.New("internal server error"))
		}
	}()

	for {
		line, err := r.ReadLine()
		if err != nil {
			s.disconnect(c, &TransportError{Op: "read", Err: err})
			return
		}
		s.handleLine(c, line)
	}
}

// accept registers a new connection, greets it and announces it.
func (s *Server) accept(t Transport) *Connection {
	id := s.nextID.Add(1)
	c := NewConnection(id, t)

	if err := s.registry.Add(c); err != nil {
		s.logger.Error("invariant violation: registering connection", "conn_id", id, "error", err)
		_ = t.Close()
		return nil
	}
	if s.isClosing() {
		s.shutdownTeardown(c)
		return nil
	}

	s.recorder.Record(fmt.Sprintf("client %d has connected", id))
	s.logger.Info("client connected", "conn_id", id, "remote", t.RemoteAddr())

	if !s.send(c, fmt.Sprintf(welcomeFormat, id)) {
		return nil
	}
	if !s.opts.SilentJoins {
		s.broadcast(fmt.Sprintf("client %d connected", id), id)
	}
	return c
}

// send writes line to c; a failed write tears c down.
func (s *Server) send(c *Connection, line string) bool {
	if err := c.Send(line); err != nil {
		s.disconnect(c, err)
		return false
	}
	return true
}

// broadcast delivers message to every Active connection except exclude and
// tears down any recipient whose write failed.
func (s *Server) broadcast(message string, exclude ...int64) {
	for _, failure := range s.registry.Broadcast(message, exclude...) {
		s.disconnect(failure.Conn, failure.Err)
	}
}

// disconnect tears c down after a stream end or transport failure.
func (s *Server) disconnect(c *Connection, cause error) bool {
	logLine := fmt.Sprintf("client %d disconnected", c.ID())
	if !isExpectedCloseError(cause) {
		logLine += ", error: " + cause.Error()
	}
	return s.teardown(c, logLine, fmt.Sprintf("client %d disconnected", c.ID()))
}

// kick tears target down on behalf of by.
func (s *Server) kick(target, by *Connection) bool {
	logLine := fmt.Sprintf("client %d disconnected, kicked by %s", target.ID(), by.Name())
	return s.teardown(target, logLine, fmt.Sprintf("%s was kicked from the chat", target.Name()))
}

// teardown moves c through Disconnecting to Removed. It runs at most once
// per connection; later callers get false. An empty notice skips the
// departure broadcast.
func (s *Server) teardown(c *Connection, logLine, notice string) bool {
	if !c.claimTeardown() {
		return false
	}
	c.setState(StateDisconnecting)

	s.recorder.Record(logLine)
	s.logger.Info("client disconnected", "conn_id", c.ID(), "event", logLine)

	s.registry.Remove(c.ID())
	if err := c.transport.Close(); err != nil && !isExpectedCloseError(err) {
		s.logger.Debug("error closing client stream", "conn_id", c.ID(), "error", err)
	}
	if notice != "" {
		s.broadcast(notice)
	}
	c.setState(StateRemoved)
	return true
}

// shutdownTeardown removes c without a departure broadcast.
func (s *Server) shutdownTeardown(c *Connection) bool {
	return s.teardown(c, fmt.Sprintf("client %d disconnected, %v", c.ID(), errServerShutdown), "")
}

// goServe runs fn as a tracked connection task unless the server is
// shutting down.
func (s *Server) goServe(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) trackListener(ln net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		if s.closing {
			return false
		}
		s.listeners[ln] = struct{}{}
	} else {
		delete(s.listeners, ln)
	}
	return true
}

// Shutdown stops accepting, disconnects every client and waits for their
// tasks to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	listeners := make([]net.Listener, 0, len(s.listeners))
	for ln := range s.listeners {
		listeners = append(listeners, ln)
	}
	s.mu.Unlock()

	s.logger.Info("shutting down chat server", "clients", s.registry.Len())

	for _, ln := range listeners {
		if err := ln.Close(); err != nil && !isExpectedCloseError(err) {
			s.logger.Warn("error closing listener", "addr", ln.Addr().String(), "error", err)
		}
	}

	for _, c := range s.registry.snapshot() {
		_ = c.Send("server is shutting down")
		s.shutdownTeardown(c)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("chat server shutdown completed")
		return nil
	case <-ctx.Done():
		s.logger.Warn("chat server shutdown timed out, some connection tasks may still be running")
		return ctx.Err()
	}
}
