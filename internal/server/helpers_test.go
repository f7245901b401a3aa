package server

import (
	"errors"
	"net"
	"os"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/linechat/internal/auth"
	"github.com/Tyrowin/linechat/internal/eventlog"
	"github.com/Tyrowin/linechat/internal/logger"
)

const testAdminPassword = "supersecretpw"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeTransport records every line written to it.
type fakeTransport struct {
	mu         sync.Mutex
	lines      []string
	closed     bool
	closeCalls int
	failWrites bool
}

func (f *fakeTransport) WriteLine(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return net.ErrClosed
	}
	if f.failWrites {
		return errors.New("broken pipe")
	}
	f.lines = append(f.lines, line)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCalls++
	return nil
}

func (f *fakeTransport) RemoteAddr() string { return "pipe" }

func (f *fakeTransport) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func (f *fakeTransport) Reset() {
	f.mu.Lock()
	f.lines = nil
	f.mu.Unlock()
}

func (f *fakeTransport) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) FailWrites() {
	f.mu.Lock()
	f.failWrites = true
	f.mu.Unlock()
}

type testOption func(*Options)

func withJoinAnnouncements(o *Options) { o.SilentJoins = false }

func newTestServer(t *testing.T, opts ...testOption) (*Server, *eventlog.Memory) {
	t.Helper()

	secret, err := auth.NewAdminSecret(testAdminPassword, bcrypt.MinCost)
	require.NoError(t, err)

	rec := &eventlog.Memory{}
	o := Options{
		AdminSecret:    secret,
		Recorder:       rec,
		Logger:         logger.Discard(),
		AllowedOrigins: []string{"http://localhost:8080"},
		SilentJoins:    true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s, err := New(o)
	require.NoError(t, err)
	return s, rec
}

// connect accepts a fake client and discards its welcome line.
func connect(t *testing.T, s *Server) (*Connection, *fakeTransport) {
	t.Helper()

	ft := &fakeTransport{}
	c := s.accept(ft)
	require.NotNil(t, c)
	ft.Reset()
	return c, ft
}

// connectN accepts n clients and clears every transport afterwards, so join
// traffic does not leak into assertions.
func connectN(t *testing.T, s *Server, n int) ([]*Connection, []*fakeTransport) {
	t.Helper()

	conns := make([]*Connection, n)
	transports := make([]*fakeTransport, n)
	for i := 0; i < n; i++ {
		conns[i], transports[i] = connect(t, s)
	}
	for _, ft := range transports {
		ft.Reset()
	}
	return conns, transports
}
