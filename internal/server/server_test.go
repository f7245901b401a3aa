package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/linechat/internal/logger"
)

var errEOFForTest = &TransportError{Op: "read", Err: io.EOF}

func TestNewRequiresAdminSecret(t *testing.T) {
	_, err := New(Options{Logger: logger.Discard()})
	assert.Error(t, err)
}

func TestAcceptAssignsIncreasingIDs(t *testing.T) {
	s, _ := newTestServer(t)

	var prev int64
	for i := 0; i < 5; i++ {
		c, _ := connect(t, s)
		assert.Greater(t, c.ID(), prev)
		prev = c.ID()
		if i%2 == 0 {
			s.disconnect(c, errEOFForTest)
		}
	}
	assert.Equal(t, int64(5), prev)

	// Ids freed by disconnects are never handed out again.
	c, _ := connect(t, s)
	assert.Equal(t, int64(6), c.ID())
}

func TestAcceptIDsUniqueUnderConcurrency(t *testing.T) {
	s, _ := newTestServer(t)

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c := s.accept(&fakeTransport{}); c != nil {
				ids <- c.ID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %d reused", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, s.registry.Len())
}

func TestAcceptWelcomesAndLogs(t *testing.T) {
	s, rec := newTestServer(t)
	ft := &fakeTransport{}

	c := s.accept(ft)
	require.NotNil(t, c)

	assert.Equal(t, []string{fmt.Sprintf(welcomeFormat, 1)}, ft.Lines())
	assert.Contains(t, ft.Lines()[0], "your id is 1")
	assert.Equal(t, []string{"client 1 has connected"}, rec.Events())
	assert.Equal(t, "1", c.Name())
}

func TestJoinAnnouncements(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		s, _ := newTestServer(t, withJoinAnnouncements)
		_, first := connect(t, s)

		_, second := connect(t, s)

		assert.Equal(t, []string{"client 2 connected"}, first.Lines())
		assert.Empty(t, second.Lines())
	})

	t.Run("disabled", func(t *testing.T) {
		s, _ := newTestServer(t)
		_, first := connect(t, s)
		connect(t, s)

		assert.Empty(t, first.Lines())
	})
}

func TestAcceptWelcomeFailureTearsDown(t *testing.T) {
	s, rec := newTestServer(t)
	ft := &fakeTransport{failWrites: true}

	assert.Nil(t, s.accept(ft))
	assert.Equal(t, 0, s.registry.Len())
	assert.True(t, ft.IsClosed())
	assert.Contains(t, rec.Events(), "client 1 disconnected, error: write: broken pipe")
}

func TestPlainChat(t *testing.T) {
	s, rec := newTestServer(t)
	conns, fts := connectN(t, s, 3)

	s.handleLine(conns[1], "hello")

	assert.Equal(t, []string{"2: hello"}, fts[0].Lines())
	assert.Empty(t, fts[1].Lines(), "sender must not get its own line back")
	assert.Equal(t, []string{"2: hello"}, fts[2].Lines())
	assert.Contains(t, rec.Events(), "client 2: hello")
}

func TestPlainChatKeepsIDAfterRename(t *testing.T) {
	s, _ := newTestServer(t)
	conns, fts := connectN(t, s, 2)
	s.handleLine(conns[0], "/username alice")
	fts[1].Reset()

	s.handleLine(conns[0], "hi")

	assert.Equal(t, []string{"1: hi"}, fts[1].Lines())
}

func TestEmptyLinesIgnored(t *testing.T) {
	s, rec := newTestServer(t)
	conns, fts := connectN(t, s, 2)
	before := len(rec.Events())

	for _, line := range []string{"", "\n", "\r\n"} {
		s.handleLine(conns[0], line)
	}

	assert.Empty(t, fts[1].Lines())
	assert.Len(t, rec.Events(), before)
}

func TestTrailingNewlineTrimmed(t *testing.T) {
	s, _ := newTestServer(t)
	conns, fts := connectN(t, s, 2)

	s.handleLine(conns[0], "hello\r\n")

	assert.Equal(t, []string{"1: hello"}, fts[1].Lines())
}

// orderingRecorder checks that a log record is always written before the
// corresponding network effect reaches a client.
type orderingRecorder struct {
	mu     sync.Mutex
	events []string
	peer   *fakeTransport
	seen   []int
}

func (o *orderingRecorder) Record(event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	o.seen = append(o.seen, len(o.peer.Lines()))
}

func TestLogRecordPrecedesDelivery(t *testing.T) {
	s, _ := newTestServer(t)
	conns, fts := connectN(t, s, 2)
	ord := &orderingRecorder{peer: fts[1]}
	s.recorder = ord

	s.handleLine(conns[0], "hello")

	require.Equal(t, []string{"client 1: hello"}, ord.events)
	assert.Equal(t, []int{0}, ord.seen)
	assert.Equal(t, []string{"1: hello"}, fts[1].Lines())
}

func TestDisconnect(t *testing.T) {
	s, rec := newTestServer(t)
	conns, fts := connectN(t, s, 3)

	assert.True(t, s.disconnect(conns[0], errEOFForTest))

	assert.Equal(t, StateRemoved, conns[0].State())
	assert.True(t, fts[0].IsClosed())
	assert.Empty(t, fts[0].Lines())
	assert.Equal(t, []string{"client 1 disconnected"}, fts[1].Lines())
	assert.Equal(t, []string{"client 1 disconnected"}, fts[2].Lines())
	assert.Equal(t, "client 1 disconnected", rec.Events()[len(rec.Events())-1])
	assert.Equal(t, []Entry{{ID: 2, Name: "2"}, {ID: 3, Name: "3"}}, s.registry.List())
}

func TestDisconnectWithError(t *testing.T) {
	s, rec := newTestServer(t)
	conns, _ := connectN(t, s, 1)

	s.disconnect(conns[0], &TransportError{Op: "read", Err: errors.New("connection reset by peer")})

	assert.Contains(t, rec.Events(), "client 1 disconnected, error: read: connection reset by peer")
}

// TestDisconnectRacesCollapse fires several termination signals at once and
// expects exactly one removal broadcast and one log record.
func TestDisconnectRacesCollapse(t *testing.T) {
	s, rec := newTestServer(t)
	conns, fts := connectN(t, s, 2)

	var wg sync.WaitGroup
	results := make(chan bool, 4)
	for _, cause := range []error{errEOFForTest, errors.New("reset"), errEOFForTest, errors.New("timeout")} {
		wg.Add(1)
		go func(cause error) {
			defer wg.Done()
			results <- s.disconnect(conns[0], cause)
		}(cause)
	}
	wg.Wait()
	close(results)

	won := 0
	for ok := range results {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, []string{"client 1 disconnected"}, fts[1].Lines())

	records := 0
	for _, e := range rec.Events() {
		if strings.HasPrefix(e, "client 1 disconnected") {
			records++
		}
	}
	assert.Equal(t, 1, records)
}

func TestBroadcastWriteFailureTearsDownOnlyThatClient(t *testing.T) {
	s, rec := newTestServer(t)
	conns, fts := connectN(t, s, 3)
	fts[2].FailWrites()

	s.handleLine(conns[0], "hello")

	assert.Equal(t, StateRemoved, conns[2].State())
	assert.Equal(t, StateActive, conns[1].State())
	assert.Equal(t, []string{"1: hello", "client 3 disconnected"}, fts[1].Lines())
	assert.Equal(t, []string{"client 3 disconnected"}, fts[0].Lines())
	assert.Contains(t, rec.Events(), "client 3 disconnected, error: write: broken pipe")
}

type scriptedReader struct {
	lines []string
	err   error
}

func (r *scriptedReader) ReadLine() (string, error) {
	if len(r.lines) == 0 {
		return "", r.err
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func TestServeConnRunsLifecycle(t *testing.T) {
	s, rec := newTestServer(t)
	_, peer := connect(t, s)

	ft := &fakeTransport{}
	s.serveConn(ft, &scriptedReader{lines: []string{"hi", "/clientlist"}, err: io.EOF})

	assert.Equal(t, []string{
		fmt.Sprintf(welcomeFormat, 2),
		"connected clients: 1, 2",
	}, ft.Lines())
	assert.Equal(t, []string{"2: hi", "client 2 disconnected"}, peer.Lines())
	assert.True(t, ft.IsClosed())
	assert.Equal(t, 1, s.registry.Len())

	events := rec.Events()
	assert.Equal(t, "client 2 disconnected", events[len(events)-1])
}

func TestShutdownDisconnectsEveryone(t *testing.T) {
	s, rec := newTestServer(t)
	conns, fts := connectN(t, s, 3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	assert.Equal(t, 0, s.registry.Len())
	for i, c := range conns {
		assert.Equal(t, StateRemoved, c.State())
		assert.True(t, fts[i].IsClosed())
		assert.Equal(t, []string{"server is shutting down"}, fts[i].Lines())
	}
	assert.Contains(t, rec.Events(), "client 2 disconnected, server shutting down")

	assert.Nil(t, s.accept(&fakeTransport{}))
	assert.False(t, s.goServe(func() {}))
}
