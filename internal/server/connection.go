package server

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// Transport is the outbound half of a client stream. WriteLine must write
// the whole line atomically with respect to other WriteLine calls.
type Transport interface {
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

// LineReader is the inbound half of a client stream. ReadLine returns one
// line without its terminator, or an error once the stream is finished.
type LineReader interface {
	ReadLine() (string, error)
}

// State is the lifecycle position of a Connection.
type State int32

const (
	StateActive State = iota
	StateDisconnecting
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDisconnecting:
		return "disconnecting"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Connection is one client's live session.
type Connection struct {
	id        int64
	transport Transport

	mu   sync.RWMutex
	name string

	state    atomic.Int32
	tornDown atomic.Bool
}

// NewConnection creates an Active connection whose name defaults to its id.
func NewConnection(id int64, transport Transport) *Connection {
	return &Connection{
		id:        id,
		transport: transport,
		name:      strconv.FormatInt(id, 10),
	}
}

// ID returns the connection's immutable id.
func (c *Connection) ID() int64 { return c.id }

// Name returns the current display name.
func (c *Connection) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Connection) setName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// State returns the current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

func (c *Connection) setState(s State) { c.state.Store(int32(s)) }

// RemoteAddr returns the peer address of the underlying stream.
func (c *Connection) RemoteAddr() string { return c.transport.RemoteAddr() }

// Send writes one line to the client. Removed connections never receive
// writes.
func (c *Connection) Send(line string) error {
	if c.State() == StateRemoved {
		return ErrConnectionClosed
	}
	if err := c.transport.WriteLine(line); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// claimTeardown returns true exactly once per connection.
func (c *Connection) claimTeardown() bool {
	return c.tornDown.CompareAndSwap(false, true)
}
