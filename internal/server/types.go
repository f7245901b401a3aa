// Package server defines the error taxonomy and small shared helpers used by
// the connection, registry and command logic.
package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/gorilla/websocket"
)

// Registry errors.
var (
	ErrDuplicateID      = errors.New("duplicate connection id")
	ErrNotFound         = errors.New("connection not found")
	ErrNameTaken        = errors.New("name already taken")
	ErrNameUnchanged    = errors.New("name unchanged")
	ErrConnectionClosed = errors.New("connection closed")
)

// errServerShutdown is the teardown cause used when the server stops.
var errServerShutdown = errors.New("server shutting down")

// ErrorKind classifies failures that are reported back to a client.
type ErrorKind int

const (
	// ProtocolError is a malformed or unknown command.
	ProtocolError ErrorKind = iota
	// ValidationError is a well-formed command with bad arguments or state.
	ValidationError
)

func (k ErrorKind) String() string {
	switch k {
	case ProtocolError:
		return "protocol"
	case ValidationError:
		return "validation"
	default:
		return "unknown"
	}
}

// CommandError is a sender-facing failure. Its message is written verbatim
// to the issuing client.
type CommandError struct {
	Kind   ErrorKind
	Detail string
}

func (e *CommandError) Error() string { return e.Detail }

func protocolErrorf(format string, args ...any) *CommandError {
	return &CommandError{Kind: ProtocolError, Detail: fmt.Sprintf(format, args...)}
}

func validationErrorf(format string, args ...any) *CommandError {
	return &CommandError{Kind: ValidationError, Detail: fmt.Sprintf(format, args...)}
}

// TransportError wraps a read or write failure on a single connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// isExpectedCloseError reports whether err is an ordinary end of stream
// rather than a fault worth surfacing in the event log.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent")
}
