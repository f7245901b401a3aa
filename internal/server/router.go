package server

import (
	"fmt"
	"strings"
)

// handleLine routes one inbound line from c: commands go to the command
// processor, anything else is broadcast to the other clients.
func (s *Server) handleLine(c *Connection, raw string) {
	line := strings.TrimRight(raw, "\r\n")
	if line == "" {
		return
	}
	// A kicked connection may still have buffered input.
	if c.State() != StateActive {
		return
	}

	if strings.HasPrefix(line, "/") {
		s.handleCommand(c, line)
		return
	}

	s.recorder.Record(fmt.Sprintf("client %d: %s", c.ID(), line))
	s.broadcast(fmt.Sprintf("%d: %s", c.ID(), line), c.ID())
}

func (s *Server) handleCommand(c *Connection, line string) {
	s.recorder.Record(fmt.Sprintf("client %d command: %s", c.ID(), line))

	cmd := ParseCommand(line)
	if cmdErr := s.execute(c, cmd); cmdErr != nil {
		s.recorder.Record("command error: " + cmdErr.Detail)
		s.logger.Debug("command rejected", "conn_id", c.ID(), "command", cmd.Name, "kind", cmdErr.Kind.String(), "detail", cmdErr.Detail)
		s.send(c, cmdErr.Detail)
	}
}
