package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleHealth reports liveness and the number of connected clients.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": s.registry.Len(),
	})
}

// handleClients returns the connected clients in ascending id order.
func (s *Server) handleClients(c *gin.Context) {
	c.JSON(http.StatusOK, s.registry.List())
}

// handleWebSocket upgrades the request and runs the chat protocol over it,
// one line per text frame.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		s.logger.Warn("websocket upgrade failed", "remote", c.Request.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(int64(s.opts.MaxLineBytes))

	t := &wsTransport{conn: conn, addr: c.Request.RemoteAddr, writeTimeout: s.opts.WriteTimeout}
	r := newWSReader(conn)
	if !s.goServe(func() { s.serveConn(t, r) }) {
		_ = t.Close()
	}
}
