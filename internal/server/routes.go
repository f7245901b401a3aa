package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// Routes returns the HTTP surface: health, the client directory and the
// WebSocket gateway.
func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/healthz", s.handleHealth)
	r.GET("/clients", s.handleClients)
	r.GET("/ws", s.handleWebSocket)
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"remote", c.ClientIP(),
		)
	}
}
