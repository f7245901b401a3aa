package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may open a WebSocket. Origins
// are compared as lower-cased scheme://host; paths are ignored.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string, logger *slog.Logger) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, raw := range origins {
		switch entry := strings.TrimSpace(raw); entry {
		case "":
		case "*":
			p.allowAll = true
		default:
			key, ok := originKey(entry)
			if !ok {
				logger.Warn("ignoring invalid origin in configuration", "origin", raw)
				continue
			}
			p.allowed[key] = struct{}{}
		}
	}
	return p
}

func originKey(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

// allows rejects a missing or malformed Origin header even when every
// origin is allowed.
func (p originPolicy) allows(header string) bool {
	key, ok := originKey(header)
	if !ok {
		return false
	}
	if p.allowAll {
		return true
	}
	_, found := p.allowed[key]
	return found
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if s.origins.allows(origin) {
		return true
	}
	s.logger.Warn("blocked websocket connection from disallowed origin", "origin", origin)
	return false
}
