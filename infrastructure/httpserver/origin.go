package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// newOriginChecker builds the upgrader's CheckOrigin from the configured
// allow-list. An empty list allows every origin: the relay's protocol carries
// no credentials, so cross-origin pages can only do what any client can.
func newOriginChecker(log *slog.Logger, origins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	allowAll := len(origins) == 0

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		allowed[normalized] = struct{}{}
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}

		header := r.Header.Get("Origin")
		normalized, ok := normalizeOrigin(header)
		if !ok {
			return false
		}
		if _, exists := allowed[normalized]; exists {
			return true
		}

		log.Warn("blocked websocket connection from disallowed origin", "origin", header)
		return false
	}
}

// normalizeOrigin lowercases scheme and host so configured and presented
// origins compare reliably.
func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
