package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker validates the Origin header of WebSocket upgrade requests
// against a configured allow-list. A single "*" entry allows every origin.
type OriginChecker struct {
	allowed  map[string]struct{}
	allowAll bool
	log      *slog.Logger
}

// NewOriginChecker builds a checker from the configured origin list. Invalid
// entries are logged and skipped.
func NewOriginChecker(origins []string, log *slog.Logger) *OriginChecker {
	checker := &OriginChecker{
		allowed: make(map[string]struct{}, len(origins)),
		log:     log,
	}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			checker.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		checker.allowed[normalized] = struct{}{}
	}

	return checker
}

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

// Check reports whether the request's origin is allowed to upgrade.
func (oc *OriginChecker) Check(r *http.Request) bool {
	if oc.allowAll {
		return true
	}

	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		return false
	}

	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}

	if _, exists := oc.allowed[normalized]; exists {
		return true
	}

	oc.log.Warn("blocked websocket connection from disallowed origin", "origin", originHeader)
	return false
}
