package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginCheckerAllowList(t *testing.T) {
	req := require.New(t)
	checker := NewOriginChecker([]string{"http://localhost:3000", "https://Vibe.Example.COM"}, discardLogger())

	req.True(checker.Check(requestWithOrigin("http://localhost:3000")))
	// Matching is case-insensitive on scheme and host.
	req.True(checker.Check(requestWithOrigin("HTTPS://vibe.example.com")))

	req.False(checker.Check(requestWithOrigin("http://evil.example.com")))
	req.False(checker.Check(requestWithOrigin("")))
	req.False(checker.Check(requestWithOrigin("not a url")))
}

func TestOriginCheckerWildcard(t *testing.T) {
	req := require.New(t)
	checker := NewOriginChecker([]string{"*"}, discardLogger())

	req.True(checker.Check(requestWithOrigin("http://anywhere.example.com")))
	req.True(checker.Check(requestWithOrigin("")))
}

func TestOriginCheckerSkipsInvalidEntries(t *testing.T) {
	req := require.New(t)
	checker := NewOriginChecker([]string{"", "   ", "not a url", "http://ok.example.com"}, discardLogger())

	req.True(checker.Check(requestWithOrigin("http://ok.example.com")))
	req.False(checker.Check(requestWithOrigin("http://not-a-url")))
}
