package upload

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/surroundvibe/relay/internal/metrics"
)

func newTestHandler(t *testing.T, validate bool) *Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := NewHandler(t.TempDir(), validate, metrics.NewWithRegisterer(prometheus.NewRegistry()), log)
	require.NoError(t, err)
	return h
}

func postFile(t *testing.T, h *Handler, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	r := httptest.NewRequest(http.MethodPost, "/upload", &body)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestUploadStoresFileAndReturnsReference(t *testing.T) {
	req := require.New(t)
	h := newTestHandler(t, false)

	w := postFile(t, h, fieldName, "My Track.wav", []byte("not really audio"))
	req.Equal(http.StatusOK, w.Code)

	var resp Response
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Equal("/uploads/My Track.mp3", resp.Filename)

	stored, err := os.ReadFile(filepath.Join(h.dir, "My Track.mp3"))
	req.NoError(err)
	req.Equal([]byte("not really audio"), stored)
}

func TestUploadOverwritesOnCollision(t *testing.T) {
	req := require.New(t)
	h := newTestHandler(t, false)

	postFile(t, h, fieldName, "track.mp3", []byte("first"))
	w := postFile(t, h, fieldName, "track.flac", []byte("second"))
	req.Equal(http.StatusOK, w.Code)

	stored, err := os.ReadFile(filepath.Join(h.dir, "track.mp3"))
	req.NoError(err)
	req.Equal([]byte("second"), stored)
}

func TestUploadRequiresAudioField(t *testing.T) {
	req := require.New(t)
	h := newTestHandler(t, false)

	w := postFile(t, h, "document", "track.mp3", []byte("data"))
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestUploadRejectsNonPost(t *testing.T) {
	req := require.New(t)
	h := newTestHandler(t, false)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/upload", nil))
	req.Equal(http.StatusMethodNotAllowed, w.Code)
}

func TestUploadValidationRejectsNonAudio(t *testing.T) {
	req := require.New(t)
	h := newTestHandler(t, true)

	w := postFile(t, h, fieldName, "notes.txt", []byte("plain text pretending to be a song"))
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestUploadValidationAcceptsMP3(t *testing.T) {
	req := require.New(t)
	h := newTestHandler(t, true)

	// Minimal MPEG audio frame header (MPEG-1 Layer III).
	frame := append([]byte{0xFF, 0xFB, 0x90, 0x00}, make([]byte, 32)...)
	w := postFile(t, h, fieldName, "track.mp3", frame)
	req.Equal(http.StatusOK, w.Code)
}

func TestSanitizeFilename(t *testing.T) {
	req := require.New(t)

	cases := map[string]string{
		"song.wav":               "song.mp3",
		"song":                   "song.mp3",
		"../../../etc/passwd":    "passwd.mp3",
		`C:\music\track.flac`:    "track.mp3",
		"":                       "audio.mp3",
		"..":                     "audio.mp3",
		"album.name.with.dots":   "album.name.with.mp3",
		"/uploads/nested/it.mp3": "it.mp3",
	}
	for input, want := range cases {
		req.Equal(want, sanitizeFilename(input), "input %q", input)
	}
}
