// Package upload implements the audio upload collaborator: it persists a
// single uploaded file under a sanitized name with an .mp3 extension and
// returns the /uploads reference clients announce via file-ready.
package upload

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/surroundvibe/relay/internal/metrics"
)

// fieldName is the multipart form field carrying the audio file.
const fieldName = "audio"

const maxUploadSize = 64 << 20 // 64 MiB

// Response is the JSON body returned after a successful upload. The
// filename is the reference path clients pass around in file-ready events.
type Response struct {
	Filename string `json:"filename"`
}

// Handler stores uploaded audio files on local disk. Name collisions
// overwrite the previous file; the most recent upload wins.
type Handler struct {
	dir      string
	validate bool
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewHandler creates the upload directory if needed and returns a Handler
// rooted there. When validate is set, uploads whose content does not sniff
// as audio are rejected.
func NewHandler(dir string, validate bool, m *metrics.Metrics, log *slog.Logger) (*Handler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Handler{dir: dir, validate: validate, metrics: m, log: log}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile(fieldName)
	if err != nil {
		http.Error(w, "missing audio field", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Warn("reading upload", "error", err)
		http.Error(w, "failed to read upload", http.StatusBadRequest)
		return
	}

	if h.validate {
		kind := mimetype.Detect(data)
		if !strings.HasPrefix(kind.String(), "audio/") {
			h.metrics.UploadsRejected.Inc()
			h.log.Warn("rejecting non-audio upload", "name", header.Filename, "detected", kind.String())
			http.Error(w, "file is not audio", http.StatusBadRequest)
			return
		}
	}

	name := sanitizeFilename(header.Filename)
	if err := os.WriteFile(filepath.Join(h.dir, name), data, 0o644); err != nil {
		h.log.Error("storing upload", "name", name, "error", err)
		http.Error(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	h.metrics.UploadsTotal.Inc()
	h.log.Info("stored upload", "name", name, "bytes", len(data))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Response{Filename: "/uploads/" + name})
}

// FileServer serves the stored uploads; mount it behind a /uploads prefix.
func (h *Handler) FileServer() http.Handler {
	return http.FileServer(http.Dir(h.dir))
}

// sanitizeFilename reduces the client-supplied name to its base name without
// extension and substitutes the fixed audio extension. Path separators and
// traversal sequences cannot survive filepath.Base.
func sanitizeFilename(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." || name == ".." {
		name = "audio"
	}
	return name + ".mp3"
}
