// Package server is the reference interview service: CV upload, the
// interview websocket endpoint, a scripted question agent, and frame
// proctoring. It exists so the client can run end to end without the
// production agent stack.
package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxCVBytes = 8 << 20

// Config carries the server settings.
type Config struct {
	Listen string
}

// Server hosts the interview endpoints.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	proctor  *Proctor
}

// New creates a server.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			// The reference server accepts any origin; it is a local
			// development harness, not a deployment target.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		proctor: &Proctor{},
	}
}

// Handler returns the HTTP handler tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Post("/upload-cv", s.handleUploadCV)
	r.Get("/ws/interview/{clientID}", s.handleInterview)
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "interview agent service"})
}

// handleUploadCV accepts one document and returns its extracted plain text.
func (s *Server) handleUploadCV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxCVBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field is required"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxCVBytes))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "read upload"})
		return
	}

	text := extractText(raw)
	s.logger.Info("cv uploaded", "filename", header.Filename, "bytes", len(raw), "extracted", len(text))
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleInterview(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "client_id", clientID, "error", err)
		return
	}

	sess := &wsSession{
		id:       uuid.NewString(),
		clientID: clientID,
		conn:     conn,
		logger:   s.logger,
		proctor:  s.proctor,
	}
	sess.run()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// extractText reduces an uploaded document to plain text. Plain text passes
// through; binary formats are filtered down to their printable runs. A real
// deployment would use a document parser per format.
func extractText(raw []byte) string {
	var b strings.Builder
	var run []rune
	for _, r := range string(raw) {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			run = append(run, r)
			continue
		}
		if len(run) >= 4 {
			b.WriteString(string(run))
			b.WriteByte('\n')
		}
		run = run[:0]
	}
	if len(run) >= 4 {
		b.WriteString(string(run))
	}
	return strings.TrimSpace(b.String())
}
