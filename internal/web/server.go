// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package web serves a read-only JSON view of the paper store alongside the
// downloaded artifacts (PDFs, extracted text).
package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jyozhou/paperscout/pkg/types"
)

// DefaultSectionLimit caps the rows each status section of the listing
// endpoint returns.
const DefaultSectionLimit = 200

// textPreviewRunes bounds the inline text preview in the detail response.
const textPreviewRunes = 5000

// sectionOrder fixes the listing's section sequence to the lifecycle order.
var sectionOrder = []types.Status{
	types.StatusPending,
	types.StatusToDownload,
	types.StatusProcessed,
	types.StatusAnalyzed,
	types.StatusDetailFailed,
	types.StatusDownloadFailed,
}

// PaperStore is the slice of the store the server reads from.
type PaperStore interface {
	PapersByStatus(ctx context.Context, status types.Status, limit int) ([]types.Paper, error)
	PaperByID(ctx context.Context, id string) (types.Paper, error)
	CountByStatus(ctx context.Context) (map[types.Status]int, int, error)
}

// Server is the viewer HTTP server.
type Server struct {
	store  PaperStore
	cfg    types.WebConfig
	logger *slog.Logger

	listener net.Listener
	server   *http.Server
}

// NewServer builds a viewer over the given store. A nil logger discards.
func NewServer(store PaperStore, cfg types.WebConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.SectionLimit <= 0 {
		cfg.SectionLimit = DefaultSectionLimit
	}

	s := &Server{store: store, cfg: cfg, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/papers", s.handlePapers)
	mux.HandleFunc("/api/papers/", s.handlePaperDetail)
	mux.HandleFunc("/pdf/", s.handlePDF)
	mux.HandleFunc("/text/", s.handleText)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on cfg.Bind and serves until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Bind)
	if err != nil {
		return fmt.Errorf("viewer listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("viewer server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("viewer listening", slog.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down outside of context cancellation.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// paperSection is one status bucket in the listing response.
type paperSection struct {
	Status types.Status  `json:"status"`
	Count  int           `json:"count"`
	Papers []types.Paper `json:"papers"`
}

type papersResponse struct {
	Total    int            `json:"total"`
	Sections []paperSection `json:"sections"`
}

func (s *Server) handlePapers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	counts, total, err := s.store.CountByStatus(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := papersResponse{Total: total}
	for _, status := range sectionOrder {
		papers, err := s.store.PapersByStatus(r.Context(), status, s.cfg.SectionLimit)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Sections = append(resp.Sections, paperSection{
			Status: status,
			Count:  counts[status],
			Papers: papers,
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// paperDetail is the single-paper response: the record plus artifact
// availability and a bounded text preview.
type paperDetail struct {
	Paper       types.Paper `json:"paper"`
	HasPDF      bool        `json:"has_pdf"`
	HasText     bool        `json:"has_text"`
	TextPreview string      `json:"text_preview,omitempty"`
}

func (s *Server) handlePaperDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/papers/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "paper not found")
		return
	}

	paper, err := s.store.PaperByID(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeError(w, http.StatusNotFound, "paper not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	detail := paperDetail{Paper: paper}

	pdfPath := filepath.Join(s.cfg.PDFDir, paper.FileID()+".pdf")
	if _, err := os.Stat(pdfPath); err == nil {
		detail.HasPDF = true
	}

	textPath := filepath.Join(s.cfg.TextDir, paper.FileID()+".txt")
	if data, err := os.ReadFile(textPath); err == nil {
		detail.HasText = true
		detail.TextPreview = truncateRunes(string(data), textPreviewRunes)
	}

	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, "/pdf/", s.cfg.PDFDir, ".pdf", "application/pdf")
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, "/text/", s.cfg.TextDir, ".txt", "text/plain; charset=utf-8")
}

// serveArtifact maps /pdf/{id} and /text/{id} onto the paper's on-disk
// artifact, resolving {id} through the store so either the row key or the
// arXiv ID works.
func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, prefix, dir, ext, contentType string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || strings.Contains(id, "/") || strings.Contains(id, "..") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	fileID := id
	if paper, err := s.store.PaperByID(r.Context(), id); err == nil {
		fileID = paper.FileID()
	}

	path := filepath.Join(dir, fileID+ext)
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+fileID+ext+`"`)
	http.ServeFile(w, r, path)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
