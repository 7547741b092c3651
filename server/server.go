// Package server exposes the pipeline and the metrics contract over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"asin-insights/models"
	"asin-insights/pipeline"
	"asin-insights/provider"
	"asin-insights/services"
	"asin-insights/storage"
	"asin-insights/utils"
)

const (
	maxUploadBytes  = 10 << 20
	maxRequestBytes = 64 << 10
	defaultFileName = "upload.csv"
)

var (
	runIDRegex = regexp.MustCompile(`^run_\d+_[a-z0-9]{9}$`)

	artifacts = map[string]string{
		storage.ReportHTML: "text/html; charset=utf-8",
		storage.ResultJSON: "application/json",
		storage.BundleZip:  "application/zip",
		storage.ArchiveZip: "application/zip",
		storage.ReportPDF:  "application/pdf",
	}
)

// Server serves runs, their artifacts and the competitor-data contract
type Server struct {
	orchestrator *pipeline.Orchestrator
	offline      *provider.DeterministicSource
	exporters    []storage.Exporter
	outputDir    string
	logger       *utils.Logger
}

// New creates a Server. exporters run after each successful run and should
// write under outputDir so their artifacts can be downloaded.
func New(orchestrator *pipeline.Orchestrator, outputDir string, exporters []storage.Exporter, logger *utils.Logger) *Server {
	return &Server{
		orchestrator: orchestrator,
		offline:      provider.NewDeterministicSource(),
		exporters:    exporters,
		outputDir:    outputDir,
		logger:       logger,
	}
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/runs", s.handleRun)
		r.Post("/competitor-data", s.handleCompetitorData)
		r.Get("/run/{runID}/{file}", s.handleArtifact)
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Zerolog().Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	fileName := strings.TrimSpace(r.URL.Query().Get("file_name"))
	if fileName == "" {
		fileName = defaultFileName
	}
	fileName = filepath.Base(fileName)

	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	result, err := s.orchestrator.Run(r.Context(), fileName, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "upload exceeds 10MB", models.KindMalformedInput)
			return
		}
		kind := models.KindOf(err)
		respondError(w, statusFor(kind), err.Error(), kind)
		return
	}

	// Artifacts are best effort; the result is already computed.
	for _, exportErr := range storage.ExportAll(r.Context(), result, s.exporters...) {
		s.logger.Warn("Run %s: %v", result.RunID, exportErr)
	}

	respondJSON(w, http.StatusOK, result)
}

type competitorDataRequest struct {
	ASIN string `json:"asin"`
}

// handleCompetitorData answers the metrics contract with offline data
func (s *Server) handleCompetitorData(w http.ResponseWriter, r *http.Request) {
	var req competitorDataRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", models.KindMalformedInput)
		return
	}
	asin := strings.ToUpper(strings.TrimSpace(req.ASIN))
	if asin == "" {
		respondError(w, http.StatusBadRequest, "asin is required", models.KindMalformedInput)
		return
	}
	if !services.IsASIN(asin) {
		respondError(w, http.StatusBadRequest, "asin must be 10 letters or digits", models.KindNoValidIdentifiers)
		return
	}

	bundle, err := s.offline.Fetch(r.Context(), provider.Request{ASIN: asin})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error(), models.KindMetricsFetchFailure)
		return
	}
	respondJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	file := chi.URLParam(r, "file")

	contentType, ok := artifacts[file]
	if !ok || !runIDRegex.MatchString(runID) {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if file != storage.ReportHTML && file != storage.ResultJSON {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", runID+"_"+file))
	}
	http.ServeFile(w, r, filepath.Join(storage.RunDir(s.outputDir, runID), file))
}

// statusFor maps an error kind onto an HTTP status
func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindMalformedInput, models.KindNoValidIdentifiers:
		return http.StatusBadRequest
	case models.KindMetricsFetchFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string, kind models.ErrorKind) {
	respondJSON(w, status, map[string]any{
		"error": message,
		"kind":  kind,
	})
}
