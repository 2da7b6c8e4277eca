// Package api exposes collection control, progress, and experiment history
// over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/zenbuns/awr-radar-analyzer/internal/monitoring"
	"github.com/zenbuns/awr-radar-analyzer/internal/radar"
	"github.com/zenbuns/awr-radar-analyzer/internal/replay"
	"github.com/zenbuns/awr-radar-analyzer/internal/security"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server wires the HTTP surface over the controller, playback manager and
// experiment store.
type Server struct {
	controller  *CollectionControllerHandle
	playback    *radar.PlaybackManager
	progress    *radar.ProgressReader
	heatmap     *radar.Heatmap
	experiments *radar.ExperimentStore
	logDir      string
}

// CollectionControllerHandle narrows the controller to what the API needs.
type CollectionControllerHandle struct {
	*radar.CollectionController
}

// NewServer creates the HTTP server facade.
func NewServer(controller *radar.CollectionController, playback *radar.PlaybackManager, progress *radar.ProgressReader, heatmap *radar.Heatmap, experiments *radar.ExperimentStore) *Server {
	return &Server{
		controller:  &CollectionControllerHandle{controller},
		playback:    playback,
		progress:    progress,
		heatmap:     heatmap,
		experiments: experiments,
	}
}

// SetLogDir confines playback start requests to scan logs under dir. An
// empty dir (the default) accepts any readable path.
func (s *Server) SetLogDir(dir string) {
	s.logDir = dir
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/collection/start", s.startCollection)
	mux.HandleFunc("/api/collection/stop", s.stopCollection)
	mux.HandleFunc("/api/playback/start", s.startPlayback)
	mux.HandleFunc("/api/playback/cancel", s.cancelPlayback)
	mux.HandleFunc("/api/progress", s.showProgress)
	mux.HandleFunc("/api/heatmap", s.showHeatmap)
	mux.HandleFunc("/api/experiments", s.listExperiments)
	mux.HandleFunc("/api/events", s.streamEvents)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type startCollectionRequest struct {
	ConfigName     string  `json:"config_name"`
	TargetDistance float64 `json:"target_distance"`
	DurationSecs   float64 `json:"duration_secs"`
	PlaybackID     string  `json:"playback_id"`
}

func (s *Server) startCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// An empty body starts a run with defaults.
	var req startCollectionRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	runID, err := s.controller.Start(radar.CollectionOptions{
		ConfigName:     req.ConfigName,
		TargetDistance: req.TargetDistance,
		Duration:       time.Duration(req.DurationSecs * float64(time.Second)),
		PlaybackID:     req.PlaybackID,
	})
	if errors.Is(err, radar.ErrAlreadyActive) {
		s.writeJSONError(w, http.StatusConflict, "collection already active")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"run_id": runID})
}

func (s *Server) stopCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.controller.Stop()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

type startPlaybackRequest struct {
	Path string `json:"path"`
	Loop bool   `json:"loop"`
}

func (s *Server) startPlayback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req startPlaybackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Path == "" {
		s.writeJSONError(w, http.StatusBadRequest, "path is required")
		return
	}
	if s.logDir != "" {
		if err := security.ValidatePathWithinDirectory(req.Path, s.logDir); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "path outside the configured log directory")
			return
		}
	}

	source, err := replay.NewSource(req.Path)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID, err := s.playback.Start(source, req.Loop)
	if errors.Is(err, radar.ErrSourceUnavailable) {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
}

func (s *Server) cancelPlayback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if err := s.playback.Cancel(sessionID); err != nil {
		if errors.Is(err, radar.ErrSessionNotFound) {
			s.writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) showProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	p := s.progress.Read()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":       p.Active,
		"run_id":       p.RunID,
		"count":        p.Count,
		"generation":   p.Generation,
		"elapsed_secs": p.Elapsed.Seconds(),
	})
}

func (s *Server) showHeatmap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, s.heatmap.Metrics())
}

func (s *Server) listExperiments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.experiments == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "experiment store not configured")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	recs, err := s.experiments.List(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []*radar.ExperimentRecord{}
	}
	s.writeJSON(w, http.StatusOK, recs)
}
