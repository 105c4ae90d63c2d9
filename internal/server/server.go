package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ewastehub/appraisal-relay/internal/analysis"
	"github.com/ewastehub/appraisal-relay/internal/models"
	"github.com/ewastehub/appraisal-relay/internal/service"
	"github.com/ewastehub/appraisal-relay/pkg/encoding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxImageBytes = 10 << 20

// Analyzer is the boundary to the multimodal analysis service. A nil analyzer
// means the service runs in raw-only mode: operators submit pre-extracted
// payloads and no image analysis is attempted.
type Analyzer interface {
	Appraise(ctx context.Context, image []byte, mimeType string) (models.RawAnalysis, error)
}

// Server exposes the operator-facing actions: submit an analysis, trigger a
// sync, inspect the queue, and read summaries and exports.
type Server struct {
	coordinator *service.Coordinator
	normalizer  *service.Normalizer
	analyzer    Analyzer
	store       service.Store
	logger      *slog.Logger
}

func New(coordinator *service.Coordinator, normalizer *service.Normalizer, analyzer Analyzer, store service.Store, logger *slog.Logger) *Server {
	return &Server{
		coordinator: coordinator,
		normalizer:  normalizer,
		analyzer:    analyzer,
		store:       store,
		logger:      logger,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analyses", s.handleNewAnalysis)
	mux.HandleFunc("POST /v1/sync", s.handleSync)
	mux.HandleFunc("GET /v1/summary", s.handleSummary)
	mux.HandleFunc("GET /v1/queue", s.handleQueue)
	mux.HandleFunc("GET /v1/export", s.handleExport)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("RELAY ALIVE"))
	})
	return mux
}

type analysisRequest struct {
	Mode       string         `json:"mode"`
	RawText    string         `json:"raw_text,omitempty"`
	RawMapping map[string]any `json:"raw_mapping,omitempty"`
}

type analysisResponse struct {
	Record  models.AnalysisRecord `json:"record"`
	Outcome service.Outcome       `json:"outcome"`
}

// handleNewAnalysis accepts either a multipart upload (field "image", with an
// optional "mode") that goes through the analysis service, or a JSON body
// carrying a pre-extracted raw payload. Either way the result is normalized
// and handed to the coordinator.
func (s *Server) handleNewAnalysis(w http.ResponseWriter, r *http.Request) {
	var raw models.RawAnalysis
	var mode service.Mode

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		var ok bool
		raw, mode, ok = s.rawFromUpload(w, r)
		if !ok {
			return
		}
	} else {
		var req analysisRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.RawMapping != nil {
			raw = models.RawMapping(req.RawMapping)
		} else {
			raw = models.RawText(req.RawText)
		}
		mode = parseMode(req.Mode)
	}

	rec := s.normalizer.Normalize(raw)
	outcome := s.coordinator.Submit(r.Context(), rec, mode)

	s.writeJSON(w, http.StatusAccepted, analysisResponse{Record: rec, Outcome: outcome})
}

func (s *Server) rawFromUpload(w http.ResponseWriter, r *http.Request) (models.RawAnalysis, service.Mode, bool) {
	if s.analyzer == nil {
		s.writeError(w, http.StatusServiceUnavailable, "image analysis is not configured")
		return models.RawAnalysis{}, "", false
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return models.RawAnalysis{}, "", false
	}
	mode := parseMode(r.FormValue("mode"))

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing image file")
		return models.RawAnalysis{}, "", false
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read image")
		return models.RawAnalysis{}, "", false
	}

	raw, err := s.analyzer.Appraise(r.Context(), image, header.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, analysis.ErrNoRecord) {
			s.logger.Warn("Analysis produced no record", "error", err)
			s.writeError(w, http.StatusBadGateway, "analysis produced no record")
		} else {
			s.writeError(w, http.StatusInternalServerError, "analysis failed")
		}
		return models.RawAnalysis{}, "", false
	}

	return raw, mode, true
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res := s.coordinator.SyncNow(r.Context())
	status := http.StatusOK
	if res.StoreUnavailable {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, res)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ReadAll(r.Context())
	if err != nil {
		s.logger.Error("Summary read failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "remote store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, service.Summarize(records))
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"depth":   s.coordinator.QueueDepth(),
		"entries": s.coordinator.PendingEntries(),
	})
}

// handleExport streams the persisted rows as Windows-1252 CSV for legacy
// spreadsheet tooling.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ReadAll(r.Context())
	if err != nil {
		s.logger.Error("Export read failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "remote store unavailable")
		return
	}

	var sb strings.Builder
	cw := csv.NewWriter(&sb)
	cw.Write(models.Header())
	for _, rec := range records {
		cw.Write(rec.Row())
	}
	cw.Flush()

	w.Header().Set("Content-Type", "text/csv; charset=windows-1252")
	w.Header().Set("Content-Disposition", `attachment; filename="appraisals.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(encoding.FromUTF8(sb.String()))
}

func parseMode(raw string) service.Mode {
	if strings.EqualFold(raw, string(service.ModeBuffered)) {
		return service.ModeBuffered
	}
	return service.ModeImmediate
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
