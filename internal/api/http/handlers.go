package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"weatherbench/internal/bench"
	"weatherbench/internal/execution"
	"weatherbench/internal/observability/metrics"
	"weatherbench/internal/report"
	"weatherbench/internal/runstore"
)

// RunsHandler serves run launches and run history.
type RunsHandler struct {
	svc *bench.Service
}

// NewRunsHandler constructs a RunsHandler.
func NewRunsHandler(svc *bench.Service) *RunsHandler {
	return &RunsHandler{svc: svc}
}

type launchRequest struct {
	Backend     string `json:"backend"`
	Parallelism int    `json:"parallelism"`
}

// ServeHTTP handles POST and GET /api/v1/runs.
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.svc == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodPost:
		h.launch(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *RunsHandler) launch(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Backend == "" {
		http.Error(w, "backend is required", http.StatusBadRequest)
		return
	}
	if req.Parallelism < 0 {
		http.Error(w, "parallelism must not be negative", http.StatusBadRequest)
		return
	}

	rec, err := h.svc.Execute(r.Context(), req.Backend, req.Parallelism)
	if err != nil {
		if errors.Is(err, execution.ErrUnknownBackend) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "run failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(rec)
}

func (h *RunsHandler) list(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.List(r.Context())
	if err != nil {
		http.Error(w, "list runs error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(recs)
}

// BackendsHandler serves the configured backend names.
type BackendsHandler struct {
	svc *bench.Service
}

// NewBackendsHandler constructs a BackendsHandler.
func NewBackendsHandler(svc *bench.Service) *BackendsHandler {
	return &BackendsHandler{svc: svc}
}

// ServeHTTP handles GET /api/v1/backends.
func (h *BackendsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.svc == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.svc.Backends())
}

// ExportHandler serves PDF and XLSX exports of one completed run.
type ExportHandler struct {
	svc *bench.Service
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(svc *bench.Service) *ExportHandler {
	return &ExportHandler{svc: svc}
}

// ServeHTTP handles GET /api/v1/runs/{id}/export.pdf and export.xlsx.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.svc == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	runID, format, ok := parseExportPath(r.URL.Path)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	recs, err := h.svc.List(r.Context())
	if err != nil {
		http.Error(w, "list runs error", http.StatusInternalServerError)
		return
	}
	var rec *runstore.Record
	for i := range recs {
		if recs[i].ID == runID {
			rec = &recs[i]
			break
		}
	}
	if rec == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	frags, ok := h.svc.Fragments(runID)
	if !ok {
		http.Error(w, "run metrics not retained", http.StatusGone)
		return
	}

	var payload []byte
	var contentType, filename string
	switch format {
	case "pdf":
		payload, err = report.BuildRunPDF(*rec, frags)
		contentType = "application/pdf"
		filename = "run_" + runID + ".pdf"
	case "xlsx":
		payload, err = report.BuildRunXLSX(*rec, frags)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "run_" + runID + ".xlsx"
	default:
		http.Error(w, "unsupported export format", http.StatusNotFound)
		return
	}
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(format, metrics.ResultSuccess)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	_, _ = w.Write(payload)
}

func parseExportPath(path string) (runID, format string, ok bool) {
	rest, found := strings.CutPrefix(path, "/api/v1/runs/")
	if !found {
		return "", "", false
	}
	runID, suffix, found := strings.Cut(rest, "/export.")
	if !found || runID == "" || strings.Contains(runID, "/") {
		return "", "", false
	}
	return runID, suffix, true
}
