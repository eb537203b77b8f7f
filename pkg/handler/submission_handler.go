package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/yumyai/rrna16s/logger"
	"github.com/yumyai/rrna16s/pkg/analysis"
	"github.com/yumyai/rrna16s/pkg/model"

	"github.com/yumyai/rrna16s/pkg/handler/request"
)

const maxSubmissionBytes = 64 << 20

// SubmitAnalysis stores a batch of sequences and schedules the pipeline run.
// The response comes back as soon as the submission is stored; the client
// polls the status endpoint with the returned analysis_uuid.
func (actx *AnalysisContext) SubmitAnalysis(w http.ResponseWriter, r *http.Request) {

	var req request.SubmissionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmissionBytes)).Decode(&req); err != nil {
		logger.Debug("Invalid submission body", zap.Error(err))
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}
	seqs, err := model.ValidateSequences(req.Entries())
	if err != nil {
		writeError(w, err)
		return
	}

	sub, err := actx.Store.CreateSubmission(r.Context(), seqs)
	if err != nil {
		logger.Error("Could not store submission", zap.Error(err))
		writeError(w, err)
		return
	}
	actx.Metrics.Submitted()
	logger.Info("Accepted analysis submission",
		zap.String("analysis_uuid", sub.UUID), zap.Int("sequences", len(seqs)))

	resp := request.SubmissionResponse{AnalysisUUID: sub.UUID, Status: sub.Status}
	switch err := actx.Scheduler.Enqueue(sub.UUID); {
	case errors.Is(err, analysis.ErrQueueFull):
		// Stored as QUEUED; the backlog sweep schedules it when a worker frees up.
		logger.Info("Analysis queue full, submission deferred", zap.String("analysis_uuid", sub.UUID))
	case err != nil:
		// Shutting down: stored, and resumed on the next start.
		logger.Warn("Could not schedule analysis", zap.String("analysis_uuid", sub.UUID), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, struct {
			request.SubmissionResponse
			Detail string `json:"detail"`
		}{resp, err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (actx *AnalysisContext) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := actx.Store.ListSubmissions(r.Context())
	if err != nil {
		logger.Error("Could not list submissions", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (actx *AnalysisContext) GetAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	sub, err := actx.Store.GetSubmission(r.Context(), r.PathValue("analysis_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// GetAnalysisResults is 404 until the submission is COMPLETED.
func (actx *AnalysisContext) GetAnalysisResults(w http.ResponseWriter, r *http.Request) {
	records, err := actx.Store.GetResults(r.Context(), r.PathValue("analysis_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// writeError maps the error taxonomy onto status codes. Store faults are not
// shown to the client.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrMalformedSubmission):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Analysis not found")
	case errors.Is(err, analysis.ErrNotRunning):
		writeDetail(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Could not write response", zap.Error(err))
	}
}
