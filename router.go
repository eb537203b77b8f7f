package main

import (
	"net/http"

	"github.com/yumyai/rrna16s/logger"
	"github.com/yumyai/rrna16s/pkg/handler"
	"github.com/yumyai/rrna16s/pkg/middle"
)

func NewRouter(actx *handler.AnalysisContext) http.Handler {
	mux := http.NewServeMux()

	// Error route
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	// Analysis routes
	mux.HandleFunc("POST /analysis/submission", actx.SubmitAnalysis)
	mux.HandleFunc("GET /analysis/submission", actx.ListSubmissions)
	mux.HandleFunc("GET /analysis/{analysis_id}/status", actx.GetAnalysisStatus)
	mux.HandleFunc("GET /analysis/{analysis_id}/results", actx.GetAnalysisResults)

	// API routes
	mux.HandleFunc("GET /api/v1/health", actx.HealthCheck)
	if actx.Metrics != nil {
		mux.Handle("GET /metrics", actx.Metrics.Handler())
	}

	return middle.Chain(mux,
		middle.RequestIDMiddleware(logger.L()),
		middle.LoggingMiddleware(logger.L()),
	)
}
