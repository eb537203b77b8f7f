// Handler for miscellaneous endpoints such as health check

package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yumyai/rrna16s/logger"
)

type HealthResponse struct {
	Health     string    `json:"health"`
	Timestamp  time.Time `json:"timestamp"`
	QueueDepth int       `json:"queue_depth"`
}

// HealthCheck reports "ok" when the store answers a ping.
func (actx *AnalysisContext) HealthCheck(w http.ResponseWriter, r *http.Request) {

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Health:     "ok",
		Timestamp:  time.Now(),
		QueueDepth: actx.Scheduler.Depth(),
	}
	status := http.StatusOK
	if err := actx.Store.Ping(ctx); err != nil {
		logger.Warn("Health check: database unreachable", zap.Error(err))
		response.Health = "unavailable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}
