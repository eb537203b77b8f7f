package handler

// DI for all handlers.

import (
	"context"

	"github.com/yumyai/rrna16s/pkg/metrics"
	"github.com/yumyai/rrna16s/pkg/model"
)

// SubmissionStore is what the handlers read and write. *db.Store implements it.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, seqs []model.InputSequence) (*model.Submission, error)
	GetSubmission(ctx context.Context, analysisUUID string) (*model.Submission, error)
	ListSubmissions(ctx context.Context) ([]*model.Submission, error)
	GetResults(ctx context.Context, analysisUUID string) ([]model.ResultRecord, error)
	Ping(ctx context.Context) error
}

// Scheduler hands submissions to the background workers.
// *analysis.Orchestrator implements it.
type Scheduler interface {
	Enqueue(analysisUUID string) error
	Depth() int
}

type AnalysisContext struct {
	Store     SubmissionStore
	Scheduler Scheduler
	Metrics   *metrics.Metrics
}
