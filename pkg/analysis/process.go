package analysis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yumyai/rrna16s/logger"
	"github.com/yumyai/rrna16s/pkg/archive"
	"github.com/yumyai/rrna16s/pkg/metrics"
	"github.com/yumyai/rrna16s/pkg/model"
	"github.com/yumyai/rrna16s/pkg/pipeline"
)

const outputTail = 4096

// Process runs one submission to the end of its lifecycle:
//
//	QUEUED -> FAILED     pipeline could not start, or exited non-zero
//	QUEUED -> SUCCESS    pipeline exited zero
//	SUCCESS -> COMPLETED results file parsed and stored
//
// A submission that is not QUEUED is left alone, so running Process twice
// for the same id is harmless. The returned error is only set when the
// store could not record what happened.
func (o *Orchestrator) Process(ctx context.Context, analysisUUID string) (err error) {
	log := logger.With(zap.String("analysis_uuid", analysisUUID))

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.Error("Panic while processing analysis", zap.Any("panic", r), zap.Stack("stack"))
		o.metrics.Run(metrics.OutcomePanic)
		if uerr := o.store.UpdateStatus(ctx, analysisUUID, model.StatusFailed); uerr != nil && !errors.Is(uerr, model.ErrInvalidTransition) {
			log.Error("Could not mark analysis as failed", zap.Error(uerr))
		}
		err = fmt.Errorf("panic processing %s: %v", analysisUUID, r)
	}()

	sub, err := o.store.GetSubmission(ctx, analysisUUID)
	if err != nil {
		return err
	}
	if sub.Status != model.StatusQueued {
		log.Info("Analysis already processed, skipping", zap.Stringer("status", sub.Status))
		return nil
	}

	log.Info("Running analysis", zap.Int("sequences", len(sub.Sequences)))
	out, runErr := o.runner.Run(ctx, sub)
	if out.Duration > 0 {
		o.metrics.ObserveDuration(out.Duration)
	}
	// after the status change below, so a slow archive never holds it up
	defer o.archiveRun(ctx, log, analysisUUID, out.Layout)

	switch {
	case runErr != nil:
		log.Error("Pipeline could not be run", zap.Error(runErr))
		o.metrics.Run(metrics.OutcomeFault)
		return o.store.UpdateStatus(ctx, analysisUUID, model.StatusFailed)
	case !out.Succeeded:
		log.Error("Analysis failed",
			zap.Int("exit_code", out.ExitCode),
			zap.Duration("duration", out.Duration),
			zap.String("output", tail(out.Output, outputTail)))
		o.metrics.Run(metrics.OutcomeFailed)
		return o.store.UpdateStatus(ctx, analysisUUID, model.StatusFailed)
	}

	log.Info("Analysis completed successfully", zap.Duration("duration", out.Duration))
	if err := o.store.UpdateStatus(ctx, analysisUUID, model.StatusSuccess); err != nil {
		return err
	}

	n, err := o.IngestResults(ctx, analysisUUID, out.Layout.ResultsFile)
	switch {
	case errors.Is(err, model.ErrResultsFileMissing):
		log.Warn("Pipeline succeeded but wrote no results file", zap.String("path", out.Layout.ResultsFile))
		o.metrics.Run(metrics.OutcomeResultsMissing)
		return nil
	case errors.Is(err, errParse):
		log.Error("Could not parse results", zap.Error(err))
		o.metrics.Run(metrics.OutcomeParseError)
		return nil
	case err != nil:
		o.metrics.Run(metrics.OutcomeStoreError)
		return err
	}

	log.Info("Stored blast results", zap.Int("records", n))
	o.metrics.Run(metrics.OutcomeCompleted)
	return nil
}

var errParse = errors.New("parse results")

// IngestResults parses a results file and stores it for a SUCCESS submission,
// which moves it to COMPLETED. Besides the normal flow it is how an operator
// recovers a run whose results file was missing when the pipeline ended.
func (o *Orchestrator) IngestResults(ctx context.Context, analysisUUID, path string) (int, error) {
	res, err := model.ParseBlastResults(path)
	if errors.Is(err, model.ErrResultsFileMissing) {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errParse, err)
	}

	if len(res.Anomalies) > 0 {
		log := logger.With(zap.String("analysis_uuid", analysisUUID))
		for _, a := range res.Anomalies {
			log.Warn("Unparseable result field stored as absent",
				zap.Int("row", a.Row), zap.String("field", a.Field), zap.String("value", a.Value))
		}
	}

	if pk := o.referencePK(ctx); pk != nil {
		for i := range res.Records {
			res.Records[i].ReferenceDatabaseID = pk
		}
	}

	if err := o.store.AppendResultRecords(ctx, analysisUUID, res.Records); err != nil {
		return 0, err
	}
	o.metrics.Records(len(res.Records), len(res.Anomalies))
	return len(res.Records), nil
}

// referencePK registers the configured BLAST database on first use. A failure
// is logged and retried on the next run; records are stored unlinked.
func (o *Orchestrator) referencePK(ctx context.Context) *int64 {
	if o.refDB == nil {
		return nil
	}
	o.refMu.Lock()
	defer o.refMu.Unlock()
	if o.refPK != nil {
		return o.refPK
	}
	pk, err := o.store.UpsertReferenceDatabase(ctx, *o.refDB)
	if err != nil {
		logger.Warn("Could not register blast database", zap.String("name", o.refDB.Name), zap.Error(err))
		return nil
	}
	o.refPK = &pk
	return o.refPK
}

func (o *Orchestrator) archiveRun(ctx context.Context, log *zap.Logger, analysisUUID string, l pipeline.Layout) {
	if o.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, o.archiveTimeout)
	defer cancel()
	stored, err := archive.PutFiles(ctx, o.archive, analysisUUID, l.Artifacts())
	if err != nil {
		log.Warn("Could not archive every run artifact", zap.Error(err))
	}
	if len(stored) > 0 {
		log.Debug("Archived run artifacts", zap.Int("files", len(stored)), zap.String("driver", string(o.archive.Driver())))
	}
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return "..." + string(b[len(b)-n:])
}
