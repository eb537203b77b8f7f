// Package analysis drives submissions through their lifecycle: it runs the
// pipeline out of band on a fixed pool of workers, records how each run ended
// and stores the parsed results.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yumyai/rrna16s/logger"
	"github.com/yumyai/rrna16s/pkg/archive"
	"github.com/yumyai/rrna16s/pkg/metrics"
	"github.com/yumyai/rrna16s/pkg/model"
	"github.com/yumyai/rrna16s/pkg/pipeline"
)

var (
	// ErrQueueFull is returned by Enqueue when every slot is taken. The
	// submission stays QUEUED and the backlog sweep schedules it once a
	// worker frees up.
	ErrQueueFull = errors.New("analysis queue is full")
	// ErrNotRunning is returned by Enqueue before Start or after Shutdown.
	ErrNotRunning = errors.New("orchestrator is not running")
)

// Store is the part of the submission store the orchestrator writes through.
type Store interface {
	GetSubmission(ctx context.Context, analysisUUID string) (*model.Submission, error)
	ListByStatus(ctx context.Context, status model.Status) ([]*model.Submission, error)
	UpdateStatus(ctx context.Context, analysisUUID string, next model.Status) error
	AppendResultRecords(ctx context.Context, analysisUUID string, records []model.ResultRecord) error
	UpsertReferenceDatabase(ctx context.Context, ref model.ReferenceDatabase) (int64, error)
}

// Runner runs the pipeline for one submission. *pipeline.Invoker is the
// production implementation.
type Runner interface {
	Run(ctx context.Context, sub *model.Submission) (pipeline.Outcome, error)
}

const (
	defaultSweepInterval  = 15 * time.Second
	defaultArchiveTimeout = 2 * time.Minute
)

type Options struct {
	Workers   int
	QueueSize int
	// SweepInterval is how often QUEUED submissions that never made it into
	// the queue are looked up again. Workers also trigger a sweep when they
	// run out of work.
	SweepInterval time.Duration

	// Archive receives the run artifacts; nil disables archiving.
	Archive archive.Store
	// ArchiveTimeout bounds the upload of one run's artifacts.
	ArchiveTimeout time.Duration
	Metrics        *metrics.Metrics
	// ReferenceDB, when set, is registered once and linked to every stored record.
	ReferenceDB *model.ReferenceDatabase
}

// Orchestrator owns the queue and the worker pool. The store handle is shared
// by all workers; each job uses its own transactions.
type Orchestrator struct {
	store          Store
	runner         Runner
	archive        archive.Store
	archiveTimeout time.Duration
	metrics        *metrics.Metrics
	workers        int
	sweepEvery     time.Duration

	queue chan string
	stop  chan struct{}
	wake  chan struct{}
	group *errgroup.Group

	// ids sitting in queue or being processed
	pendMu  sync.Mutex
	pending map[string]struct{}

	mu      sync.RWMutex
	running bool

	refMu sync.Mutex
	refDB *model.ReferenceDatabase
	refPK *int64
}

func New(store Store, runner Runner, opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = defaultArchiveTimeout
	}
	return &Orchestrator{
		store:          store,
		runner:         runner,
		archive:        opts.Archive,
		archiveTimeout: opts.ArchiveTimeout,
		metrics:        opts.Metrics,
		workers:        opts.Workers,
		sweepEvery:     opts.SweepInterval,
		queue:          make(chan string, opts.QueueSize),
		stop:           make(chan struct{}),
		wake:           make(chan struct{}, 1),
		pending:        make(map[string]struct{}),
		refDB:          opts.ReferenceDB,
	}
}

// Start launches the workers and the backlog sweep. Runs are not tied to ctx being cancelled: a
// dispatched run always finishes and records its outcome. Use Shutdown to
// stop taking new work.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return
	}
	o.running = true

	runCtx := context.WithoutCancel(ctx)
	o.group = &errgroup.Group{}
	for i := 0; i < o.workers; i++ {
		worker := i
		o.group.Go(func() error {
			return o.work(runCtx, worker)
		})
	}
	o.group.Go(func() error {
		return o.sweep(runCtx)
	})
	logger.Info("Analysis workers started", zap.Int("workers", o.workers), zap.Int("queue_size", cap(o.queue)))
}

// Enqueue schedules a submission without blocking. An id that is already
// queued or running is accepted without being queued twice.
func (o *Orchestrator) Enqueue(analysisUUID string) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.running {
		return ErrNotRunning
	}
	_, err := o.offer(analysisUUID)
	return err
}

// offer puts an id on the queue unless it is already queued or running.
// It reports whether the id was added.
func (o *Orchestrator) offer(analysisUUID string) (bool, error) {
	o.pendMu.Lock()
	defer o.pendMu.Unlock()
	if _, ok := o.pending[analysisUUID]; ok {
		return false, nil
	}
	select {
	case o.queue <- analysisUUID:
		o.pending[analysisUUID] = struct{}{}
		o.metrics.SetQueueDepth(len(o.queue))
		return true, nil
	default:
		return false, ErrQueueFull
	}
}

func (o *Orchestrator) release(analysisUUID string) {
	o.pendMu.Lock()
	delete(o.pending, analysisUUID)
	o.pendMu.Unlock()
}

// Depth is the number of submissions waiting for a worker.
func (o *Orchestrator) Depth() int {
	return len(o.queue)
}

// Shutdown stops the workers from taking more work and waits for the runs in
// flight, or for ctx. Submissions still in the queue stay QUEUED.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	close(o.stop)
	o.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- o.group.Wait() }()
	select {
	case err := <-done:
		logger.Info("Analysis workers stopped", zap.Int("left_queued", len(o.queue)))
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for analysis workers: %w", ctx.Err())
	}
}

// Resume enqueues submissions left QUEUED by a previous process and returns
// how many were scheduled. Whatever does not fit in the queue is left to the
// backlog sweep.
func (o *Orchestrator) Resume(ctx context.Context) (int, error) {
	n, err := o.schedule(ctx)
	if err != nil {
		return n, err
	}
	if n > 0 {
		logger.Info("Resumed queued analyses", zap.Int("count", n))
	}
	return n, nil
}

// schedule offers QUEUED submissions to the queue, oldest first, until it is
// full.
func (o *Orchestrator) schedule(ctx context.Context) (int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.running {
		return 0, ErrNotRunning
	}

	subs, err := o.store.ListByStatus(ctx, model.StatusQueued)
	if err != nil {
		return 0, err
	}
	scheduled := 0
	for _, sub := range subs {
		added, err := o.offer(sub.UUID)
		if errors.Is(err, ErrQueueFull) {
			logger.Debug("Analysis queue full, leaving the rest for the next sweep",
				zap.Int("scheduled", scheduled), zap.Int("queued", len(subs)))
			break
		}
		if added {
			scheduled++
		}
	}
	return scheduled, nil
}

func (o *Orchestrator) sweep(ctx context.Context) error {
	ticker := time.NewTicker(o.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-o.stop:
			return nil
		case <-ticker.C:
		case <-o.wake:
		}
		n, err := o.schedule(ctx)
		switch {
		case errors.Is(err, ErrNotRunning):
			return nil
		case err != nil:
			logger.Warn("Could not look up queued analyses", zap.Error(err))
		case n > 0:
			logger.Info("Scheduled queued analyses from backlog", zap.Int("count", n))
		}
	}
}

// nudge asks for a sweep without waiting for the ticker.
func (o *Orchestrator) nudge() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) work(ctx context.Context, worker int) error {
	for {
		// stop wins over a non-empty queue
		select {
		case <-o.stop:
			return nil
		default:
		}

		select {
		case <-o.stop:
			return nil
		case id := <-o.queue:
			o.metrics.SetQueueDepth(len(o.queue))
			err := o.Process(ctx, id)
			o.release(id)
			if err != nil {
				// left for the ticker so a failing store is not hammered
				logger.Error("Processing analysis failed",
					zap.Int("worker", worker), zap.String("analysis_uuid", id), zap.Error(err))
				continue
			}
			if len(o.queue) == 0 {
				o.nudge()
			}
		}
	}
}
