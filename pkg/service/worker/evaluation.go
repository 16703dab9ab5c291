package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/utils/async"
	"github.com/secmon-lab/citadel/pkg/utils/logging"
)

// DefaultQueueCapacity is the default number of jobs buffered before Enqueue blocks
const DefaultQueueCapacity = 1024

var (
	// ErrQueueClosed is returned by Enqueue after Stop
	ErrQueueClosed = goerr.New("evaluation queue is closed")

	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = goerr.New("evaluation worker already started")
)

// Evaluator scores a generated text against the facts it was generated from
type Evaluator interface {
	Evaluate(ctx context.Context, text string, facts *model.Entity) (model.Scores, error)
}

// FinalizeHook runs after a generation's scores are committed
type FinalizeHook func(ctx context.Context, gen *model.Generation) error

// EvaluationWorker owns the in-process scoring queue and its single consumer.
//
// Architecture assumptions:
// - Single server instance; jobs live only in memory and are dropped on Stop or restart
// - A job that fails is logged and discarded, its generation stays INITIATED
type EvaluationWorker struct {
	repo        interfaces.Repository
	evaluator   Evaluator
	onFinalized FinalizeHook
	jobs        chan *model.ScoringJob

	mu       sync.Mutex
	started  bool
	closed   bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Option configures an EvaluationWorker
type Option func(*EvaluationWorker)

// WithCapacity sets the queue buffer size
func WithCapacity(n int) Option {
	return func(w *EvaluationWorker) {
		if n > 0 {
			w.jobs = make(chan *model.ScoringJob, n)
		}
	}
}

// WithFinalizeHook registers a hook dispatched asynchronously after each committed update
func WithFinalizeHook(hook FinalizeHook) Option {
	return func(w *EvaluationWorker) {
		w.onFinalized = hook
	}
}

// NewEvaluationWorker creates a worker that persists scores into repo
func NewEvaluationWorker(repo interfaces.Repository, evaluator Evaluator, opts ...Option) *EvaluationWorker {
	w := &EvaluationWorker{
		repo:      repo,
		evaluator: evaluator,
		jobs:      make(chan *model.ScoringJob, DefaultQueueCapacity),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the consumer goroutine
func (w *EvaluationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrQueueClosed
	}
	if w.started {
		return ErrAlreadyStarted
	}
	w.started = true

	logging.From(ctx).Info("Evaluation worker starting", "capacity", cap(w.jobs))
	go w.run(ctx)
	return nil
}

// Stop closes the queue, waits for the in-flight job and drops the rest
func (w *EvaluationWorker) Stop() {
	w.stopOnce.Do(func() {
		logging.Default().Info("Evaluation worker stopping")
		// Closing stopCh first releases producers blocked on a full queue.
		close(w.stopCh)

		w.mu.Lock()
		w.closed = true
		started := w.started
		w.mu.Unlock()

		if started {
			<-w.doneCh
		}

		if dropped := len(w.jobs); dropped > 0 {
			logging.Default().Warn("Evaluation worker dropped pending jobs", "count", dropped)
		}
		logging.Default().Info("Evaluation worker stopped")
	})
}

// Enqueue appends a job. It blocks while the queue is full and returns
// ErrQueueClosed once the worker has been stopped.
func (w *EvaluationWorker) Enqueue(ctx context.Context, job *model.ScoringJob) error {
	select {
	case <-w.stopCh:
		return goerr.Wrap(ErrQueueClosed, "failed to enqueue scoring job", goerr.V("generation_id", job.GenerationID))
	default:
	}

	select {
	case w.jobs <- job:
		return nil
	case <-w.stopCh:
		return goerr.Wrap(ErrQueueClosed, "failed to enqueue scoring job", goerr.V("generation_id", job.GenerationID))
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "enqueue cancelled", goerr.V("generation_id", job.GenerationID))
	}
}

// Pending returns the number of buffered jobs
func (w *EvaluationWorker) Pending() int {
	return len(w.jobs)
}

func (w *EvaluationWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		// Stop takes priority over buffered jobs.
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case job := <-w.jobs:
			w.handle(ctx, job)

		case <-w.stopCh:
			logging.Default().Info("Evaluation worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("Evaluation worker context cancelled")
			return
		}
	}
}

// handle processes one job. Errors and panics are logged and the job is dropped.
func (w *EvaluationWorker) handle(ctx context.Context, job *model.ScoringJob) {
	logger := logging.From(ctx).With(
		"generation_id", job.GenerationID,
		"entity", job.Key.String(),
		"kind", job.Kind,
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in scoring job, job dropped", "panic", r)
		}
	}()

	started := time.Now()
	gen, err := w.process(ctx, job)
	if err != nil {
		if errors.Is(err, model.ErrGenerationSuperseded) {
			logger.Info("generation superseded before scoring finished, job dropped")
			return
		}
		var ge *goerr.Error
		if errors.As(err, &ge) {
			logger.Error("scoring job failed, job dropped",
				"error", err.Error(),
				"values", ge.Values(),
			)
		} else {
			logger.Error("scoring job failed, job dropped", "error", err.Error())
		}
		return
	}

	logger.Info("generation scored",
		"duration", time.Since(started).String(),
		"factual", gen.Scores.Factual.String(),
		"completeness", gen.Scores.Completeness.String(),
		"creativity", gen.Scores.Creativity.String(),
		"relevance", gen.Scores.Relevance.String(),
	)

	if w.onFinalized != nil {
		hookCtx := logging.With(ctx, logger)
		async.Dispatch(hookCtx, "finalize_hook", func(ctx context.Context) error {
			return w.onFinalized(ctx, gen)
		})
	}
}

func (w *EvaluationWorker) process(ctx context.Context, job *model.ScoringJob) (*model.Generation, error) {
	scores, err := w.evaluator.Evaluate(ctx, job.Text, job.Facts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate generation")
	}

	gen, err := w.repo.Generation().Update(ctx, job.Key, job.GenerationID, scores)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to persist scores")
	}
	return gen, nil
}
