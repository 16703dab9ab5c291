package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
	"github.com/secmon-lab/citadel/pkg/repository/memory"
	"github.com/secmon-lab/citadel/pkg/service/worker"
)

// mockEvaluator is a mock implementation of worker.Evaluator for testing
type mockEvaluator struct {
	mu         sync.Mutex
	evaluateFn func(ctx context.Context, text string, facts *model.Entity) (model.Scores, error)
	calls      []string
}

func (m *mockEvaluator) Evaluate(ctx context.Context, text string, facts *model.Entity) (model.Scores, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	fn := m.evaluateFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, facts)
	}
	return fixedScores(), nil
}

func (m *mockEvaluator) callOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func fixedScores() model.Scores {
	return model.Scores{
		Factual:      model.Scored(0.95),
		Completeness: model.Scored(0.87),
		Creativity:   model.Scored(0.92),
		Relevance:    model.Scored(0.89),
	}
}

func createGeneration(t *testing.T, repo *memory.Memory, key model.EntityKey, text string) *model.ScoringJob {
	t.Helper()
	gen, err := repo.Generation().Create(context.Background(), model.NewGeneration(key, text, time.Now().UTC()))
	gt.NoError(t, err).Required()
	return model.NewScoringJob(gen, &model.Entity{Key: key, Name: "Rick Sanchez"}, time.Now().UTC())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func statusOf(t *testing.T, repo *memory.Memory, key model.EntityKey) types.GenerationStatus {
	t.Helper()
	gen, err := repo.Generation().Get(context.Background(), key)
	gt.NoError(t, err).Required()
	return gen.Status
}

func TestEvaluationWorker_ProcessesJob(t *testing.T) {
	repo := memory.New()
	w := worker.NewEvaluationWorker(repo, &mockEvaluator{})
	gt.NoError(t, w.Start(context.Background())).Required()
	defer w.Stop()

	key := model.EntityKey{Type: types.EntityTypeCharacter, ID: 1}
	gt.NoError(t, w.Enqueue(context.Background(), createGeneration(t, repo, key, "Rick text"))).Required()

	waitFor(t, func() bool { return statusOf(t, repo, key) == types.GenerationStatusGenerated })

	gen, err := repo.Generation().Get(context.Background(), key)
	gt.NoError(t, err).Required()
	gt.B(t, gen.Scores.IsComplete()).True()
	v, _ := gen.Scores.Factual.Value()
	gt.Value(t, v).Equal(0.95)
}

func TestEvaluationWorker_FailedJobIsDroppedAndNextJobRuns(t *testing.T) {
	repo := memory.New()
	eval := &mockEvaluator{
		evaluateFn: func(ctx context.Context, text string, facts *model.Entity) (model.Scores, error) {
			if text == "broken" {
				return model.Scores{}, errors.New("judge exploded")
			}
			return fixedScores(), nil
		},
	}
	w := worker.NewEvaluationWorker(repo, eval)
	gt.NoError(t, w.Start(context.Background())).Required()
	defer w.Stop()

	failing := model.EntityKey{Type: types.EntityTypeCharacter, ID: 1}
	healthy := model.EntityKey{Type: types.EntityTypeCharacter, ID: 2}
	gt.NoError(t, w.Enqueue(context.Background(), createGeneration(t, repo, failing, "broken"))).Required()
	gt.NoError(t, w.Enqueue(context.Background(), createGeneration(t, repo, healthy, "fine"))).Required()

	waitFor(t, func() bool { return statusOf(t, repo, healthy) == types.GenerationStatusGenerated })

	gt.Value(t, statusOf(t, repo, failing)).Equal(types.GenerationStatusInitiated)
	gen, err := repo.Generation().Get(context.Background(), failing)
	gt.NoError(t, err).Required()
	gt.B(t, gen.Scores.IsPending()).True()
	gt.Value(t, eval.callOrder()).Equal([]string{"broken", "fine"})
}

func TestEvaluationWorker_RecoversFromPanic(t *testing.T) {
	repo := memory.New()
	eval := &mockEvaluator{
		evaluateFn: func(ctx context.Context, text string, facts *model.Entity) (model.Scores, error) {
			if text == "panic" {
				panic("portal gun misfire")
			}
			return fixedScores(), nil
		},
	}
	w := worker.NewEvaluationWorker(repo, eval)
	gt.NoError(t, w.Start(context.Background())).Required()
	defer w.Stop()

	bad := model.EntityKey{Type: types.EntityTypeLocation, ID: 1}
	good := model.EntityKey{Type: types.EntityTypeLocation, ID: 2}
	gt.NoError(t, w.Enqueue(context.Background(), createGeneration(t, repo, bad, "panic"))).Required()
	gt.NoError(t, w.Enqueue(context.Background(), createGeneration(t, repo, good, "ok"))).Required()

	waitFor(t, func() bool { return statusOf(t, repo, good) == types.GenerationStatusGenerated })
	gt.Value(t, statusOf(t, repo, bad)).Equal(types.GenerationStatusInitiated)
}

func TestEvaluationWorker_ProcessesFIFO(t *testing.T) {
	repo := memory.New()
	eval := &mockEvaluator{}
	w := worker.NewEvaluationWorker(repo, eval)

	var keys []model.EntityKey
	for i := int64(1); i <= 5; i++ {
		key := model.EntityKey{Type: types.EntityTypeEpisode, ID: i}
		keys = append(keys, key)
		gt.NoError(t, w.Enqueue(context.Background(), createGeneration(t, repo, key, key.String()))).Required()
	}

	gt.NoError(t, w.Start(context.Background())).Required()
	defer w.Stop()

	waitFor(t, func() bool { return statusOf(t, repo, keys[4]) == types.GenerationStatusGenerated })
	gt.Value(t, eval.callOrder()).Equal([]string{
		"episode:1", "episode:2", "episode:3", "episode:4", "episode:5",
	})
}

func TestEvaluationWorker_SupersededJobDoesNotTouchNewGeneration(t *testing.T) {
	repo := memory.New()
	w := worker.NewEvaluationWorker(repo, &mockEvaluator{})

	key := model.EntityKey{Type: types.EntityTypeCharacter, ID: 1}
	stale := createGeneration(t, repo, key, "old")
	createGeneration(t, repo, key, "new")

	gt.NoError(t, w.Enqueue(context.Background(), stale)).Required()
	gt.NoError(t, w.Start(context.Background())).Required()
	waitFor(t, func() bool { return w.Pending() == 0 })
	w.Stop()

	gen, err := repo.Generation().Get(context.Background(), key)
	gt.NoError(t, err).Required()
	gt.Value(t, gen.OutputText).Equal("new")
	gt.Value(t, gen.Status).Equal(types.GenerationStatusInitiated)
}

func TestEvaluationWorker_FinalizeHook(t *testing.T) {
	repo := memory.New()
	finalized := make(chan *model.Generation, 1)
	w := worker.NewEvaluationWorker(repo, &mockEvaluator{},
		worker.WithFinalizeHook(func(ctx context.Context, gen *model.Generation) error {
			finalized <- gen
			return nil
		}),
	)
	gt.NoError(t, w.Start(context.Background())).Required()
	defer w.Stop()

	key := model.EntityKey{Type: types.EntityTypeCharacter, ID: 3}
	gt.NoError(t, w.Enqueue(context.Background(), createGeneration(t, repo, key, "text"))).Required()

	select {
	case gen := <-finalized:
		gt.Value(t, gen.Key()).Equal(key)
		gt.Value(t, gen.Status).Equal(types.GenerationStatusGenerated)
	case <-time.After(2 * time.Second):
		t.Fatal("finalize hook not called")
	}
}

func TestEvaluationWorker_Lifecycle(t *testing.T) {
	t.Run("enqueue after stop returns ErrQueueClosed", func(t *testing.T) {
		repo := memory.New()
		w := worker.NewEvaluationWorker(repo, &mockEvaluator{})
		gt.NoError(t, w.Start(context.Background())).Required()
		w.Stop()

		key := model.EntityKey{Type: types.EntityTypeCharacter, ID: 1}
		err := w.Enqueue(context.Background(), createGeneration(t, repo, key, "late"))
		gt.B(t, errors.Is(err, worker.ErrQueueClosed)).True()
	})

	t.Run("stop without start does not block", func(t *testing.T) {
		w := worker.NewEvaluationWorker(memory.New(), &mockEvaluator{})
		w.Stop()
		w.Stop()
		gt.B(t, errors.Is(w.Start(context.Background()), worker.ErrQueueClosed)).True()
	})

	t.Run("start twice fails", func(t *testing.T) {
		w := worker.NewEvaluationWorker(memory.New(), &mockEvaluator{})
		gt.NoError(t, w.Start(context.Background())).Required()
		defer w.Stop()
		gt.B(t, errors.Is(w.Start(context.Background()), worker.ErrAlreadyStarted)).True()
	})

	t.Run("full queue blocks until context is done", func(t *testing.T) {
		repo := memory.New()
		w := worker.NewEvaluationWorker(repo, &mockEvaluator{}, worker.WithCapacity(1))
		defer w.Stop()

		key := model.EntityKey{Type: types.EntityTypeCharacter, ID: 1}
		gt.NoError(t, w.Enqueue(context.Background(), createGeneration(t, repo, key, "first"))).Required()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := w.Enqueue(ctx, createGeneration(t, repo, key, "second"))
		gt.B(t, errors.Is(err, context.DeadlineExceeded)).True()
		gt.Value(t, w.Pending()).Equal(1)
	})

	t.Run("stop releases a blocked producer", func(t *testing.T) {
		repo := memory.New()
		w := worker.NewEvaluationWorker(repo, &mockEvaluator{}, worker.WithCapacity(1))

		key := model.EntityKey{Type: types.EntityTypeCharacter, ID: 1}
		gt.NoError(t, w.Enqueue(context.Background(), createGeneration(t, repo, key, "first"))).Required()

		errCh := make(chan error, 1)
		job := createGeneration(t, repo, key, "second")
		go func() {
			errCh <- w.Enqueue(context.Background(), job)
		}()

		time.Sleep(20 * time.Millisecond)
		w.Stop()

		select {
		case err := <-errCh:
			gt.B(t, errors.Is(err, worker.ErrQueueClosed)).True()
		case <-time.After(2 * time.Second):
			t.Fatal("producer still blocked after stop")
		}
	})
}
