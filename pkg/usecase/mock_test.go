package usecase_test

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
)

// mockCatalog serves canonical facts from a map
type mockCatalog struct {
	entities map[model.EntityKey]*model.Entity
	calls    atomic.Int32
}

func (m *mockCatalog) GetCanonical(ctx context.Context, key model.EntityKey) (*model.Entity, error) {
	m.calls.Add(1)
	e, ok := m.entities[key]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "entity not found", goerr.V("key", key.String()))
	}
	return e.Clone(), nil
}

// mockTextGen is a mock implementation of interfaces.TextGenerator
type mockTextGen struct {
	mu         sync.Mutex
	completeFn func(ctx context.Context, prompt model.Prompt) (string, error)
	prompts    []model.Prompt
}

func (m *mockTextGen) Complete(ctx context.Context, prompt model.Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fn := m.completeFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	return rickSummary, nil
}

func (m *mockTextGen) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// mockQueue records enqueued jobs without processing them
type mockQueue struct {
	mu   sync.Mutex
	jobs []*model.ScoringJob
	err  error
}

func (m *mockQueue) Enqueue(ctx context.Context, job *model.ScoringJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockQueue) enqueued() []*model.ScoringJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.ScoringJob(nil), m.jobs...)
}

// mockJudge always replies with the same text
type mockJudge struct {
	reply string
}

func (m *mockJudge) Judge(ctx context.Context, text, rubric string) (string, error) {
	return m.reply, nil
}

// hashEmbedder is a deterministic bag-of-words embedder: each token bumps one hashed bucket
type hashEmbedder struct {
	dim   int
	calls atomic.Int32
}

func (h *hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h.calls.Add(1)
	vec := make([]float32, h.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		vec[f.Sum32()%uint32(h.dim)]++
	}
	return vec, nil
}

// gatedEmbedder blocks its first call until release is closed
type gatedEmbedder struct {
	inner   *hashEmbedder
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedEmbedder(dim int) *gatedEmbedder {
	return &gatedEmbedder{
		inner:   &hashEmbedder{dim: dim},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.inner.Embed(ctx, text)
}

// fixedEmbedder returns the same vector for every text
type fixedEmbedder struct {
	vec []float32
	err error
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]float32(nil), f.vec...), nil
}

// stepClock returns a clock that advances one second per call
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

var (
	rickKey    = model.EntityKey{Type: types.EntityTypeCharacter, ID: 1}
	anatomyKey = model.EntityKey{Type: types.EntityTypeLocation, ID: 5}
	citadelKey = model.EntityKey{Type: types.EntityTypeLocation, ID: 7}
)

const rickSummary = "Rick Sanchez is a Human scientist who is very much Alive, much to the galaxy's dismay. " +
	"Originally from Earth (C-137), he was last seen arguing with himself. " +
	"He has burped through 51 episodes and shows no sign of stopping."

func testEntities() map[model.EntityKey]*model.Entity {
	return map[model.EntityKey]*model.Entity{
		rickKey: {
			Key:  rickKey,
			Name: "Rick Sanchez",
			Attributes: []model.Attribute{
				{Key: "Status", Value: "Alive", Alternatives: []string{"Alive", "Dead"}},
				{Key: "Species", Value: "Human"},
			},
			Relationships: []model.Relationship{
				{Label: "Origin", Values: []string{"Earth (C-137)"}, Cues: []string{"originally from"}},
			},
			Counts: []model.Count{{Label: "Episodes", Value: 51}},
		},
		anatomyKey: {
			Key:  anatomyKey,
			Name: "Anatomy Park",
			Attributes: []model.Attribute{
				{Key: "Type", Value: "Microverse"},
				{Key: "Dimension", Value: "Dimension C-137"},
			},
			Counts: []model.Count{{Label: "Residents", Value: 4}},
		},
		citadelKey: {
			Key:  citadelKey,
			Name: "Citadel of Ricks",
			Attributes: []model.Attribute{
				{Key: "Type", Value: "Space station"},
				{Key: "Dimension", Value: "unknown"},
			},
			Counts: []model.Count{{Label: "Residents", Value: 101}},
		},
	}
}
