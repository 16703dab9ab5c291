package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
)

type generationRepository struct {
	mu          sync.RWMutex
	generations map[model.EntityKey]*model.Generation
}

func newGenerationRepository() *generationRepository {
	return &generationRepository{
		generations: make(map[model.EntityKey]*model.Generation),
	}
}

func (r *generationRepository) Create(ctx context.Context, gen *model.Generation) (*model.Generation, error) {
	if err := gen.Key().Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid generation key", goerr.V("key", gen.Key()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	created := gen.Clone()
	if created.ID == "" {
		created.ID = model.NewGenerationID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	if created.UpdatedAt.IsZero() {
		created.UpdatedAt = created.CreatedAt
	}

	r.generations[created.Key()] = created
	return created.Clone(), nil
}

func (r *generationRepository) Get(ctx context.Context, key model.EntityKey) (*model.Generation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	gen, exists := r.generations[key]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "generation not found", goerr.V("key", key))
	}
	return gen.Clone(), nil
}

func (r *generationRepository) Update(ctx context.Context, key model.EntityKey, id model.GenerationID, scores model.Scores) (*model.Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.generations[key]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "generation not found", goerr.V("key", key), goerr.V("id", id))
	}
	if current.ID != id {
		return nil, goerr.Wrap(model.ErrGenerationSuperseded, "generation is no longer live",
			goerr.V("key", key), goerr.V("id", id), goerr.V("live_id", current.ID))
	}

	updated := current.Clone()
	if err := updated.Finalize(scores, time.Now().UTC()); err != nil {
		return nil, goerr.Wrap(err, "failed to finalize generation", goerr.V("key", key), goerr.V("id", id))
	}

	r.generations[key] = updated
	return updated.Clone(), nil
}
