package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
)

type searchIndexRepository struct {
	mu      sync.RWMutex
	entries map[model.EntityKey]*model.SearchIndexEntry
}

func newSearchIndexRepository() *searchIndexRepository {
	return &searchIndexRepository{
		entries: make(map[model.EntityKey]*model.SearchIndexEntry),
	}
}

func (r *searchIndexRepository) Upsert(ctx context.Context, entry *model.SearchIndexEntry) error {
	if err := entry.Key().Validate(); err != nil {
		return goerr.Wrap(err, "invalid search index key", goerr.V("key", entry.Key()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := entry.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	r.entries[stored.Key()] = stored
	return nil
}

func (r *searchIndexRepository) Get(ctx context.Context, key model.EntityKey) (*model.SearchIndexEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[key]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "search index entry not found", goerr.V("key", key))
	}
	return entry.Clone(), nil
}

func (r *searchIndexRepository) GetAll(ctx context.Context) ([]*model.SearchIndexEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.SearchIndexEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, entry.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key().Less(result[j].Key())
	})
	return result, nil
}
