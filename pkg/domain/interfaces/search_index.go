package interfaces

import (
	"context"

	"github.com/secmon-lab/citadel/pkg/domain/model"
)

// SearchIndexRepository stores one search index entry per entity
type SearchIndexRepository interface {
	// Upsert fully replaces the entry of the entity
	Upsert(ctx context.Context, entry *model.SearchIndexEntry) error

	// Get retrieves the entry of an entity
	Get(ctx context.Context, key model.EntityKey) (*model.SearchIndexEntry, error)

	// GetAll returns a point-in-time snapshot of every entry
	GetAll(ctx context.Context) ([]*model.SearchIndexEntry, error)
}
