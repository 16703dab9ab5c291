package interfaces

import (
	"context"

	"github.com/secmon-lab/citadel/pkg/domain/model"
)

// NoteRepository defines the interface for Note data persistence
type NoteRepository interface {
	Create(ctx context.Context, note *model.Note) (*model.Note, error)
	Delete(ctx context.Context, key model.EntityKey, id model.NoteID) error

	// ListRecent returns up to limit notes of the entity, newest first.
	// A non-positive limit returns every note.
	ListRecent(ctx context.Context, key model.EntityKey, limit int) ([]*model.Note, error)
}
