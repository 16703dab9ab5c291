package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
)

type noteRepository struct {
	mu    sync.RWMutex
	notes map[model.EntityKey]map[model.NoteID]*model.Note
}

func newNoteRepository() *noteRepository {
	return &noteRepository{
		notes: make(map[model.EntityKey]map[model.NoteID]*model.Note),
	}
}

func copyNote(n *model.Note) *model.Note {
	c := *n
	return &c
}

func (r *noteRepository) Create(ctx context.Context, note *model.Note) (*model.Note, error) {
	if err := note.Key().Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid note key", goerr.V("key", note.Key()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyNote(note)
	if created.ID == "" {
		created.ID = model.NewNoteID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	key := created.Key()
	if r.notes[key] == nil {
		r.notes[key] = make(map[model.NoteID]*model.Note)
	}
	r.notes[key][created.ID] = created
	return copyNote(created), nil
}

func (r *noteRepository) Delete(ctx context.Context, key model.EntityKey, id model.NoteID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notes[key][id]; !exists {
		return goerr.Wrap(model.ErrNotFound, "note not found", goerr.V("key", key), goerr.V("id", id))
	}
	delete(r.notes[key], id)
	return nil
}

func (r *noteRepository) ListRecent(ctx context.Context, key model.EntityKey, limit int) ([]*model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Note, 0, len(r.notes[key]))
	for _, n := range r.notes[key] {
		result = append(result, copyNote(n))
	}

	model.SortNotesNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
