package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type noteDoc struct {
	ID         model.NoteID     `firestore:"ID"`
	EntityType types.EntityType `firestore:"EntityType"`
	EntityID   int64            `firestore:"EntityID"`
	Text       string           `firestore:"Text"`
	CreatedAt  time.Time        `firestore:"CreatedAt"`
}

func (d *noteDoc) toModel() *model.Note {
	return &model.Note{
		ID:         d.ID,
		EntityType: d.EntityType,
		EntityID:   d.EntityID,
		Text:       d.Text,
		CreatedAt:  d.CreatedAt,
	}
}

type noteRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newNoteRepository(client *firestore.Client) *noteRepository {
	return &noteRepository{client: client}
}

func (r *noteRepository) notesCollection(key model.EntityKey) *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "entities").Doc(entityDocID(key)).Collection("notes")
}

func (r *noteRepository) Create(ctx context.Context, note *model.Note) (*model.Note, error) {
	if err := note.Key().Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid note key", goerr.V("key", note.Key()))
	}

	created := *note
	if created.ID == "" {
		created.ID = model.NewNoteID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	doc := &noteDoc{
		ID:         created.ID,
		EntityType: created.EntityType,
		EntityID:   created.EntityID,
		Text:       created.Text,
		CreatedAt:  created.CreatedAt,
	}
	if _, err := r.notesCollection(created.Key()).Doc(created.ID.String()).Set(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to create note", goerr.V("key", created.Key()))
	}

	return &created, nil
}

func (r *noteRepository) Delete(ctx context.Context, key model.EntityKey, id model.NoteID) error {
	docRef := r.notesCollection(key).Doc(id.String())

	// Delete on a missing document succeeds in Firestore, so check existence first.
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(model.ErrNotFound, "note not found", goerr.V("key", key), goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get note", goerr.V("key", key), goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete note", goerr.V("key", key), goerr.V("id", id))
	}
	return nil
}

func (r *noteRepository) ListRecent(ctx context.Context, key model.EntityKey, limit int) ([]*model.Note, error) {
	query := r.notesCollection(key).
		OrderBy("CreatedAt", firestore.Desc).
		OrderBy("ID", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	notes := make([]*model.Note, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate notes", goerr.V("key", key))
		}

		var d noteDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal note", goerr.V("docID", doc.Ref.ID))
		}
		notes = append(notes, d.toModel())
	}

	model.SortNotesNewestFirst(notes)
	return notes, nil
}
