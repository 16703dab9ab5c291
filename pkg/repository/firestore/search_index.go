package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// searchIndexDoc is the Firestore document representation of model.SearchIndexEntry.
// Embedding is stored as firestore.Vector32 so that a vector index can be added later.
type searchIndexDoc struct {
	EntityType types.EntityType   `firestore:"EntityType"`
	EntityID   int64              `firestore:"EntityID"`
	TextBlob   string             `firestore:"TextBlob"`
	Embedding  firestore.Vector32 `firestore:"Embedding,omitempty"`
	UpdatedAt  time.Time          `firestore:"UpdatedAt"`
}

func toSearchIndexDoc(e *model.SearchIndexEntry) *searchIndexDoc {
	doc := &searchIndexDoc{
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		TextBlob:   e.TextBlob,
		UpdatedAt:  e.UpdatedAt,
	}
	if len(e.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(e.Embedding)
	}
	return doc
}

func (d *searchIndexDoc) toModel() *model.SearchIndexEntry {
	e := &model.SearchIndexEntry{
		EntityType: d.EntityType,
		EntityID:   d.EntityID,
		TextBlob:   d.TextBlob,
		UpdatedAt:  d.UpdatedAt,
	}
	if len(d.Embedding) > 0 {
		e.Embedding = []float32(d.Embedding)
	}
	return e
}

type searchIndexRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newSearchIndexRepository(client *firestore.Client) *searchIndexRepository {
	return &searchIndexRepository{client: client}
}

func (r *searchIndexRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "search_index")
}

func (r *searchIndexRepository) Upsert(ctx context.Context, entry *model.SearchIndexEntry) error {
	if err := entry.Key().Validate(); err != nil {
		return goerr.Wrap(err, "invalid search index key", goerr.V("key", entry.Key()))
	}

	stored := entry.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}

	docRef := r.collection().Doc(entityDocID(stored.Key()))
	if _, err := docRef.Set(ctx, toSearchIndexDoc(stored)); err != nil {
		return goerr.Wrap(err, "failed to upsert search index entry", goerr.V("key", stored.Key()))
	}
	return nil
}

func (r *searchIndexRepository) Get(ctx context.Context, key model.EntityKey) (*model.SearchIndexEntry, error) {
	doc, err := r.collection().Doc(entityDocID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "search index entry not found", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to get search index entry", goerr.V("key", key))
	}

	var d searchIndexDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal search index entry", goerr.V("key", key))
	}
	return d.toModel(), nil
}

func (r *searchIndexRepository) GetAll(ctx context.Context) ([]*model.SearchIndexEntry, error) {
	iter := r.collection().Documents(ctx)
	defer iter.Stop()

	entries := make([]*model.SearchIndexEntry, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate search index")
		}

		var d searchIndexDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal search index entry", goerr.V("docID", doc.Ref.ID))
		}
		entries = append(entries, d.toModel())
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key().Less(entries[j].Key())
	})
	return entries, nil
}
