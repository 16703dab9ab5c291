package firestore

import (
	"context"
	"strconv"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/domain/model"
)

type Firestore struct {
	client      *firestore.Client
	generation  *generationRepository
	searchIndex *searchIndexRepository
	note        *noteRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prefixes every top-level collection name. Used to isolate test runs.
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.generation.collectionPrefix = prefix
		f.searchIndex.collectionPrefix = prefix
		f.note.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:      client,
		generation:  newGenerationRepository(client),
		searchIndex: newSearchIndexRepository(client),
		note:        newNoteRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Generation() interfaces.GenerationRepository {
	return f.generation
}

func (f *Firestore) SearchIndex() interfaces.SearchIndexRepository {
	return f.searchIndex
}

func (f *Firestore) Note() interfaces.NoteRepository {
	return f.note
}

func (f *Firestore) Close() error {
	if err := f.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}

// entityDocID returns the document ID used for per-entity documents
func entityDocID(key model.EntityKey) string {
	return key.Type.String() + "_" + strconv.FormatInt(key.ID, 10)
}
