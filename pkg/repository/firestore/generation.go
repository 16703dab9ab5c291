package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// scoreDoc stores a score. A nil Value means pending.
type scoreDoc struct {
	Value    *float64 `firestore:"Value"`
	Fallback bool     `firestore:"Fallback"`
}

func toScoreDoc(s model.Score) scoreDoc {
	return scoreDoc{Value: s.Ptr(), Fallback: s.IsFallback()}
}

func (d scoreDoc) toModel() model.Score {
	return model.ScoreFromPtr(d.Value, d.Fallback)
}

type generationDoc struct {
	ID           model.GenerationID     `firestore:"ID"`
	EntityType   types.EntityType       `firestore:"EntityType"`
	EntityID     int64                  `firestore:"EntityID"`
	OutputText   string                 `firestore:"OutputText"`
	Factual      scoreDoc               `firestore:"Factual"`
	Completeness scoreDoc               `firestore:"Completeness"`
	Creativity   scoreDoc               `firestore:"Creativity"`
	Relevance    scoreDoc               `firestore:"Relevance"`
	Status       types.GenerationStatus `firestore:"Status"`
	CreatedAt    time.Time              `firestore:"CreatedAt"`
	UpdatedAt    time.Time              `firestore:"UpdatedAt"`
}

func toGenerationDoc(g *model.Generation) *generationDoc {
	return &generationDoc{
		ID:           g.ID,
		EntityType:   g.EntityType,
		EntityID:     g.EntityID,
		OutputText:   g.OutputText,
		Factual:      toScoreDoc(g.Scores.Factual),
		Completeness: toScoreDoc(g.Scores.Completeness),
		Creativity:   toScoreDoc(g.Scores.Creativity),
		Relevance:    toScoreDoc(g.Scores.Relevance),
		Status:       g.Status,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

func (d *generationDoc) toModel() *model.Generation {
	return &model.Generation{
		ID:         d.ID,
		EntityType: d.EntityType,
		EntityID:   d.EntityID,
		OutputText: d.OutputText,
		Scores: model.Scores{
			Factual:      d.Factual.toModel(),
			Completeness: d.Completeness.toModel(),
			Creativity:   d.Creativity.toModel(),
			Relevance:    d.Relevance.toModel(),
		},
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type generationRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newGenerationRepository(client *firestore.Client) *generationRepository {
	return &generationRepository{client: client}
}

func (r *generationRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "generations")
}

func (r *generationRepository) Create(ctx context.Context, gen *model.Generation) (*model.Generation, error) {
	if err := gen.Key().Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid generation key", goerr.V("key", gen.Key()))
	}

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

	// Set replaces the whole document, which supersedes the previous live generation.
	docRef := r.collection().Doc(entityDocID(created.Key()))
	if _, err := docRef.Set(ctx, toGenerationDoc(created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create generation", goerr.V("key", created.Key()))
	}

	return created, nil
}

func (r *generationRepository) Get(ctx context.Context, key model.EntityKey) (*model.Generation, error) {
	doc, err := r.collection().Doc(entityDocID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "generation not found", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to get generation", goerr.V("key", key))
	}

	var d generationDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal generation", goerr.V("key", key))
	}
	return d.toModel(), nil
}

func (r *generationRepository) Update(ctx context.Context, key model.EntityKey, id model.GenerationID, scores model.Scores) (*model.Generation, error) {
	docRef := r.collection().Doc(entityDocID(key))

	var updated *model.Generation
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(model.ErrNotFound, "generation not found", goerr.V("key", key), goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to get generation", goerr.V("key", key))
		}

		var d generationDoc
		if err := doc.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to unmarshal generation", goerr.V("key", key))
		}
		if d.ID != id {
			return goerr.Wrap(model.ErrGenerationSuperseded, "generation is no longer live",
				goerr.V("key", key), goerr.V("id", id), goerr.V("live_id", d.ID))
		}

		gen := d.toModel()
		if err := gen.Finalize(scores, time.Now().UTC()); err != nil {
			return goerr.Wrap(err, "failed to finalize generation", goerr.V("key", key), goerr.V("id", id))
		}

		if err := tx.Set(docRef, toGenerationDoc(gen)); err != nil {
			return goerr.Wrap(err, "failed to write generation", goerr.V("key", key))
		}
		updated = gen
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
