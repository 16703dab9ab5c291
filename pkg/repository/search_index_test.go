package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
)

func runSearchIndexRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Upsert then Get returns the entry", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		entry := &model.SearchIndexEntry{
			EntityType: types.EntityTypeLocation,
			EntityID:   7,
			TextBlob:   "Anatomy Park\nType: Microverse",
			Embedding:  []float32{0.1, 0.2, 0.3},
			UpdatedAt:  time.Now().UTC().Truncate(time.Millisecond),
		}
		gt.NoError(t, repo.SearchIndex().Upsert(ctx, entry)).Required()

		got, err := repo.SearchIndex().Get(ctx, entry.Key())
		gt.NoError(t, err).Required()
		gt.Value(t, got.TextBlob).Equal(entry.TextBlob)
		gt.Value(t, got.Embedding).Equal([]float32{0.1, 0.2, 0.3})
		gt.Value(t, got.Name()).Equal("Anatomy Park")
	})

	t.Run("Upsert fully replaces an existing entry", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		key := model.EntityKey{Type: types.EntityTypeCharacter, ID: 2}
		gt.NoError(t, repo.SearchIndex().Upsert(ctx, &model.SearchIndexEntry{
			EntityType: key.Type, EntityID: key.ID,
			TextBlob:  "Morty Smith\nNotes:\n- old note",
			Embedding: []float32{1, 0},
		})).Required()
		gt.NoError(t, repo.SearchIndex().Upsert(ctx, &model.SearchIndexEntry{
			EntityType: key.Type, EntityID: key.ID,
			TextBlob:  "Morty Smith",
			Embedding: []float32{0, 1},
		})).Required()

		got, err := repo.SearchIndex().Get(ctx, key)
		gt.NoError(t, err).Required()
		gt.Value(t, got.TextBlob).Equal("Morty Smith")
		gt.Value(t, got.Embedding).Equal([]float32{0, 1})

		all, err := repo.SearchIndex().GetAll(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(1)
	})

	t.Run("GetAll returns every entry ordered by key", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		keys := []model.EntityKey{
			{Type: types.EntityTypeLocation, ID: 3},
			{Type: types.EntityTypeCharacter, ID: 10},
			{Type: types.EntityTypeEpisode, ID: 1},
			{Type: types.EntityTypeCharacter, ID: 2},
		}
		for _, k := range keys {
			gt.NoError(t, repo.SearchIndex().Upsert(ctx, &model.SearchIndexEntry{
				EntityType: k.Type, EntityID: k.ID, TextBlob: k.String(), Embedding: []float32{1},
			})).Required()
		}

		all, err := repo.SearchIndex().GetAll(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(4)
		gt.Value(t, all[0].Key()).Equal(model.EntityKey{Type: types.EntityTypeCharacter, ID: 2})
		gt.Value(t, all[1].Key()).Equal(model.EntityKey{Type: types.EntityTypeCharacter, ID: 10})
		gt.Value(t, all[2].Key()).Equal(model.EntityKey{Type: types.EntityTypeEpisode, ID: 1})
		gt.Value(t, all[3].Key()).Equal(model.EntityKey{Type: types.EntityTypeLocation, ID: 3})
	})

	t.Run("Get returns ErrNotFound for unknown entity", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.SearchIndex().Get(context.Background(), model.EntityKey{Type: types.EntityTypeEpisode, ID: 42})
		gt.B(t, errors.Is(err, model.ErrNotFound)).True()
	})

	t.Run("GetAll on an empty index returns no entries", func(t *testing.T) {
		repo := newRepo(t)
		all, err := repo.SearchIndex().GetAll(context.Background())
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(0)
	})
}

func TestSearchIndexRepository(t *testing.T) {
	runForEachBackend(t, runSearchIndexRepositoryTest)
}
