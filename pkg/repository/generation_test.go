package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
)

func finalScores() model.Scores {
	return model.Scores{
		Factual:      model.Scored(0.9),
		Completeness: model.Scored(0.75),
		Creativity:   model.FallbackScore(0.5),
		Relevance:    model.Scored(0.6),
	}
}

func runGenerationRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()
	rick := model.EntityKey{Type: types.EntityTypeCharacter, ID: 1}

	t.Run("Create stores an INITIATED generation with pending scores", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		now := time.Now().UTC().Truncate(time.Millisecond)
		created, err := repo.Generation().Create(ctx, model.NewGeneration(rick, "Rick is a genius.", now))
		gt.NoError(t, err).Required()
		gt.String(t, created.ID.String()).NotEqual("")

		got, err := repo.Generation().Get(ctx, rick)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ID).Equal(created.ID)
		gt.Value(t, got.OutputText).Equal("Rick is a genius.")
		gt.Value(t, got.Status).Equal(types.GenerationStatusInitiated)
		gt.B(t, got.Scores.IsPending()).True()
		gt.B(t, got.CreatedAt.Equal(now)).True()
	})

	t.Run("Get returns ErrNotFound for unknown entity", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Generation().Get(context.Background(), model.EntityKey{Type: types.EntityTypeEpisode, ID: 999})
		gt.B(t, errors.Is(err, model.ErrNotFound)).True()
	})

	t.Run("Update writes all scores and flips status atomically", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Generation().Create(ctx, model.NewGeneration(rick, "text", time.Now().UTC()))
		gt.NoError(t, err).Required()

		updated, err := repo.Generation().Update(ctx, rick, created.ID, finalScores())
		gt.NoError(t, err).Required()
		gt.Value(t, updated.Status).Equal(types.GenerationStatusGenerated)

		got, err := repo.Generation().Get(ctx, rick)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Status).Equal(types.GenerationStatusGenerated)
		gt.B(t, got.Scores.IsComplete()).True()
		gt.B(t, got.Scores.Creativity.IsFallback()).True()
		gt.B(t, got.Scores.Factual.IsFallback()).False()
		v, _ := got.Scores.Completeness.Value()
		gt.Value(t, v).Equal(0.75)
		gt.B(t, !got.UpdatedAt.Before(got.CreatedAt)).True()
	})

	t.Run("Update rejects partial scores and leaves the record untouched", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Generation().Create(ctx, model.NewGeneration(rick, "text", time.Now().UTC()))
		gt.NoError(t, err).Required()

		_, err = repo.Generation().Update(ctx, rick, created.ID, model.Scores{Factual: model.Scored(1)})
		gt.B(t, errors.Is(err, model.ErrPendingScore)).True()

		got, err := repo.Generation().Get(ctx, rick)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Status).Equal(types.GenerationStatusInitiated)
		gt.B(t, got.Scores.IsPending()).True()
	})

	t.Run("Update twice fails with ErrGenerationFinalized", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Generation().Create(ctx, model.NewGeneration(rick, "text", time.Now().UTC()))
		gt.NoError(t, err).Required()

		_, err = repo.Generation().Update(ctx, rick, created.ID, finalScores())
		gt.NoError(t, err).Required()

		_, err = repo.Generation().Update(ctx, rick, created.ID, finalScores())
		gt.B(t, errors.Is(err, model.ErrGenerationFinalized)).True()
	})

	t.Run("Create supersedes the previous live generation", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first, err := repo.Generation().Create(ctx, model.NewGeneration(rick, "first", time.Now().UTC()))
		gt.NoError(t, err).Required()
		second, err := repo.Generation().Create(ctx, model.NewGeneration(rick, "second", time.Now().UTC()))
		gt.NoError(t, err).Required()
		gt.Value(t, second.ID).NotEqual(first.ID)

		got, err := repo.Generation().Get(ctx, rick)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ID).Equal(second.ID)
		gt.Value(t, got.OutputText).Equal("second")

		_, err = repo.Generation().Update(ctx, rick, first.ID, finalScores())
		gt.B(t, errors.Is(err, model.ErrGenerationSuperseded)).True()

		got, err = repo.Generation().Get(ctx, rick)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Status).Equal(types.GenerationStatusInitiated)
	})

	t.Run("Update of unknown entity returns ErrNotFound", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Generation().Update(context.Background(),
			model.EntityKey{Type: types.EntityTypeLocation, ID: 404}, model.NewGenerationID(), finalScores())
		gt.B(t, errors.Is(err, model.ErrNotFound)).True()
	})

	t.Run("Create rejects an invalid key", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Generation().Create(context.Background(),
			model.NewGeneration(model.EntityKey{Type: "planet", ID: 1}, "text", time.Now()))
		gt.Error(t, err)
	})

	t.Run("concurrent creates leave exactly one live generation", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		ids := make(chan model.GenerationID, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				created, err := repo.Generation().Create(ctx, model.NewGeneration(rick, "race", time.Now().UTC()))
				if err == nil {
					ids <- created.ID
				}
			}()
		}
		wg.Wait()
		close(ids)

		got, err := repo.Generation().Get(ctx, rick)
		gt.NoError(t, err).Required()

		found := false
		for id := range ids {
			if id == got.ID {
				found = true
			}
		}
		gt.B(t, found).True()
	})
}

func TestGenerationRepository(t *testing.T) {
	runForEachBackend(t, runGenerationRepositoryTest)
}
