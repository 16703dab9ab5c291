package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
	"github.com/secmon-lab/citadel/pkg/repository/memory"
	"github.com/secmon-lab/citadel/pkg/usecase"
)

func newIndexUseCases(repo *memory.Memory, embedder *hashEmbedder, opts ...usecase.Option) *usecase.UseCases {
	return usecase.New(repo, append([]usecase.Option{
		usecase.WithCatalog(&mockCatalog{entities: testEntities()}),
		usecase.WithTextGenerator(&mockTextGen{}),
		usecase.WithEmbedder(embedder),
		usecase.WithQueue(&mockQueue{}),
		usecase.WithEmbeddingDimension(embedder.dim),
		usecase.WithClock(stepClock()),
	}, opts...)...)
}

func TestIndexUseCase_RebuildIndexEntry(t *testing.T) {
	t.Run("blob starts with the name and stores the embedding", func(t *testing.T) {
		repo := memory.New()
		uc := newIndexUseCases(repo, &hashEmbedder{dim: 64})
		ctx := context.Background()

		entry, err := uc.Index.RebuildIndexEntry(ctx, rickKey)
		gt.NoError(t, err).Required()
		gt.Value(t, entry.Name()).Equal("Rick Sanchez")
		gt.Array(t, entry.Embedding).Length(64)

		stored, err := repo.SearchIndex().Get(ctx, rickKey)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.TextBlob).Equal(entry.TextBlob)
		gt.B(t, strings.HasPrefix(stored.TextBlob, "Rick Sanchez\n")).True()
	})

	t.Run("unchanged inputs give identical blob and embedding", func(t *testing.T) {
		repo := memory.New()
		uc := newIndexUseCases(repo, &hashEmbedder{dim: 64})
		ctx := context.Background()

		_, err := uc.Note.AddNote(ctx, rickKey, "Turned himself into a pickle")
		gt.NoError(t, err).Required()

		first, err := uc.Index.RebuildIndexEntry(ctx, rickKey)
		gt.NoError(t, err).Required()
		second, err := uc.Index.RebuildIndexEntry(ctx, rickKey)
		gt.NoError(t, err).Required()

		gt.Value(t, second.TextBlob).Equal(first.TextBlob)
		gt.Value(t, second.Embedding).Equal(first.Embedding)
	})

	t.Run("only a GENERATED summary is included", func(t *testing.T) {
		repo := memory.New()
		uc := newIndexUseCases(repo, &hashEmbedder{dim: 64})
		ctx := context.Background()

		gen, err := uc.Generation.GenerateSummary(ctx, rickKey)
		gt.NoError(t, err).Required()

		pending, err := uc.Index.RebuildIndexEntry(ctx, rickKey)
		gt.NoError(t, err).Required()
		gt.B(t, strings.Contains(pending.TextBlob, "Summary:")).False()

		_, err = repo.Generation().Update(ctx, rickKey, gen.ID, fixedScores())
		gt.NoError(t, err).Required()

		final, err := uc.Index.RebuildIndexEntry(ctx, rickKey)
		gt.NoError(t, err).Required()
		gt.B(t, strings.HasSuffix(final.TextBlob, "Summary:\n"+rickSummary)).True()
	})

	t.Run("summary is truncated", func(t *testing.T) {
		repo := memory.New()
		uc := newIndexUseCases(repo, &hashEmbedder{dim: 64}, usecase.WithSummaryMaxChars(20))
		ctx := context.Background()

		gen, err := uc.Generation.GenerateSummary(ctx, rickKey)
		gt.NoError(t, err).Required()
		_, err = repo.Generation().Update(ctx, rickKey, gen.ID, fixedScores())
		gt.NoError(t, err).Required()

		entry, err := uc.Index.RebuildIndexEntry(ctx, rickKey)
		gt.NoError(t, err).Required()
		gt.B(t, strings.HasSuffix(entry.TextBlob, "Summary:\nRick Sanchez is a Hu...")).True()
	})

	// Two notes are added to location 7, one is deleted, and only the survivor remains in the blob.
	t.Run("deleted note leaves the blob", func(t *testing.T) {
		repo := memory.New()
		uc := newIndexUseCases(repo, &hashEmbedder{dim: 64})
		ctx := context.Background()

		kept, err := uc.Note.AddNote(ctx, citadelKey, "Home of the Council of Ricks")
		gt.NoError(t, err).Required()
		removed, err := uc.Note.AddNote(ctx, citadelKey, "Destroyed by Evil Morty")
		gt.NoError(t, err).Required()
		gt.NoError(t, uc.Note.DeleteNote(ctx, citadelKey, removed.ID)).Required()

		entry, err := uc.Index.RebuildIndexEntry(ctx, model.EntityKey{Type: types.EntityTypeLocation, ID: 7})
		gt.NoError(t, err).Required()
		gt.B(t, strings.Contains(entry.TextBlob, kept.Text)).True()
		gt.B(t, strings.Contains(entry.TextBlob, removed.Text)).False()
		gt.B(t, strings.Contains(entry.TextBlob, "Notes:\n- Home of the Council of Ricks")).True()
	})

	t.Run("notes beyond the window are left out", func(t *testing.T) {
		repo := memory.New()
		uc := newIndexUseCases(repo, &hashEmbedder{dim: 64}, usecase.WithNoteWindow(2))
		ctx := context.Background()

		for _, text := range []string{"oldest", "middle", "newest"} {
			_, err := uc.Note.AddNote(ctx, citadelKey, text)
			gt.NoError(t, err).Required()
		}

		entry, err := uc.Index.RebuildIndexEntry(ctx, citadelKey)
		gt.NoError(t, err).Required()
		gt.B(t, strings.HasSuffix(entry.TextBlob, "Notes:\n- middle\n- newest")).True()
	})

	t.Run("unknown entity fails with NotFound", func(t *testing.T) {
		repo := memory.New()
		uc := newIndexUseCases(repo, &hashEmbedder{dim: 64})

		_, err := uc.Index.RebuildIndexEntry(context.Background(), model.EntityKey{Type: types.EntityTypeEpisode, ID: 42})
		gt.B(t, errors.Is(err, model.ErrNotFound)).True()
	})

	t.Run("embedding of the wrong dimension is rejected", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo,
			usecase.WithCatalog(&mockCatalog{entities: testEntities()}),
			usecase.WithEmbedder(&hashEmbedder{dim: 32}),
			usecase.WithEmbeddingDimension(64),
		)
		ctx := context.Background()

		_, err := uc.Index.RebuildIndexEntry(ctx, rickKey)
		gt.B(t, errors.Is(err, model.ErrIndexDimensionMismatch)).True()

		_, err = repo.SearchIndex().Get(ctx, rickKey)
		gt.B(t, errors.Is(err, model.ErrNotFound)).True()
	})

	t.Run("embedder failure is an upstream error", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo,
			usecase.WithCatalog(&mockCatalog{entities: testEntities()}),
			usecase.WithEmbedder(&fixedEmbedder{err: errors.New("quota exceeded")}),
		)

		_, err := uc.Index.RebuildIndexEntry(context.Background(), rickKey)
		gt.B(t, errors.Is(err, model.ErrUpstreamProvider)).True()
	})
}

func TestIndexUseCase_RebuildAll(t *testing.T) {
	repo := memory.New()
	uc := newIndexUseCases(repo, &hashEmbedder{dim: 64})
	ctx := context.Background()

	missing := model.EntityKey{Type: types.EntityTypeCharacter, ID: 404}
	failures, err := uc.Index.RebuildAll(ctx, []model.EntityKey{rickKey, missing, citadelKey})
	gt.NoError(t, err).Required()
	gt.Array(t, failures).Length(1)
	gt.Value(t, failures[0].Key).Equal(missing)
	gt.B(t, errors.Is(failures[0].Err, model.ErrNotFound)).True()

	keys, err := uc.Index.IndexedKeys(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, keys).Equal([]model.EntityKey{rickKey, citadelKey})
}

func TestIndexUseCase_OnGenerationFinalized(t *testing.T) {
	repo := memory.New()
	uc := newIndexUseCases(repo, &hashEmbedder{dim: 64})
	ctx := context.Background()

	gen, err := uc.Generation.GenerateSummary(ctx, rickKey)
	gt.NoError(t, err).Required()
	final, err := repo.Generation().Update(ctx, rickKey, gen.ID, fixedScores())
	gt.NoError(t, err).Required()

	gt.NoError(t, uc.Index.OnGenerationFinalized(ctx, final)).Required()

	entry, err := repo.SearchIndex().Get(ctx, rickKey)
	gt.NoError(t, err).Required()
	gt.B(t, strings.Contains(entry.TextBlob, rickSummary)).True()
}

// A rebuild that read the notes before a note was committed must not overwrite
// the rebuild triggered by that note.
func TestIndexUseCase_RebuildIsSerializedPerEntity(t *testing.T) {
	repo := memory.New()
	embedder := newGatedEmbedder(64)
	uc := newIndexUseCases(repo, &hashEmbedder{dim: 64}, usecase.WithEmbedder(embedder))
	ctx := context.Background()

	hookDone := make(chan error, 1)
	go func() {
		_, err := uc.Index.RebuildIndexEntry(ctx, rickKey)
		hookDone <- err
	}()
	<-embedder.entered

	noteDone := make(chan error, 1)
	go func() {
		_, err := uc.Note.AddNote(ctx, rickKey, "Turned himself into a pickle")
		noteDone <- err
	}()

	waitFor(t, func() bool {
		notes, err := repo.Note().ListRecent(ctx, rickKey, 0)
		return err == nil && len(notes) == 1
	})
	close(embedder.release)

	gt.NoError(t, <-hookDone).Required()
	gt.NoError(t, <-noteDone).Required()

	stored, err := repo.SearchIndex().Get(ctx, rickKey)
	gt.NoError(t, err).Required()
	gt.String(t, stored.TextBlob).Contains("Turned himself into a pickle")
}
