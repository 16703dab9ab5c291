package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
	"github.com/secmon-lab/citadel/pkg/utils/logging"
)

type IndexUseCase struct {
	repo interfaces.Repository
	cfg  *settings

	// one *sync.Mutex per EntityKey; rebuilds of an entity run one at a time
	locks sync.Map
}

func NewIndexUseCase(repo interfaces.Repository, cfg *settings) *IndexUseCase {
	return &IndexUseCase{
		repo: repo,
		cfg:  cfg,
	}
}

// RebuildIndexEntry recomposes the text blob of the entity from its canonical facts,
// recent notes and latest GENERATED summary, embeds it and replaces the stored entry.
// Callers invoke it after their own writes commit.
func (uc *IndexUseCase) RebuildIndexEntry(ctx context.Context, key model.EntityKey) (*model.SearchIndexEntry, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	switch {
	case uc.cfg.catalog == nil:
		return nil, goerr.Wrap(ErrNoCatalog, "cannot rebuild index entry")
	case uc.cfg.embedder == nil:
		return nil, goerr.Wrap(ErrNoEmbedder, "cannot rebuild index entry")
	}

	unlock := uc.lock(key)
	defer unlock()

	facts, err := uc.cfg.catalog.GetCanonical(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch canonical facts", goerr.V(EntityKey, key.String()))
	}

	notes, err := recentNotes(ctx, uc.repo, key, uc.cfg.noteWindow)
	if err != nil {
		return nil, err
	}

	summary, err := uc.latestSummary(ctx, key)
	if err != nil {
		return nil, err
	}

	blob := model.ComposeTextBlob(facts, notes, summary)
	embedding, err := uc.cfg.embedder.Embed(ctx, blob)
	if err != nil {
		if !errors.Is(err, model.ErrUpstreamProvider) && !errors.Is(err, model.ErrIndexDimensionMismatch) {
			err = model.UpstreamError(err)
		}
		return nil, goerr.Wrap(err, "failed to embed text blob", goerr.V(EntityKey, key.String()))
	}
	if uc.cfg.dimension > 0 && len(embedding) != uc.cfg.dimension {
		return nil, goerr.Wrap(model.ErrIndexDimensionMismatch, "embedding has unexpected dimension",
			goerr.V(EntityKey, key.String()),
			goerr.V("expected", uc.cfg.dimension),
			goerr.V("actual", len(embedding)))
	}

	entry := &model.SearchIndexEntry{
		EntityType: key.Type,
		EntityID:   key.ID,
		TextBlob:   blob,
		Embedding:  embedding,
		UpdatedAt:  uc.cfg.now(),
	}
	if err := uc.repo.SearchIndex().Upsert(ctx, entry); err != nil {
		return nil, goerr.Wrap(err, "failed to save index entry", goerr.V(EntityKey, key.String()))
	}

	logging.From(ctx).Debug("index entry rebuilt",
		"entity", key.String(),
		"notes", len(notes),
		"with_summary", summary != "",
	)
	return entry, nil
}

func (uc *IndexUseCase) lock(key model.EntityKey) func() {
	v, _ := uc.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// latestSummary returns the text of the live generation once it is GENERATED, or ""
func (uc *IndexUseCase) latestSummary(ctx context.Context, key model.EntityKey) (string, error) {
	gen, err := uc.repo.Generation().Get(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", goerr.Wrap(err, "failed to get generation", goerr.V(EntityKey, key.String()))
	}
	if gen.Status != types.GenerationStatusGenerated {
		return "", nil
	}
	return truncateRunes(gen.OutputText, uc.cfg.summaryMaxChars), nil
}

// OnGenerationFinalized refreshes the index entry once a generation has its scores
func (uc *IndexUseCase) OnGenerationFinalized(ctx context.Context, gen *model.Generation) error {
	_, err := uc.RebuildIndexEntry(ctx, gen.Key())
	return err
}

// RebuildFailure is an entity whose entry could not be rebuilt
type RebuildFailure struct {
	Key model.EntityKey
	Err error
}

// RebuildAll rebuilds the entries of every key and reports those that failed.
// It stops early on a dimension mismatch or when ctx is done.
func (uc *IndexUseCase) RebuildAll(ctx context.Context, keys []model.EntityKey) ([]RebuildFailure, error) {
	var failures []RebuildFailure
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return failures, goerr.Wrap(err, "rebuild interrupted", goerr.V("remaining", len(keys)-i))
		}

		if _, err := uc.RebuildIndexEntry(ctx, key); err != nil {
			if errors.Is(err, model.ErrIndexDimensionMismatch) {
				return failures, err
			}
			logging.From(ctx).Warn("failed to rebuild index entry", "entity", key.String(), "error", err.Error())
			failures = append(failures, RebuildFailure{Key: key, Err: err})
		}
	}
	return failures, nil
}

// IndexedKeys lists the entities that currently have an index entry
func (uc *IndexUseCase) IndexedKeys(ctx context.Context) ([]model.EntityKey, error) {
	entries, err := uc.repo.SearchIndex().GetAll(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list index entries")
	}

	keys := make([]model.EntityKey, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key())
	}
	return keys, nil
}
