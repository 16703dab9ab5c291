package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
)

const generationColumns = `entity_type, entity_id, id, output_text,
	factual_score, factual_fallback,
	completeness_score, completeness_fallback,
	creativity_score, creativity_fallback,
	relevance_score, relevance_fallback,
	status, created_at, updated_at`

type generationRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (*model.Generation, error) {
	var (
		gen                   model.Generation
		entityType, status    string
		createdAt, updatedAt  string
		factual, completeness sql.NullFloat64
		creativity, relevance sql.NullFloat64
		factualFB, complFB    int
		creativityFB, relevFB int
	)

	if err := row.Scan(&entityType, &gen.EntityID, &gen.ID, &gen.OutputText,
		&factual, &factualFB,
		&completeness, &complFB,
		&creativity, &creativityFB,
		&relevance, &relevFB,
		&status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	gen.EntityType = types.EntityType(entityType)
	gen.Status = types.GenerationStatus(status)
	gen.Scores = model.Scores{
		Factual:      scoreFromColumn(factual, factualFB),
		Completeness: scoreFromColumn(completeness, complFB),
		Creativity:   scoreFromColumn(creativity, creativityFB),
		Relevance:    scoreFromColumn(relevance, relevFB),
	}

	var err error
	if gen.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if gen.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &gen, nil
}

func scoreFromColumn(v sql.NullFloat64, fallback int) model.Score {
	if !v.Valid {
		return model.PendingScore()
	}
	return model.ScoreFromPtr(&v.Float64, fallback != 0)
}

func scoreArgs(s model.Score) []any {
	if p := s.Ptr(); p != nil {
		return []any{*p, boolToInt(s.IsFallback())}
	}
	return []any{nil, 0}
}

func generationArgs(g *model.Generation) []any {
	args := []any{g.EntityType.String(), g.EntityID, g.ID.String(), g.OutputText}
	for _, s := range g.Scores.All() {
		args = append(args, scoreArgs(s)...)
	}
	return append(args, g.Status.String(), formatTime(g.CreatedAt), formatTime(g.UpdatedAt))
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

	// Conflict on the entity key replaces every column, superseding the previous live generation.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO generations (`+generationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id) DO UPDATE SET
			id = excluded.id,
			output_text = excluded.output_text,
			factual_score = excluded.factual_score,
			factual_fallback = excluded.factual_fallback,
			completeness_score = excluded.completeness_score,
			completeness_fallback = excluded.completeness_fallback,
			creativity_score = excluded.creativity_score,
			creativity_fallback = excluded.creativity_fallback,
			relevance_score = excluded.relevance_score,
			relevance_fallback = excluded.relevance_fallback,
			status = excluded.status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, generationArgs(created)...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create generation", goerr.V("key", created.Key()))
	}

	return created, nil
}

func (r *generationRepository) Get(ctx context.Context, key model.EntityKey) (*model.Generation, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+generationColumns+" FROM generations WHERE entity_type = ? AND entity_id = ?",
		key.Type.String(), key.ID)

	gen, err := scanGeneration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(model.ErrNotFound, "generation not found", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to get generation", goerr.V("key", key))
	}
	return gen, nil
}

func (r *generationRepository) Update(ctx context.Context, key model.EntityKey, id model.GenerationID, scores model.Scores) (*model.Generation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		"SELECT "+generationColumns+" FROM generations WHERE entity_type = ? AND entity_id = ?",
		key.Type.String(), key.ID)
	gen, err := scanGeneration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(model.ErrNotFound, "generation not found", goerr.V("key", key), goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get generation", goerr.V("key", key))
	}
	if gen.ID != id {
		return nil, goerr.Wrap(model.ErrGenerationSuperseded, "generation is no longer live",
			goerr.V("key", key), goerr.V("id", id), goerr.V("live_id", gen.ID))
	}

	if err := gen.Finalize(scores, time.Now().UTC()); err != nil {
		return nil, goerr.Wrap(err, "failed to finalize generation", goerr.V("key", key), goerr.V("id", id))
	}

	args := []any{}
	for _, s := range gen.Scores.All() {
		args = append(args, scoreArgs(s)...)
	}
	args = append(args, gen.Status.String(), formatTime(gen.UpdatedAt), key.Type.String(), key.ID, id.String())

	if _, err := tx.ExecContext(ctx, `
		UPDATE generations SET
			factual_score = ?, factual_fallback = ?,
			completeness_score = ?, completeness_fallback = ?,
			creativity_score = ?, creativity_fallback = ?,
			relevance_score = ?, relevance_fallback = ?,
			status = ?, updated_at = ?
		WHERE entity_type = ? AND entity_id = ? AND id = ?
	`, args...); err != nil {
		return nil, goerr.Wrap(err, "failed to update generation", goerr.V("key", key), goerr.V("id", id))
	}

	if err := tx.Commit(); err != nil {
		return nil, goerr.Wrap(err, "failed to commit generation update", goerr.V("key", key))
	}
	return gen, nil
}
