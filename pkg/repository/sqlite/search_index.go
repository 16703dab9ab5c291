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

type searchIndexRepository struct {
	db *sql.DB
}

func scanSearchIndexEntry(row rowScanner) (*model.SearchIndexEntry, error) {
	var (
		entry      model.SearchIndexEntry
		entityType string
		embedding  []byte
		updatedAt  string
	)
	if err := row.Scan(&entityType, &entry.EntityID, &entry.TextBlob, &embedding, &updatedAt); err != nil {
		return nil, err
	}

	entry.EntityType = types.EntityType(entityType)
	entry.Embedding = bytesToFloat32Slice(embedding)

	var err error
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *searchIndexRepository) Upsert(ctx context.Context, entry *model.SearchIndexEntry) error {
	if err := entry.Key().Validate(); err != nil {
		return goerr.Wrap(err, "invalid search index key", goerr.V("key", entry.Key()))
	}

	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO search_index (entity_type, entity_id, text_blob, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id) DO UPDATE SET
			text_blob = excluded.text_blob,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`, entry.EntityType.String(), entry.EntityID, entry.TextBlob,
		float32SliceToBytes(entry.Embedding), formatTime(updatedAt))
	if err != nil {
		return goerr.Wrap(err, "failed to upsert search index entry", goerr.V("key", entry.Key()))
	}
	return nil
}

func (r *searchIndexRepository) Get(ctx context.Context, key model.EntityKey) (*model.SearchIndexEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT entity_type, entity_id, text_blob, embedding, updated_at
		FROM search_index WHERE entity_type = ? AND entity_id = ?
	`, key.Type.String(), key.ID)

	entry, err := scanSearchIndexEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(model.ErrNotFound, "search index entry not found", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to get search index entry", goerr.V("key", key))
	}
	return entry, nil
}

func (r *searchIndexRepository) GetAll(ctx context.Context) ([]*model.SearchIndexEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entity_type, entity_id, text_blob, embedding, updated_at
		FROM search_index ORDER BY entity_type, entity_id
	`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query search index")
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*model.SearchIndexEntry, 0)
	for rows.Next() {
		entry, err := scanSearchIndexEntry(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan search index entry")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate search index")
	}
	return entries, nil
}
