package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
)

type noteRepository struct {
	db *sql.DB
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

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO notes (id, entity_type, entity_id, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, created.ID.String(), created.EntityType.String(), created.EntityID, created.Text,
		formatTime(created.CreatedAt)); err != nil {
		return nil, goerr.Wrap(err, "failed to create note", goerr.V("key", created.Key()))
	}

	return &created, nil
}

func (r *noteRepository) Delete(ctx context.Context, key model.EntityKey, id model.NoteID) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM notes WHERE id = ? AND entity_type = ? AND entity_id = ?",
		id.String(), key.Type.String(), key.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to delete note", goerr.V("key", key), goerr.V("id", id))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to get affected rows", goerr.V("id", id))
	}
	if n == 0 {
		return goerr.Wrap(model.ErrNotFound, "note not found", goerr.V("key", key), goerr.V("id", id))
	}
	return nil
}

func (r *noteRepository) ListRecent(ctx context.Context, key model.EntityKey, limit int) ([]*model.Note, error) {
	query := `
		SELECT id, entity_type, entity_id, text, created_at
		FROM notes WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC, id DESC`
	args := []any{key.Type.String(), key.ID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query notes", goerr.V("key", key))
	}
	defer func() { _ = rows.Close() }()

	notes := make([]*model.Note, 0)
	for rows.Next() {
		var (
			note       model.Note
			id         string
			entityType string
			createdAt  string
		)
		if err := rows.Scan(&id, &entityType, &note.EntityID, &note.Text, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan note", goerr.V("key", key))
		}
		note.ID = model.NoteID(id)
		note.EntityType = types.EntityType(entityType)
		if note.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		notes = append(notes, &note)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate notes", goerr.V("key", key))
	}
	return notes, nil
}
