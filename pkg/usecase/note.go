package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/utils/errutil"
	"github.com/secmon-lab/citadel/pkg/utils/logging"
)

// MaxImprovedNoteWords caps the length of a rewritten note
const MaxImprovedNoteWords = 300

const improveNotePersona = "You are a helpful writing assistant for Rick & Morty notes. " +
	"Improve the given note while keeping it concise and relevant to the entity. " +
	"Keep the original meaning. If the note is minimal, write engaging content in the Rick & Morty tone. " +
	"Output only the improved text, no explanations or metadata."

type NoteUseCase struct {
	repo  interfaces.Repository
	index *IndexUseCase
	cfg   *settings
}

func NewNoteUseCase(repo interfaces.Repository, index *IndexUseCase, cfg *settings) *NoteUseCase {
	return &NoteUseCase{
		repo:  repo,
		index: index,
		cfg:   cfg,
	}
}

// AddNote attaches a note to a known entity and refreshes its index entry
func (uc *NoteUseCase) AddNote(ctx context.Context, key model.EntityKey, text string) (*model.Note, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, goerr.Wrap(ErrEmptyNote, "cannot add note", goerr.V(EntityKey, key.String()))
	}
	if uc.cfg.catalog == nil {
		return nil, goerr.Wrap(ErrNoCatalog, "cannot add note")
	}
	if _, err := uc.cfg.catalog.GetCanonical(ctx, key); err != nil {
		return nil, goerr.Wrap(err, "failed to look up entity", goerr.V(EntityKey, key.String()))
	}

	note := &model.Note{
		ID:         model.NewNoteID(),
		EntityType: key.Type,
		EntityID:   key.ID,
		Text:       text,
		CreatedAt:  uc.cfg.now(),
	}
	created, err := uc.repo.Note().Create(ctx, note)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to save note", goerr.V(EntityKey, key.String()))
	}

	uc.refreshIndex(ctx, key)
	return created, nil
}

// DeleteNote removes a note and refreshes the index entry of its entity
func (uc *NoteUseCase) DeleteNote(ctx context.Context, key model.EntityKey, id model.NoteID) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := uc.repo.Note().Delete(ctx, key, id); err != nil {
		return goerr.Wrap(err, "failed to delete note",
			goerr.V(EntityKey, key.String()),
			goerr.V(NoteIDKey, id))
	}

	uc.refreshIndex(ctx, key)
	return nil
}

// ListNotes returns every note of the entity, newest first
func (uc *NoteUseCase) ListNotes(ctx context.Context, key model.EntityKey) ([]*model.Note, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	notes, err := uc.repo.Note().ListRecent(ctx, key, 0)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list notes", goerr.V(EntityKey, key.String()))
	}
	return notes, nil
}

// ImproveNote rewrites a draft in the narrator voice. Nothing is stored or scored.
func (uc *NoteUseCase) ImproveNote(ctx context.Context, key model.EntityKey, draft string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	draft = strings.TrimSpace(draft)
	if draft == "" {
		return "", goerr.Wrap(ErrEmptyNote, "cannot improve note", goerr.V(EntityKey, key.String()))
	}
	switch {
	case uc.cfg.catalog == nil:
		return "", goerr.Wrap(ErrNoCatalog, "cannot improve note")
	case uc.cfg.textGen == nil:
		return "", goerr.Wrap(ErrNoTextGenerator, "cannot improve note")
	}

	facts, err := uc.cfg.catalog.GetCanonical(ctx, key)
	if err != nil {
		return "", goerr.Wrap(err, "failed to fetch canonical facts", goerr.V(EntityKey, key.String()))
	}

	prompt := model.Prompt{
		System: improveNotePersona,
		User: fmt.Sprintf("Improve this note about the %s %q.\n\nOriginal note:\n%s\n\nContext:\n%s\n\nKeep it under %d words.",
			key.Type, facts.Name, draft, facts.CanonicalText(), MaxImprovedNoteWords),
	}
	improved, err := uc.cfg.textGen.Complete(ctx, prompt)
	if err != nil {
		if !errors.Is(err, model.ErrUpstreamProvider) {
			err = model.UpstreamError(err)
		}
		return "", goerr.Wrap(err, "failed to improve note", goerr.V(EntityKey, key.String()))
	}

	return capWords(improved, MaxImprovedNoteWords), nil
}

// refreshIndex rebuilds the index entry after a committed note write.
// The note write stands even if the rebuild fails.
func (uc *NoteUseCase) refreshIndex(ctx context.Context, key model.EntityKey) {
	if _, err := uc.index.RebuildIndexEntry(ctx, key); err != nil {
		errutil.Handle(ctx, err, "failed to rebuild index entry after note change")
		return
	}
	logging.From(ctx).Debug("index entry refreshed after note change", "entity", key.String())
}

func capWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.TrimSpace(s)
	}
	return strings.Join(words[:n], " ") + ellipsis
}
