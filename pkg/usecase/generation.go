package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/utils/logging"
	"golang.org/x/sync/singleflight"
)

// DefaultPersona is the narrator system prompt used for summaries
const DefaultPersona = "You are a sarcastic, in-universe narrator from Rick & Morty. " +
	"Summarize this in 3-5 sentences. Be irreverent and funny, but stay " +
	"consistent with the structured data below. Do not invent characters " +
	"or contradict facts. Output only plain text, no markdown or JSON."

// Enqueuer accepts scoring jobs for asynchronous evaluation
type Enqueuer interface {
	Enqueue(ctx context.Context, job *model.ScoringJob) error
}

type GenerationUseCase struct {
	repo   interfaces.Repository
	cfg    *settings
	flight singleflight.Group
}

func NewGenerationUseCase(repo interfaces.Repository, cfg *settings) *GenerationUseCase {
	return &GenerationUseCase{
		repo: repo,
		cfg:  cfg,
	}
}

// GenerateSummary produces a new INITIATED generation for the entity and queues
// its scoring. Concurrent calls for the same entity share one generation.
// A later call supersedes the live generation.
func (uc *GenerationUseCase) GenerateSummary(ctx context.Context, key model.EntityKey) (*model.Generation, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	// The shared call must not die with whichever caller started it.
	flightCtx := context.WithoutCancel(ctx)
	ch := uc.flight.DoChan(key.String(), func() (any, error) {
		return uc.generate(flightCtx, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logging.From(ctx).Debug("joined in-flight generation", "entity", key.String())
		}
		return res.Val.(*model.Generation).Clone(), nil
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "generation request cancelled", goerr.V(EntityKey, key.String()))
	}
}

func (uc *GenerationUseCase) generate(ctx context.Context, key model.EntityKey) (*model.Generation, error) {
	switch {
	case uc.cfg.catalog == nil:
		return nil, goerr.Wrap(ErrNoCatalog, "cannot generate summary")
	case uc.cfg.textGen == nil:
		return nil, goerr.Wrap(ErrNoTextGenerator, "cannot generate summary")
	case uc.cfg.queue == nil:
		return nil, goerr.Wrap(ErrNoQueue, "cannot generate summary")
	}

	facts, err := uc.cfg.catalog.GetCanonical(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch canonical facts", goerr.V(EntityKey, key.String()))
	}

	notes, err := recentNotes(ctx, uc.repo, key, uc.cfg.noteWindow)
	if err != nil {
		return nil, err
	}

	text, err := uc.cfg.textGen.Complete(ctx, buildSummaryPrompt(uc.cfg.persona, facts, notes))
	if err != nil {
		if !errors.Is(err, model.ErrUpstreamProvider) {
			err = model.UpstreamError(err)
		}
		return nil, goerr.Wrap(err, "failed to generate summary", goerr.V(EntityKey, key.String()))
	}

	created, err := uc.repo.Generation().Create(ctx, model.NewGeneration(key, text, uc.cfg.now()))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to save generation", goerr.V(EntityKey, key.String()))
	}

	job := model.NewScoringJob(created, facts, uc.cfg.now())
	if err := uc.cfg.queue.Enqueue(ctx, job); err != nil {
		return nil, goerr.Wrap(err, "failed to enqueue scoring job",
			goerr.V(EntityKey, key.String()),
			goerr.V(GenerationIDKey, created.ID))
	}

	logging.From(ctx).Info("generation created",
		"entity", key.String(),
		"generation_id", created.ID,
		"notes", len(notes),
	)
	return created, nil
}

// GetGeneration returns the live generation of the entity
func (uc *GenerationUseCase) GetGeneration(ctx context.Context, key model.EntityKey) (*model.Generation, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	gen, err := uc.repo.Generation().Get(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get generation", goerr.V(EntityKey, key.String()))
	}
	return gen, nil
}

func buildSummaryPrompt(persona string, facts *model.Entity, notes []string) model.Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the %s %q.\n\n", facts.Key.Type, facts.Name)
	b.WriteString("Structured data:\n")
	b.WriteString(facts.CanonicalText())
	b.WriteString("\n")

	if len(notes) > 0 {
		b.WriteString("\nFan notes, oldest first:\n")
		for _, n := range notes {
			b.WriteString("- ")
			b.WriteString(n)
			b.WriteString("\n")
		}
	}

	return model.Prompt{
		System: persona,
		User:   b.String(),
	}
}

func validateKey(key model.EntityKey) error {
	if err := key.Validate(); err != nil {
		return goerr.Wrap(model.ErrNotFound, "unknown entity",
			goerr.V(EntityKey, key.String()),
			goerr.V("reason", err.Error()))
	}
	return nil
}

// recentNotes returns up to limit of the newest notes of the entity in chronological order
func recentNotes(ctx context.Context, repo interfaces.Repository, key model.EntityKey, limit int) ([]string, error) {
	notes, err := repo.Note().ListRecent(ctx, key, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list notes", goerr.V(EntityKey, key.String()))
	}

	model.SortNotesChronological(notes)
	texts := make([]string, 0, len(notes))
	for _, n := range notes {
		texts = append(texts, n.Text)
	}
	return texts, nil
}
