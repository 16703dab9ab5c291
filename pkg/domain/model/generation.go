package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/citadel/pkg/domain/types"
)

// GenerationID is a UUID-based identifier for Generation
type GenerationID string

// NewGenerationID generates a new UUID v4 GenerationID
func NewGenerationID() GenerationID {
	return GenerationID(uuid.New().String())
}

// String returns the string representation of the generation ID
func (id GenerationID) String() string {
	return string(id)
}

// Generation is one produced summary of an entity plus its four evaluation scores.
// Exactly one generation is live per entity.
type Generation struct {
	ID         GenerationID
	EntityType types.EntityType
	EntityID   int64
	OutputText string
	Scores     Scores
	Status     types.GenerationStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewGeneration returns an INITIATED generation with pending scores
func NewGeneration(key EntityKey, text string, now time.Time) *Generation {
	return &Generation{
		ID:         NewGenerationID(),
		EntityType: key.Type,
		EntityID:   key.ID,
		OutputText: text,
		Scores:     PendingScores(),
		Status:     types.GenerationStatusInitiated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Key returns the entity key of the generation
func (g *Generation) Key() EntityKey {
	return EntityKey{Type: g.EntityType, ID: g.EntityID}
}

// Finalize applies evaluated scores and flips the status to GENERATED.
// It fails if the generation is already GENERATED or any score is pending.
func (g *Generation) Finalize(scores Scores, now time.Time) error {
	if g.Status.IsTerminal() {
		return ErrGenerationFinalized
	}
	if !scores.IsComplete() {
		return ErrPendingScore
	}
	g.Scores = scores
	g.Status = types.GenerationStatusGenerated
	g.UpdatedAt = now
	return nil
}

// Clone returns a copy of the generation
func (g *Generation) Clone() *Generation {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}
