package interfaces

import (
	"context"

	"github.com/secmon-lab/citadel/pkg/domain/model"
)

// GenerationRepository stores generations, keeping exactly one live record per entity
type GenerationRepository interface {
	// Create stores an INITIATED generation with pending scores. Any existing
	// generation for the same entity is superseded and replaced.
	Create(ctx context.Context, gen *model.Generation) (*model.Generation, error)

	// Get retrieves the live generation of an entity
	Get(ctx context.Context, key model.EntityKey) (*model.Generation, error)

	// Update writes all four scores, flips the status to GENERATED and refreshes
	// updated_at in a single atomic write. It fails with ErrGenerationSuperseded
	// when id is not the live generation and ErrGenerationFinalized when it is
	// already GENERATED.
	Update(ctx context.Context, key model.EntityKey, id model.GenerationID, scores model.Scores) (*model.Generation, error)
}
