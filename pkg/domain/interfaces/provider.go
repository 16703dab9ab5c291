package interfaces

import (
	"context"

	"github.com/secmon-lab/citadel/pkg/domain/model"
)

// EntityCatalog fetches canonical facts of entities. Unknown entities fail with model.ErrNotFound.
type EntityCatalog interface {
	GetCanonical(ctx context.Context, key model.EntityKey) (*model.Entity, error)
}

// TextGenerator completes a prompt into text
type TextGenerator interface {
	Complete(ctx context.Context, prompt model.Prompt) (string, error)
}

// Judge grades a text against a rubric and returns its raw reply
type Judge interface {
	Judge(ctx context.Context, text, rubric string) (string, error)
}

// Embedder turns text into a fixed-length vector. Indexing and querying must share one Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
