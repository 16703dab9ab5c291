package usecase

import "errors"

// Sentinel errors for use case layer
var (
	ErrInvalidLimit = errors.New("limit must be at least 1")
	ErrEmptyNote    = errors.New("note text is empty")

	// Dependency errors
	ErrNoCatalog       = errors.New("entity catalog is not configured")
	ErrNoTextGenerator = errors.New("text generator is not configured")
	ErrNoEmbedder      = errors.New("embedder is not configured")
	ErrNoQueue         = errors.New("evaluation queue is not configured")
)

// Context keys for error values
const (
	EntityKey       = "entity"
	GenerationIDKey = "generation_id"
	NoteIDKey       = "note_id"
)
