package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Generation() GenerationRepository
	SearchIndex() SearchIndexRepository
	Note() NoteRepository

	// Close releases the underlying connection
	Close() error
}
