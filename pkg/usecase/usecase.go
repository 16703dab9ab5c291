package usecase

import (
	"time"

	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
)

const (
	// DefaultNoteWindow is how many recent notes feed prompts and index blobs
	DefaultNoteWindow = 5

	DefaultSnippetWidth    = 160
	DefaultFallbackChars   = 200
	DefaultSummaryMaxChars = 500
)

type settings struct {
	catalog  interfaces.EntityCatalog
	textGen  interfaces.TextGenerator
	embedder interfaces.Embedder
	queue    Enqueuer

	noteWindow      int
	persona         string
	dimension       int
	snippetWidth    int
	fallbackChars   int
	summaryMaxChars int
	now             func() time.Time
}

type UseCases struct {
	Generation *GenerationUseCase
	Index      *IndexUseCase
	Search     *SearchUseCase
	Note       *NoteUseCase
}

type Option func(*settings)

func WithCatalog(catalog interfaces.EntityCatalog) Option {
	return func(s *settings) {
		s.catalog = catalog
	}
}

func WithTextGenerator(textGen interfaces.TextGenerator) Option {
	return func(s *settings) {
		s.textGen = textGen
	}
}

// WithEmbedder sets the embedder shared by indexing and querying
func WithEmbedder(embedder interfaces.Embedder) Option {
	return func(s *settings) {
		s.embedder = embedder
	}
}

// WithQueue sets where scoring jobs of new generations are sent
func WithQueue(queue Enqueuer) Option {
	return func(s *settings) {
		s.queue = queue
	}
}

// WithNoteWindow sets how many recent notes are used. Non-positive values are ignored.
func WithNoteWindow(k int) Option {
	return func(s *settings) {
		if k > 0 {
			s.noteWindow = k
		}
	}
}

// WithPersona overrides the narrator system prompt
func WithPersona(persona string) Option {
	return func(s *settings) {
		if persona != "" {
			s.persona = persona
		}
	}
}

// WithEmbeddingDimension pins the expected embedding length. Zero accepts any length.
func WithEmbeddingDimension(dim int) Option {
	return func(s *settings) {
		s.dimension = dim
	}
}

func WithSnippet(width, fallbackChars int) Option {
	return func(s *settings) {
		if width > 0 {
			s.snippetWidth = width
		}
		if fallbackChars > 0 {
			s.fallbackChars = fallbackChars
		}
	}
}

func WithSummaryMaxChars(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.summaryMaxChars = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	cfg := &settings{
		noteWindow:      DefaultNoteWindow,
		persona:         DefaultPersona,
		snippetWidth:    DefaultSnippetWidth,
		fallbackChars:   DefaultFallbackChars,
		summaryMaxChars: DefaultSummaryMaxChars,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	index := NewIndexUseCase(repo, cfg)
	return &UseCases{
		Generation: NewGenerationUseCase(repo, cfg),
		Index:      index,
		Search:     NewSearchUseCase(repo, cfg),
		Note:       NewNoteUseCase(repo, index, cfg),
	}
}
