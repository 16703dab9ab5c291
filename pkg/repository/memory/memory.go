package memory

import (
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory keeps every record in process memory. Intended for development and tests.
type Memory struct {
	generation  *generationRepository
	searchIndex *searchIndexRepository
	note        *noteRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		generation:  newGenerationRepository(),
		searchIndex: newSearchIndexRepository(),
		note:        newNoteRepository(),
	}
}

func (m *Memory) Generation() interfaces.GenerationRepository {
	return m.generation
}

func (m *Memory) SearchIndex() interfaces.SearchIndexRepository {
	return m.searchIndex
}

func (m *Memory) Note() interfaces.NoteRepository {
	return m.note
}

func (m *Memory) Close() error {
	return nil
}
