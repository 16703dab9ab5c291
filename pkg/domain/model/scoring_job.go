package model

import (
	"time"

	"github.com/secmon-lab/citadel/pkg/domain/types"
)

// ScoringJob asks the evaluation worker to score a generation.
// It lives only in memory and is lost on restart.
type ScoringJob struct {
	Kind         types.JobKind
	GenerationID GenerationID
	Key          EntityKey
	Text         string
	// Facts is the snapshot the text was generated from. It is never re-fetched.
	Facts      *Entity
	EnqueuedAt time.Time
}

// NewScoringJob builds a scoring job for the generation with a private copy of the facts
func NewScoringJob(gen *Generation, facts *Entity, now time.Time) *ScoringJob {
	return &ScoringJob{
		Kind:         types.JobKindScoreGeneration,
		GenerationID: gen.ID,
		Key:          gen.Key(),
		Text:         gen.OutputText,
		Facts:        facts.Clone(),
		EnqueuedAt:   now,
	}
}

// Prompt is a system instruction plus user content sent to a text generation provider
type Prompt struct {
	System string
	User   string
}
