package evaluator

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/domain/model"
)

// DefaultContradictionPenalty is subtracted from the factual score per contradiction
const DefaultContradictionPenalty = 0.1

// Evaluator computes the four quality scores of a generated text
type Evaluator struct {
	judge   interfaces.Judge
	penalty float64
	rubric  string
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithContradictionPenalty overrides the per-contradiction factual penalty
func WithContradictionPenalty(p float64) Option {
	return func(e *Evaluator) {
		e.penalty = p
	}
}

// WithRubric overrides the rubric sent to the judge
func WithRubric(rubric string) Option {
	return func(e *Evaluator) {
		if rubric != "" {
			e.rubric = rubric
		}
	}
}

// New creates an Evaluator backed by judge for creativity scoring
func New(judge interfaces.Judge, opts ...Option) *Evaluator {
	e := &Evaluator{
		judge:   judge,
		penalty: DefaultContradictionPenalty,
		rubric:  DefaultRubric,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores text against the fact snapshot it was generated from.
// An unparsable judge reply yields a flagged neutral creativity score; a failed judge call is an error.
func (e *Evaluator) Evaluate(ctx context.Context, text string, facts *model.Entity) (model.Scores, error) {
	if facts == nil {
		return model.Scores{}, goerr.New("facts are required for evaluation")
	}

	creativity, err := e.creativityScore(ctx, text)
	if err != nil {
		return model.Scores{}, goerr.Wrap(err, "failed to evaluate generation", goerr.V("key", facts.Key))
	}

	return model.Scores{
		Factual:      model.Scored(factualScore(text, facts, e.penalty)),
		Completeness: model.Scored(completenessScore(text, facts)),
		Creativity:   creativity,
		Relevance:    model.Scored(relevanceScore(text, facts)),
	}, nil
}
