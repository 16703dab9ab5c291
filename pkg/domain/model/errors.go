package model

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by repositories, services and usecases.
// Wrap these with goerr and test with errors.Is.
var (
	// ErrNotFound is returned when an entity, generation, note or index entry does not exist
	ErrNotFound = errors.New("not found")

	// ErrUpstreamProvider is returned when a text generation, judge, embedding or catalog call fails
	ErrUpstreamProvider = errors.New("upstream provider error")

	// ErrMalformedJudgeResponse is returned when the judge reply holds no number.
	// The evaluator recovers from it locally and never surfaces it.
	ErrMalformedJudgeResponse = errors.New("malformed judge response")

	// ErrIndexDimensionMismatch is returned when an embedding length differs from the stored index
	ErrIndexDimensionMismatch = errors.New("index dimension mismatch")

	// ErrGenerationFinalized is returned when scores are written to a generation that is already GENERATED
	ErrGenerationFinalized = errors.New("generation already finalized")

	// ErrGenerationSuperseded is returned when scores are written to a generation that is no longer the live one
	ErrGenerationSuperseded = errors.New("generation superseded")

	// ErrPendingScore is returned when a scores update still contains a pending score
	ErrPendingScore = errors.New("score is still pending")
)

// UpstreamError marks err as an upstream provider failure while keeping it in the chain
func UpstreamError(err error) error {
	return fmt.Errorf("%w: %w", ErrUpstreamProvider, err)
}
