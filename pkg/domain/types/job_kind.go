package types

// JobKind identifies what a queued job asks the worker to do
type JobKind string

const (
	JobKindScoreGeneration JobKind = "score_generation"
)

// String returns the string representation of the job kind
func (k JobKind) String() string {
	return string(k)
}
