package model

import "fmt"

// Score is either pending (not evaluated yet) or scored with a value in [0,1].
// The zero value is pending.
type Score struct {
	value    float64
	scored   bool
	fallback bool
}

// PendingScore returns a score that has not been evaluated yet
func PendingScore() Score {
	return Score{}
}

// Scored returns an evaluated score. The value is clamped to [0,1].
func Scored(v float64) Score {
	return Score{value: Clamp01(v), scored: true}
}

// FallbackScore returns an evaluated score that carries a neutral default
// because the real judgment could not be obtained.
func FallbackScore(v float64) Score {
	return Score{value: Clamp01(v), scored: true, fallback: true}
}

// IsPending reports whether the score has not been evaluated yet
func (s Score) IsPending() bool {
	return !s.scored
}

// Value returns the score value and whether it has been evaluated
func (s Score) Value() (float64, bool) {
	return s.value, s.scored
}

// IsFallback reports whether the value is a neutral default rather than a real judgment
func (s Score) IsFallback() bool {
	return s.fallback
}

// Ptr returns the value as a pointer, nil when pending. Used by storage backends.
func (s Score) Ptr() *float64 {
	if !s.scored {
		return nil
	}
	v := s.value
	return &v
}

// ScoreFromPtr is the inverse of Ptr
func ScoreFromPtr(v *float64, fallback bool) Score {
	if v == nil {
		return PendingScore()
	}
	if fallback {
		return FallbackScore(*v)
	}
	return Scored(*v)
}

func (s Score) String() string {
	if !s.scored {
		return "pending"
	}
	if s.fallback {
		return fmt.Sprintf("%.2f (fallback)", s.value)
	}
	return fmt.Sprintf("%.2f", s.value)
}

// Scores holds the four quality scores of a generation
type Scores struct {
	Factual      Score
	Completeness Score
	Creativity   Score
	Relevance    Score
}

// PendingScores returns scores with all four values pending
func PendingScores() Scores {
	return Scores{}
}

// All returns the scores in a fixed order: factual, completeness, creativity, relevance
func (s Scores) All() []Score {
	return []Score{s.Factual, s.Completeness, s.Creativity, s.Relevance}
}

// IsPending reports whether every score is pending
func (s Scores) IsPending() bool {
	for _, sc := range s.All() {
		if !sc.IsPending() {
			return false
		}
	}
	return true
}

// IsComplete reports whether every score has been evaluated
func (s Scores) IsComplete() bool {
	for _, sc := range s.All() {
		if sc.IsPending() {
			return false
		}
	}
	return true
}

// Clamp01 clamps v to [0,1]
func Clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
