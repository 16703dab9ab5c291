package types

import "fmt"

// GenerationStatus represents the lifecycle state of a generation.
// It only moves from INITIATED to GENERATED.
type GenerationStatus string

const (
	GenerationStatusInitiated GenerationStatus = "INITIATED"
	GenerationStatusGenerated GenerationStatus = "GENERATED"
)

// IsValid checks if the generation status is valid
func (s GenerationStatus) IsValid() bool {
	switch s {
	case GenerationStatusInitiated,
		GenerationStatusGenerated:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition exists from this status
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationStatusGenerated
}

// String returns the string representation of the generation status
func (s GenerationStatus) String() string {
	return string(s)
}

// ParseGenerationStatus parses a string into a GenerationStatus
func ParseGenerationStatus(s string) (GenerationStatus, error) {
	status := GenerationStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid generation status: %s", s)
	}
	return status, nil
}
