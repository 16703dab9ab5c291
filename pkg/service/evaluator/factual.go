package evaluator

import (
	"strings"

	"github.com/secmon-lab/citadel/pkg/domain/model"
)

// cueWindow is how many tokens after a relationship cue may name the related thing
const cueWindow = 6

// countContradictions detects statements in text that disagree with the facts
func countContradictions(text string, facts *model.Entity) int {
	tokens := tokenize(text)
	contradictions := 0

	if names := tokenSet(significantTokens(facts.Name)); len(names) > 0 && countMentions(tokens, names) == 0 {
		contradictions++
	}

	for _, c := range facts.Counts {
		contradictions += countMismatches(tokens, c)
	}

	for _, a := range facts.Attributes {
		if attributeContradicted(tokens, a) {
			contradictions++
		}
	}

	for _, r := range facts.Relationships {
		contradictions += relationshipMismatches(tokens, r)
	}

	return contradictions
}

// countMismatches finds "<number> <label>" where the number differs from the fact
func countMismatches(tokens []string, c model.Count) int {
	forms := tokenSet(labelForms(c.Label))
	mismatches := 0
	for i := 0; i+1 < len(tokens); i++ {
		if _, ok := forms[tokens[i+1]]; !ok {
			continue
		}
		if n, ok := parseNumber(tokens[i]); ok && n != c.Value {
			mismatches++
		}
	}
	return mismatches
}

// attributeContradicted reports whether text asserts another value of a closed vocabulary
// while never stating the true one
func attributeContradicted(tokens []string, a model.Attribute) bool {
	if len(a.Alternatives) == 0 || a.Value == "" {
		return false
	}
	if containsPhrase(tokens, a.Value) {
		return false
	}
	for _, alt := range a.Alternatives {
		if strings.EqualFold(alt, a.Value) {
			continue
		}
		if containsPhrase(tokens, alt) {
			return true
		}
	}
	return false
}

// relationshipMismatches counts cue phrases not followed by any related value
func relationshipMismatches(tokens []string, r model.Relationship) int {
	if len(r.Values) == 0 {
		return 0
	}
	var valueTokens [][]string
	for _, v := range r.Values {
		valueTokens = append(valueTokens, significantTokens(v))
	}
	related := tokenSet(valueTokens...)
	if len(related) == 0 {
		return 0
	}

	mismatches := 0
	for _, cue := range r.Cues {
		cueTokens := tokenize(cue)
		for _, pos := range indexPhrase(tokens, cueTokens) {
			start := pos + len(cueTokens)
			end := min(start+cueWindow, len(tokens))
			if !containsAny(tokens[start:end], related) {
				mismatches++
			}
		}
	}
	return mismatches
}

// factualScore starts at 1 and loses penalty per contradiction, floored at 0
func factualScore(text string, facts *model.Entity, penalty float64) float64 {
	return model.Clamp01(1 - float64(countContradictions(text, facts))*penalty)
}
