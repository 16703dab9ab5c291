package evaluator

import (
	"github.com/secmon-lab/citadel/pkg/domain/model"
)

// wordsPerMention is the mention density that earns a full density score
const wordsPerMention = 40

var referringPronouns = map[string]struct{}{
	"he": {}, "him": {}, "his": {}, "she": {}, "her": {}, "hers": {},
	"they": {}, "them": {}, "their": {}, "its": {},
}

// relevanceScore multiplies name-mention density by the fraction of on-topic sentences
func relevanceScore(text string, facts *model.Entity) float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	names := tokenSet(significantTokens(facts.Name))
	density := float64(countMentions(tokens, names)) * wordsPerMention / float64(len(tokens))

	nearby := contextTokens(facts)
	sentences := splitSentences(text)
	onTopic := 0
	for _, s := range sentences {
		st := tokenize(s)
		if containsAny(st, names) || containsAny(st, nearby) || containsAny(st, referringPronouns) {
			onTopic++
		}
	}
	if len(sentences) == 0 {
		return 0
	}

	return model.Clamp01(min(density, 1) * float64(onTopic) / float64(len(sentences)))
}

// contextTokens are tokens of attribute and relationship values: the entity's immediate context
func contextTokens(facts *model.Entity) map[string]struct{} {
	var all [][]string
	for _, a := range facts.Attributes {
		all = append(all, significantTokens(a.Value))
	}
	for _, r := range facts.Relationships {
		for _, v := range r.Values {
			all = append(all, significantTokens(v))
		}
	}
	set := tokenSet(all...)
	// "unknown" and similar placeholder values say nothing about the entity
	delete(set, "unknown")
	return set
}
