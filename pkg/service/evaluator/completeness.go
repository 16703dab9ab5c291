package evaluator

import (
	"strconv"

	"github.com/secmon-lab/citadel/pkg/domain/model"
)

// completenessScore is the fraction of fact slots (name, primary attribute,
// key relationship, notable count) the text references. Slots the entity has
// no data for are not counted.
func completenessScore(text string, facts *model.Entity) float64 {
	tokens := tokenize(text)
	applicable, present := 0, 0

	check := func(ok bool) {
		applicable++
		if ok {
			present++
		}
	}

	if names := tokenSet(significantTokens(facts.Name)); len(names) > 0 {
		check(countMentions(tokens, names) > 0)
	}

	for _, a := range facts.Attributes {
		if a.Value == "" {
			continue
		}
		check(containsPhrase(tokens, a.Value))
		break
	}

	for _, r := range facts.Relationships {
		if len(r.Values) == 0 {
			continue
		}
		var valueTokens [][]string
		for _, v := range r.Values {
			valueTokens = append(valueTokens, significantTokens(v))
		}
		check(containsAny(tokens, tokenSet(valueTokens...)))
		break
	}

	if len(facts.Counts) > 0 {
		check(mentionsNumber(tokens, facts.Counts[0].Value))
	}

	if applicable == 0 {
		return 0
	}
	return float64(present) / float64(applicable)
}

func mentionsNumber(tokens []string, n int) bool {
	digits := strconv.Itoa(n)
	for _, t := range tokens {
		if t == digits {
			return true
		}
		if v, ok := numberWords[t]; ok && v == n {
			return true
		}
	}
	return false
}
