package evaluator

import (
	"strconv"
	"strings"
	"unicode"
)

// minTokenLen drops short tokens such as "mr" or "of" when matching names
const minTokenLen = 3

var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
}

var stopTokens = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {},
}

// tokenize lowercases s and splits it into letter/digit runs
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// significantTokens returns the tokens of s that are long enough to identify it
func significantTokens(s string) []string {
	var out []string
	for _, tok := range tokenize(s) {
		if len([]rune(tok)) < minTokenLen {
			if _, err := strconv.Atoi(tok); err != nil {
				continue
			}
		}
		if _, stop := stopTokens[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func tokenSet(tokens ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, ts := range tokens {
		for _, t := range ts {
			set[t] = struct{}{}
		}
	}
	return set
}

// indexPhrase returns every position where phrase occurs as a token sequence in tokens
func indexPhrase(tokens, phrase []string) []int {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return nil
	}
	var hits []int
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, p := range phrase {
			if tokens[i+j] != p {
				match = false
				break
			}
		}
		if match {
			hits = append(hits, i)
		}
	}
	return hits
}

func containsPhrase(tokens []string, phrase string) bool {
	return len(indexPhrase(tokens, tokenize(phrase))) > 0
}

func containsAny(tokens []string, set map[string]struct{}) bool {
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// parseNumber reads a digit token or a spelled-out number
func parseNumber(tok string) (int, bool) {
	if n, err := strconv.Atoi(tok); err == nil {
		return n, true
	}
	n, ok := numberWords[tok]
	return n, ok
}

// splitSentences breaks text on terminators followed by whitespace, and on newlines
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return sentences
}

// countMentions counts runs of name tokens in text. "Rick Sanchez" counts once.
func countMentions(tokens []string, names map[string]struct{}) int {
	mentions := 0
	inRun := false
	for _, t := range tokens {
		if _, ok := names[t]; ok {
			if !inRun {
				mentions++
			}
			inRun = true
			continue
		}
		inRun = false
	}
	return mentions
}

// labelForms returns the singular and plural forms of the last word of a count label
func labelForms(label string) []string {
	toks := tokenize(label)
	if len(toks) == 0 {
		return nil
	}
	last := toks[len(toks)-1]
	if strings.HasSuffix(last, "s") {
		return []string{last, strings.TrimSuffix(last, "s")}
	}
	return []string{last, last + "s"}
}
