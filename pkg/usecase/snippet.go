package usecase

import (
	"strings"
	"unicode"
)

const ellipsis = "..."

var queryStopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "who": {}, "what": {}, "that": {},
}

type span struct {
	term       string
	start, end int
}

// spans finds lowercase letter/digit runs in text, as rune offsets
func spans(text []rune) []span {
	var out []span
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, span{term: strings.ToLower(string(text[start:i])), start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, span{term: strings.ToLower(string(text[start:])), start: start, end: len(text)})
	}
	return out
}

func queryTerms(query string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, s := range spans([]rune(query)) {
		if _, stop := queryStopWords[s.term]; stop {
			continue
		}
		if len([]rune(s.term)) >= 3 || isNumber(s.term) {
			terms[s.term] = struct{}{}
		}
	}
	return terms
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// extractSnippet returns a window of about width runes around the densest group of
// distinct query terms in blob. Without any overlap it returns the first fallback runes.
func extractSnippet(blob, query string, width, fallback int) string {
	text := []rune(strings.Join(strings.Fields(blob), " "))
	terms := queryTerms(query)
	tokens := spans(text)

	bestIdx, bestHits, bestEnd := -1, 0, 0
	for i, t := range tokens {
		if _, ok := terms[t.term]; !ok {
			continue
		}
		seen := make(map[string]struct{})
		lastEnd := t.end
		for j := i; j < len(tokens) && tokens[j].end-t.start <= width; j++ {
			if _, ok := terms[tokens[j].term]; ok {
				seen[tokens[j].term] = struct{}{}
				lastEnd = tokens[j].end
			}
		}
		if len(seen) > bestHits {
			bestIdx, bestHits, bestEnd = i, len(seen), lastEnd
		}
	}

	if bestIdx < 0 {
		return truncateRunes(string(text), fallback)
	}

	// Lead in with whatever context the matched span leaves room for, on a word boundary.
	matchStart := tokens[bestIdx].start
	lead := max(0, min(width/4, width-(bestEnd-matchStart)))
	start := matchStart - lead
	if start <= 0 {
		start = 0
	} else if sp := indexRune(text[start:matchStart], ' '); sp >= 0 {
		start += sp + 1
	} else {
		start = matchStart
	}

	end := start + width
	if end >= len(text) {
		end = len(text)
	} else if text[end] != ' ' {
		if sp := lastIndexRune(text[start:end], ' '); sp > 0 && start+sp >= bestEnd {
			end = start + sp
		}
	}

	snippet := strings.TrimSpace(string(text[start:end]))
	if start > 0 {
		snippet = ellipsis + snippet
	}
	if end < len(text) {
		snippet += ellipsis
	}
	return snippet
}

// truncateRunes cuts s to n runes and marks the cut with an ellipsis
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + ellipsis
}

func indexRune(r []rune, c rune) int {
	for i, x := range r {
		if x == c {
			return i
		}
	}
	return -1
}

func lastIndexRune(r []rune, c rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == c {
			return i
		}
	}
	return -1
}
