package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/usecase"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	labelColor  = color.New(color.FgHiBlack)
	warnColor   = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed)
)

func printGeneration(w io.Writer, gen *model.Generation) {
	_, _ = headerColor.Fprintf(w, "%s  %s\n", gen.Key(), gen.Status)
	_, _ = labelColor.Fprintf(w, "id: %s  updated: %s\n", gen.ID, gen.UpdatedAt.Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintln(w, gen.OutputText)

	scores := []struct {
		label string
		score model.Score
	}{
		{"factual", gen.Scores.Factual},
		{"completeness", gen.Scores.Completeness},
		{"creativity", gen.Scores.Creativity},
		{"relevance", gen.Scores.Relevance},
	}
	for _, s := range scores {
		_, _ = labelColor.Fprintf(w, "  %-13s", s.label)
		if s.score.IsFallback() {
			_, _ = warnColor.Fprintln(w, s.score.String())
		} else {
			_, _ = fmt.Fprintln(w, s.score.String())
		}
	}
}

func printResults(w io.Writer, results []*model.SearchResult) {
	if len(results) == 0 {
		_, _ = warnColor.Fprintln(w, "no results")
		return
	}
	for i, r := range results {
		_, _ = headerColor.Fprintf(w, "%d. %s", i+1, r.Name)
		_, _ = labelColor.Fprintf(w, "  (%s, %.3f)\n", r.Key(), r.Similarity)
		_, _ = fmt.Fprintf(w, "   %s\n", r.Snippet)
	}
}

func printNotes(w io.Writer, notes []*model.Note) {
	if len(notes) == 0 {
		_, _ = warnColor.Fprintln(w, "no notes")
		return
	}
	for _, n := range notes {
		_, _ = labelColor.Fprintf(w, "%s  %s\n", n.ID, n.CreatedAt.Format("2006-01-02 15:04:05"))
		_, _ = fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(n.Text, "\n", "\n  "))
	}
}

func printFailures(w io.Writer, failures []usecase.RebuildFailure) {
	for _, f := range failures {
		_, _ = errorColor.Fprintf(w, "failed %s: %v\n", f.Key, f.Err)
	}
}
