package model

import (
	"strings"
	"time"

	"github.com/secmon-lab/citadel/pkg/domain/types"
)

// EmbeddingDimension is the default dimension of the embedding vector.
// Gemini text-embedding-004 uses 768 dimensions.
const EmbeddingDimension = 768

const (
	blobSegmentSeparator = "\n\n"
	notesHeading         = "Notes:"
	summaryHeading       = "Summary:"
)

// SearchIndexEntry is the text blob and embedding backing semantic search for one entity.
// The first line of TextBlob is always the entity's display name.
type SearchIndexEntry struct {
	EntityType types.EntityType
	EntityID   int64
	TextBlob   string
	Embedding  []float32
	UpdatedAt  time.Time
}

// Key returns the entity key of the entry
func (e *SearchIndexEntry) Key() EntityKey {
	return EntityKey{Type: e.EntityType, ID: e.EntityID}
}

// Name returns the display name held by the first segment of the blob
func (e *SearchIndexEntry) Name() string {
	return BlobName(e.TextBlob)
}

// Clone returns a deep copy of the entry
func (e *SearchIndexEntry) Clone() *SearchIndexEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.Embedding = append([]float32(nil), e.Embedding...)
	return &c
}

// ComposeTextBlob builds the blob from the canonical facts, the notes in the given
// order and an optional summary. Identical inputs always give an identical blob.
func ComposeTextBlob(entity *Entity, notes []string, summary string) string {
	segments := []string{entity.CanonicalText()}

	var kept []string
	for _, n := range notes {
		if n = strings.TrimSpace(n); n != "" {
			kept = append(kept, n)
		}
	}
	if len(kept) > 0 {
		var b strings.Builder
		b.WriteString(notesHeading)
		for _, n := range kept {
			b.WriteString("\n- ")
			b.WriteString(n)
		}
		segments = append(segments, b.String())
	}

	if summary = strings.TrimSpace(summary); summary != "" {
		segments = append(segments, summaryHeading+"\n"+summary)
	}

	return strings.Join(segments, blobSegmentSeparator)
}

// BlobName extracts the display name from a text blob
func BlobName(blob string) string {
	if i := strings.IndexByte(blob, '\n'); i >= 0 {
		return strings.TrimSpace(blob[:i])
	}
	return strings.TrimSpace(blob)
}

// SearchResult is one ranked hit of a semantic search
type SearchResult struct {
	EntityType types.EntityType
	EntityID   int64
	Name       string
	Snippet    string
	Similarity float64
}

// Key returns the entity key of the result
func (r *SearchResult) Key() EntityKey {
	return EntityKey{Type: r.EntityType, ID: r.EntityID}
}
