package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/citadel/pkg/domain/types"
)

// NoteID is a UUID-based identifier for Note
type NoteID string

// NewNoteID generates a new UUID v4 NoteID
func NewNoteID() NoteID {
	return NoteID(uuid.New().String())
}

// String returns the string representation of the note ID
func (id NoteID) String() string {
	return string(id)
}

// Note is a free-text annotation a user attached to an entity
type Note struct {
	ID         NoteID
	EntityType types.EntityType
	EntityID   int64
	Text       string
	CreatedAt  time.Time
}

// Key returns the entity key of the note
func (n *Note) Key() EntityKey {
	return EntityKey{Type: n.EntityType, ID: n.EntityID}
}

// SortNotesNewestFirst orders notes by CreatedAt descending, ID descending on ties
func SortNotesNewestFirst(notes []*Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.After(notes[j].CreatedAt)
		}
		return notes[i].ID > notes[j].ID
	})
}

// SortNotesChronological orders notes by CreatedAt ascending, ID ascending on ties
func SortNotesChronological(notes []*Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.Before(notes[j].CreatedAt)
		}
		return notes[i].ID < notes[j].ID
	})
}
