package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/secmon-lab/citadel/pkg/domain/types"
)

// EntityKey identifies an entity across generations, notes and the search index
type EntityKey struct {
	Type types.EntityType
	ID   int64
}

// String returns "type:id"
func (k EntityKey) String() string {
	return k.Type.String() + ":" + strconv.FormatInt(k.ID, 10)
}

// Less orders keys by type, then id
func (k EntityKey) Less(other EntityKey) bool {
	if k.Type != other.Type {
		return k.Type < other.Type
	}
	return k.ID < other.ID
}

// Validate checks the entity type and id
func (k EntityKey) Validate() error {
	if !k.Type.IsValid() {
		return fmt.Errorf("invalid entity type: %q", k.Type)
	}
	if k.ID <= 0 {
		return fmt.Errorf("invalid entity id: %d", k.ID)
	}
	return nil
}

// Attribute is a single canonical fact such as Status or Dimension.
// Alternatives lists the closed vocabulary the value is drawn from, if any.
type Attribute struct {
	Key          string
	Value        string
	Alternatives []string
}

// Relationship links the entity to other named things, such as Origin or Residents.
// Cues are phrases that, when used in a text, must be followed by one of Values.
type Relationship struct {
	Label  string
	Values []string
	Cues   []string
}

// Count is a notable number about the entity, such as the number of episodes
type Count struct {
	Label string
	Value int
}

// Entity is the canonical fact snapshot of a character, location or episode
type Entity struct {
	Key           EntityKey
	Name          string
	Attributes    []Attribute
	Relationships []Relationship
	Counts        []Count
}

// Clone returns a deep copy so a snapshot can outlive later catalog reads
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := &Entity{
		Key:           e.Key,
		Name:          e.Name,
		Attributes:    make([]Attribute, len(e.Attributes)),
		Relationships: make([]Relationship, len(e.Relationships)),
		Counts:        append([]Count(nil), e.Counts...),
	}
	for i, a := range e.Attributes {
		a.Alternatives = append([]string(nil), a.Alternatives...)
		c.Attributes[i] = a
	}
	for i, r := range e.Relationships {
		r.Values = append([]string(nil), r.Values...)
		r.Cues = append([]string(nil), r.Cues...)
		c.Relationships[i] = r
	}
	return c
}

// CanonicalText renders the facts as lines, name first
func (e *Entity) CanonicalText() string {
	var b strings.Builder
	b.WriteString(e.Name)
	for _, a := range e.Attributes {
		if a.Value == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", a.Key, a.Value)
	}
	for _, r := range e.Relationships {
		if len(r.Values) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", r.Label, strings.Join(r.Values, ", "))
	}
	for _, c := range e.Counts {
		fmt.Fprintf(&b, "\n%s: %d", c.Label, c.Value)
	}
	return b.String()
}
