package notes

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PlebRick/VerseNotes/internal/scripture"
)

const (
	// DefaultListLimit caps List when no limit is requested.
	DefaultListLimit = 100
	// NoLimit makes List return every note.
	NoLimit = -1
	// DefaultSort orders notes newest first.
	DefaultSort = "-created_date"
)

var (
	// ErrNoteNotFound indicates that no note carries the requested identifier.
	ErrNoteNotFound = errors.New("notes: note not found")
	// ErrInvalidNote indicates that a draft or merged note failed validation.
	ErrInvalidNote = errors.New("notes: invalid note")
	// ErrInvalidSortKey indicates an unsupported List sort key.
	ErrInvalidSortKey = errors.New("notes: invalid sort key")
	// ErrCorruptCollection indicates stored bytes that do not decode to a note collection.
	ErrCorruptCollection = errors.New("notes: corrupt note collection")
	// ErrStorage marks failures of the underlying key/value storage.
	ErrStorage = errors.New("notes: storage failure")
)

// Note is a persisted study note. Content is HTML produced by a rich-text editor.
type Note struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	VerseReference string    `json:"verse_reference"`
	StartVerse     *int      `json:"start_verse,omitempty"`
	EndVerse       *int      `json:"end_verse,omitempty"`
	Tags           []string  `json:"tags"`
	CreatedAt      time.Time `json:"created_date"`
	UpdatedAt      time.Time `json:"updated_date"`
}

// Clone returns a deep copy so callers never share slices or pointers with the store.
func (n Note) Clone() Note {
	clone := n
	clone.StartVerse = cloneInt(n.StartVerse)
	clone.EndVerse = cloneInt(n.EndVerse)
	clone.Tags = append(make([]string, 0, len(n.Tags)), n.Tags...)
	return clone
}

// FullReference appends the verse range to the note's reference, e.g. "John 3:16-18".
func (n Note) FullReference() string {
	if n.StartVerse == nil {
		return n.VerseReference
	}
	var builder strings.Builder
	builder.WriteString(n.VerseReference)
	builder.WriteByte(':')
	builder.WriteString(strconv.Itoa(*n.StartVerse))
	if n.EndVerse != nil && *n.EndVerse != *n.StartVerse {
		builder.WriteByte('-')
		builder.WriteString(strconv.Itoa(*n.EndVerse))
	}
	return builder.String()
}

func (n Note) draft() Draft {
	return Draft{
		Title:          n.Title,
		Content:        n.Content,
		VerseReference: n.VerseReference,
		StartVerse:     n.StartVerse,
		EndVerse:       n.EndVerse,
		Tags:           n.Tags,
	}
}

// Draft carries the caller-supplied fields of a new note.
type Draft struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	VerseReference string   `json:"verse_reference"`
	StartVerse     *int     `json:"start_verse,omitempty"`
	EndVerse       *int     `json:"end_verse,omitempty"`
	Tags           []string `json:"tags"`
}

func (d Draft) normalized() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.VerseReference = canonicalVerseReference(d.VerseReference)
	d.StartVerse = cloneInt(d.StartVerse)
	d.EndVerse = cloneInt(d.EndVerse)
	d.Tags = NormalizeTags(d.Tags)
	return d
}

// Patch is a partial update. Nil fields are left untouched; a zero verse clears it.
// Identifier and creation time are not patchable.
type Patch struct {
	Title          *string   `json:"title,omitempty"`
	Content        *string   `json:"content,omitempty"`
	VerseReference *string   `json:"verse_reference,omitempty"`
	StartVerse     *int      `json:"start_verse,omitempty"`
	EndVerse       *int      `json:"end_verse,omitempty"`
	Tags           *[]string `json:"tags,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.VerseReference == nil &&
		p.StartVerse == nil && p.EndVerse == nil && p.Tags == nil
}

// ListOptions controls ordering and size of List results.
type ListOptions struct {
	// Sort is a field name, optionally prefixed with "-" for descending order.
	Sort string
	// Limit caps the result. Zero means DefaultListLimit, NoLimit means all.
	Limit int
}

type sortField string

const (
	sortByCreated        sortField = "created_date"
	sortByUpdated        sortField = "updated_date"
	sortByTitle          sortField = "title"
	sortByVerseReference sortField = "verse_reference"
)

var sortFieldAliases = map[string]sortField{
	"created_date":    sortByCreated,
	"createdAt":       sortByCreated,
	"updated_date":    sortByUpdated,
	"updatedAt":       sortByUpdated,
	"title":           sortByTitle,
	"verse_reference": sortByVerseReference,
}

type sortOrder struct {
	field      sortField
	descending bool
}

func parseSort(raw string) (sortOrder, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		key = DefaultSort
	}
	descending := strings.HasPrefix(key, "-")
	field, ok := sortFieldAliases[strings.TrimPrefix(key, "-")]
	if !ok {
		return sortOrder{}, fmt.Errorf("%w: %q", ErrInvalidSortKey, raw)
	}
	return sortOrder{field: field, descending: descending}, nil
}

func (o ListOptions) limit() int {
	switch {
	case o.Limit == 0:
		return DefaultListLimit
	case o.Limit < 0:
		return -1
	default:
		return o.Limit
	}
}

// canonicalVerseReference rewrites a resolvable reference into its canonical
// form. Text that does not resolve is kept trimmed but otherwise as typed.
func canonicalVerseReference(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if reference, ok := scripture.Parse(trimmed); ok {
		return scripture.Format(reference)
	}
	return trimmed
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
