package scripture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmptyReference indicates that the input held no reference text.
	ErrEmptyReference = errors.New("scripture: empty reference")
	// ErrUnrecognizedReference indicates that neither reference form matched.
	ErrUnrecognizedReference = errors.New("scripture: unrecognized reference")
	// ErrInvalidChapter indicates a chapter number below 1.
	ErrInvalidChapter = errors.New("scripture: chapter must be at least 1")
	// ErrInvalidVerse indicates a verse number below 1.
	ErrInvalidVerse = errors.New("scripture: verse must be at least 1")
	// ErrInvalidVerseRange indicates an end verse without a start verse or before it.
	ErrInvalidVerseRange = errors.New("scripture: invalid verse range")
)

// Reference is a structured scripture reference. A zero StartVerse means the
// whole chapter; EndVerse is only meaningful when StartVerse is set.
type Reference struct {
	Book       string `json:"book"`
	Chapter    int    `json:"chapter"`
	StartVerse int    `json:"start_verse,omitempty"`
	EndVerse   int    `json:"end_verse,omitempty"`
}

// Validate checks the numeric invariants of the reference.
func (r Reference) Validate() error {
	if strings.TrimSpace(r.Book) == "" {
		return fmt.Errorf("%w: missing book", ErrUnrecognizedReference)
	}
	if r.Chapter < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidChapter, r.Chapter)
	}
	if r.StartVerse < 0 || (r.StartVerse == 0 && r.EndVerse != 0) {
		return ErrInvalidVerseRange
	}
	if r.StartVerse > 0 && r.EndVerse != 0 && r.EndVerse < r.StartVerse {
		return fmt.Errorf("%w: %d-%d", ErrInvalidVerseRange, r.StartVerse, r.EndVerse)
	}
	return nil
}

// IsWholeChapter reports whether the reference names a chapter without verses.
func (r Reference) IsWholeChapter() bool {
	return r.StartVerse == 0
}

// ChapterReference returns the chapter-level reference containing r.
func (r Reference) ChapterReference() Reference {
	return Reference{Book: r.Book, Chapter: r.Chapter}
}

// String returns the canonical display form.
func (r Reference) String() string {
	return Format(r)
}

// Outcome tags the result of resolving reference text.
type Outcome int

const (
	// OutcomeMalformed marks input that is not a reference.
	OutcomeMalformed Outcome = iota
	// OutcomeParsed marks input that resolved to a reference.
	OutcomeParsed
)

// Result is the tagged outcome of Resolve. Reason explains a malformed result.
type Result struct {
	Outcome   Outcome
	Reference Reference
	Reason    error
}

// Parsed reports whether the input resolved to a reference.
func (r Result) Parsed() bool {
	return r.Outcome == OutcomeParsed
}

// Resolve turns user-typed text into a reference. Malformed input is an
// expected outcome and is reported in the result rather than as an error.
func Resolve(raw string) Result {
	source := strings.TrimSpace(raw)
	if source == "" {
		return malformed(ErrEmptyReference)
	}

	if reference, ok := matchVerse(source); ok {
		if reference.StartVerse < 1 || reference.EndVerse < 1 {
			return malformed(fmt.Errorf("%w: %q", ErrInvalidVerse, source))
		}
		return validated(reference)
	}
	if reference, ok := matchChapter(source); ok {
		return validated(reference)
	}
	return malformed(fmt.Errorf("%w: %q", ErrUnrecognizedReference, source))
}

// Parse is Resolve reduced to a value and a found flag.
func Parse(raw string) (Reference, bool) {
	result := Resolve(raw)
	if !result.Parsed() {
		return Reference{}, false
	}
	return result.Reference, true
}

// Format renders "Book Chapter", "Book Chapter:Verse" or
// "Book Chapter:Verse-Verse2". It is the left inverse of Parse.
func Format(ref Reference) string {
	var builder strings.Builder
	builder.WriteString(ref.Book)
	builder.WriteByte(' ')
	builder.WriteString(strconv.Itoa(ref.Chapter))
	if ref.StartVerse > 0 {
		builder.WriteByte(':')
		builder.WriteString(strconv.Itoa(ref.StartVerse))
		if ref.EndVerse > 0 && ref.EndVerse != ref.StartVerse {
			builder.WriteByte('-')
			builder.WriteString(strconv.Itoa(ref.EndVerse))
		}
	}
	return builder.String()
}

func validated(reference Reference) Result {
	if reference.Chapter < 1 {
		return malformed(fmt.Errorf("%w: %d", ErrInvalidChapter, reference.Chapter))
	}
	if err := reference.Validate(); err != nil {
		return malformed(err)
	}
	return Result{Outcome: OutcomeParsed, Reference: reference}
}

func malformed(reason error) Result {
	return Result{Outcome: OutcomeMalformed, Reason: reason}
}
