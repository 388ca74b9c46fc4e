package notes

import (
	"strconv"
	"strings"

	"github.com/PlebRick/VerseNotes/internal/scripture"
)

// MatchingNotes selects the notes that belong to the passage named by
// currentRef, preserving input order. A note matches when its reference equals
// currentRef, when its reference or title falls inside the same chapter, or
// when its title equals currentRef. A blank currentRef matches every note.
func MatchingNotes(currentRef string, all []Note) []Note {
	current := strings.TrimSpace(currentRef)
	if current == "" {
		matched := make([]Note, len(all))
		copy(matched, all)
		return matched
	}

	prefix := chapterPrefix(current)
	matched := make([]Note, 0, len(all))
	for _, note := range all {
		if noteMatches(note, current, prefix) {
			matched = append(matched, note)
		}
	}
	return matched
}

func noteMatches(note Note, current, prefix string) bool {
	if note.VerseReference == current {
		return true
	}
	if prefix != "" && (strings.HasPrefix(note.VerseReference, prefix) || strings.HasPrefix(note.Title, prefix)) {
		return true
	}
	return note.Title == current
}

// chapterPrefix returns "<book> <chapter>:" for the chapter containing current.
// Unparseable input falls back to its first two whitespace-separated tokens.
func chapterPrefix(current string) string {
	if reference, ok := scripture.Parse(current); ok {
		return reference.Book + " " + strconv.Itoa(reference.Chapter) + ":"
	}
	fields := strings.Fields(current)
	if len(fields) < 2 {
		return ""
	}
	return fields[0] + " " + fields[1] + ":"
}
