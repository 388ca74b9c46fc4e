package notes

import (
	"strings"
	"time"
)

// applyPatch merges patch into existing. The update time is clamped so it
// never precedes the creation time.
func applyPatch(existing Note, patch Patch, appliedAt time.Time) Note {
	merged := existing.Clone()
	if patch.Title != nil {
		merged.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		merged.Content = *patch.Content
	}
	if patch.VerseReference != nil {
		merged.VerseReference = canonicalVerseReference(*patch.VerseReference)
	}
	if patch.StartVerse != nil {
		merged.StartVerse = verseOrNil(*patch.StartVerse)
	}
	if patch.EndVerse != nil {
		merged.EndVerse = verseOrNil(*patch.EndVerse)
	}
	if patch.Tags != nil {
		merged.Tags = NormalizeTags(*patch.Tags)
	}

	merged.UpdatedAt = appliedAt
	if merged.UpdatedAt.Before(merged.CreatedAt) {
		merged.UpdatedAt = merged.CreatedAt
	}
	return merged
}

func verseOrNil(verse int) *int {
	if verse == 0 {
		return nil
	}
	return &verse
}
