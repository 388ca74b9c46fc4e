package notes

import (
	"bytes"
	"fmt"

	"github.com/bytedance/sonic"
)

var collectionCodec = sonic.ConfigStd

// decodeCollection turns the stored value into notes. An empty value is an
// empty collection; anything else must be a JSON array of well-formed notes.
func decodeCollection(raw []byte) ([]Note, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []Note{}, nil
	}
	var decoded []Note
	if err := collectionCodec.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptCollection, err)
	}
	seen := make(map[string]struct{}, len(decoded))
	for index := range decoded {
		id := decoded[index].ID
		if id == "" {
			return nil, fmt.Errorf("%w: note at index %d has no id", ErrCorruptCollection, index)
		}
		if _, duplicate := seen[id]; duplicate {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrCorruptCollection, id)
		}
		seen[id] = struct{}{}
		if decoded[index].Tags == nil {
			decoded[index].Tags = []string{}
		}
	}
	if decoded == nil {
		decoded = []Note{}
	}
	return decoded, nil
}

func encodeCollection(notes []Note) ([]byte, error) {
	if notes == nil {
		notes = []Note{}
	}
	return collectionCodec.Marshal(notes)
}

// RepairCollection rewrites a stored collection so it satisfies the current
// note invariants: update times never precede creation times, resolvable
// references are canonical and tags are trimmed, unique and never null. It
// reports whether anything changed.
func RepairCollection(raw []byte) ([]byte, bool, error) {
	notes, err := decodeCollection(raw)
	if err != nil {
		return nil, false, err
	}
	changed := false
	for index := range notes {
		note := &notes[index]
		if note.UpdatedAt.Before(note.CreatedAt) {
			note.UpdatedAt = note.CreatedAt
			changed = true
		}
		if reference := canonicalVerseReference(note.VerseReference); reference != note.VerseReference {
			note.VerseReference = reference
			changed = true
		}
		normalized := NormalizeTags(note.Tags)
		if !equalTags(normalized, note.Tags) {
			note.Tags = normalized
			changed = true
		}
	}
	if !changed {
		return raw, false, nil
	}
	repaired, err := encodeCollection(notes)
	if err != nil {
		return nil, false, err
	}
	return repaired, true, nil
}

func equalTags(left, right []string) bool {
	if len(left) != len(right) {
		return false
	}
	for index := range left {
		if left[index] != right[index] {
			return false
		}
	}
	return true
}
