package notes

import (
	"testing"
	"time"
)

func TestApplyPatchMergesOnlyProvidedFields(t *testing.T) {
	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	existing := Note{
		ID:             "note-1",
		Title:          "old",
		Content:        "body",
		VerseReference: "John 3",
		StartVerse:     intPtr(16),
		Tags:           []string{"love"},
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	tags := []string{"grace", " grace "}
	merged := applyPatch(existing, Patch{Title: stringPtr("new"), Tags: &tags}, created.Add(time.Hour))

	if merged.ID != "note-1" || !merged.CreatedAt.Equal(created) {
		t.Fatalf("expected identity preserved, got %#v", merged)
	}
	if merged.Title != "new" || merged.Content != "body" || *merged.StartVerse != 16 {
		t.Fatalf("unexpected merge %#v", merged)
	}
	if len(merged.Tags) != 1 || merged.Tags[0] != "grace" {
		t.Fatalf("expected normalized tags, got %#v", merged.Tags)
	}
	if existing.Tags[0] != "love" || existing.Title != "old" {
		t.Fatalf("expected existing note untouched")
	}
}

func TestApplyPatchClampsUpdateTime(t *testing.T) {
	created := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	existing := Note{ID: "note-1", CreatedAt: created, UpdatedAt: created}
	merged := applyPatch(existing, Patch{}, created.Add(-time.Hour))
	if !merged.UpdatedAt.Equal(created) {
		t.Fatalf("expected update time clamped to creation, got %v", merged.UpdatedAt)
	}
}

func TestPatchIsEmpty(t *testing.T) {
	if !(Patch{}).IsEmpty() {
		t.Fatalf("expected zero patch to be empty")
	}
	if (Patch{EndVerse: intPtr(0)}).IsEmpty() {
		t.Fatalf("expected clearing patch to be non-empty")
	}
}

func TestApplyPatchCanonicalizesTitleAndReference(t *testing.T) {
	existing := Note{ID: "note-1", Title: "old", VerseReference: "John 3"}
	merged := applyPatch(existing, Patch{Title: stringPtr("  new "), VerseReference: stringPtr("jn 3:16")}, time.Now())
	if merged.Title != "new" || merged.VerseReference != "John 3:16" {
		t.Fatalf("unexpected merge %#v", merged)
	}
}
