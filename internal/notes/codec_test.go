package notes

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeCollectionTreatsEmptyValuesAsEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "null", "[]"} {
		decoded, err := decodeCollection([]byte(raw))
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
		if decoded == nil || len(decoded) != 0 {
			t.Fatalf("expected empty collection for %q, got %#v", raw, decoded)
		}
	}
}

func TestDecodeCollectionRejectsMalformedContent(t *testing.T) {
	testCases := map[string]string{
		"not json":      `not json`,
		"object":        `{"id":"a"}`,
		"missing id":    `[{"title":"t"}]`,
		"duplicate ids": `[{"id":"a"},{"id":"a"}]`,
		"bad timestamp": `[{"id":"a","created_date":"yesterday"}]`,
	}
	for name, raw := range testCases {
		if _, err := decodeCollection([]byte(raw)); !errors.Is(err, ErrCorruptCollection) {
			t.Fatalf("%s: expected ErrCorruptCollection, got %v", name, err)
		}
	}
}

func TestDecodeCollectionReadsMobileExports(t *testing.T) {
	raw := `[{"id":"1700000000000abc","title":"Grace","content":"<p>x</p>","verse_reference":"Ephesians 2",` +
		`"start_verse":8,"end_verse":9,"tags":["grace"],"created_date":"2024-01-02T03:04:05.000Z",` +
		`"updated_date":"2024-01-03T03:04:05.000Z"}]`
	decoded, err := decodeCollection([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected one note, got %d", len(decoded))
	}
	note := decoded[0]
	if note.FullReference() != "Ephesians 2:8-9" || note.CreatedAt.Year() != 2024 {
		t.Fatalf("unexpected decoded note %#v", note)
	}
}

func TestEncodeCollectionWritesArray(t *testing.T) {
	encoded, err := encodeCollection(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(encoded) != "[]" {
		t.Fatalf("expected empty array, got %s", encoded)
	}
	encoded, err = encodeCollection([]Note{{ID: "a", Title: "t", Tags: []string{}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(encoded), `"verse_reference":""`) || strings.Contains(string(encoded), "start_verse") {
		t.Fatalf("unexpected encoding %s", encoded)
	}
}

func TestRepairCollectionFixesLegacyRecords(t *testing.T) {
	raw := `[{"id":"a","title":"t","content":"c","tags":null,` +
		`"created_date":"2024-01-02T00:00:00Z","updated_date":"2024-01-01T00:00:00Z"},` +
		`{"id":"b","title":"t","content":"c","tags":[" hope","hope",""],` +
		`"created_date":"2024-01-02T00:00:00Z","updated_date":"2024-01-02T00:00:00Z"}]`

	repaired, changed, err := RepairCollection([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatalf("expected legacy records to be repaired")
	}
	decoded, err := decodeCollection(repaired)
	if err != nil {
		t.Fatalf("repaired collection does not decode: %v", err)
	}
	if decoded[0].UpdatedAt.Before(decoded[0].CreatedAt) {
		t.Fatalf("expected update time clamped, got %#v", decoded[0])
	}
	if len(decoded[1].Tags) != 1 || decoded[1].Tags[0] != "hope" {
		t.Fatalf("expected tags normalized, got %#v", decoded[1].Tags)
	}

	again, changed, err := RepairCollection(repaired)
	if err != nil || changed {
		t.Fatalf("expected repair to be idempotent, got changed=%v err=%v", changed, err)
	}
	if string(again) != string(repaired) {
		t.Fatalf("expected unchanged bytes on second repair")
	}
}

func TestRepairCollectionCanonicalizesReferences(t *testing.T) {
	raw := `[{"id":"a","title":"t","content":"c","verse_reference":"1cor 13:4-7","tags":[],` +
		`"created_date":"2024-01-02T00:00:00Z","updated_date":"2024-01-02T00:00:00Z"},` +
		`{"id":"b","title":"t","content":"c","verse_reference":"Sermon notes","tags":[],` +
		`"created_date":"2024-01-02T00:00:00Z","updated_date":"2024-01-02T00:00:00Z"}]`

	repaired, changed, err := RepairCollection([]byte(raw))
	if err != nil || !changed {
		t.Fatalf("expected reference repair, got changed=%v err=%v", changed, err)
	}
	decoded, err := decodeCollection(repaired)
	if err != nil {
		t.Fatalf("repaired collection does not decode: %v", err)
	}
	if decoded[0].VerseReference != "1 Corinthians 13:4-7" {
		t.Fatalf("expected canonical reference, got %q", decoded[0].VerseReference)
	}
	if decoded[1].VerseReference != "Sermon notes" {
		t.Fatalf("expected free-form reference kept, got %q", decoded[1].VerseReference)
	}
}

func TestRepairCollectionRefusesCorruptContent(t *testing.T) {
	if _, _, err := RepairCollection([]byte(`{`)); !errors.Is(err, ErrCorruptCollection) {
		t.Fatalf("expected ErrCorruptCollection, got %v", err)
	}
}
