package database

import (
	"context"
	"strings"
	"testing"

	"github.com/PlebRick/VerseNotes/internal/notes"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const legacyCollection = `[{"id":"a","title":"t","content":"c","verse_reference":"jn 3","tags":[" hope","hope"],` +
	`"created_date":"2024-01-02T00:00:00Z","updated_date":"2024-01-01T00:00:00Z"}]`

func TestApplyMigrationsRepairsNoteCollection(t *testing.T) {
	database := newMemoryDatabase(t)
	store, err := NewKeyValueStore(database)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	ctx := context.Background()
	if err := store.Set(ctx, "bible_notes", []byte(legacyCollection)); err != nil {
		t.Fatalf("failed to seed collection: %v", err)
	}

	if err := applyMigrations(database, noteMigrations("bible_notes"), zap.NewNop()); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	service, err := notes.Open(ctx, notes.ServiceConfig{Storage: store, IDProvider: notes.NewUUIDProvider()})
	if err != nil {
		t.Fatalf("failed to open note service: %v", err)
	}
	stored, err := service.Get(ctx, "a")
	if err != nil {
		t.Fatalf("failed to load repaired note: %v", err)
	}
	if stored.UpdatedAt.Before(stored.CreatedAt) {
		t.Fatalf("expected update time to be clamped")
	}
	if len(stored.Tags) != 1 || stored.Tags[0] != "hope" {
		t.Fatalf("expected tags to be normalized, got %#v", stored.Tags)
	}
	if stored.VerseReference != "John 3" {
		t.Fatalf("expected reference to be canonicalized, got %q", stored.VerseReference)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationRepairNoteCollection).Take(&record).Error; err != nil {
		t.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		t.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsRunsOnce(t *testing.T) {
	database := newMemoryDatabase(t)
	store, err := NewKeyValueStore(database)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	ctx := context.Background()

	if err := applyMigrations(database, noteMigrations("bible_notes"), zap.NewNop()); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	if err := store.Set(ctx, "bible_notes", []byte(legacyCollection)); err != nil {
		t.Fatalf("failed to seed collection: %v", err)
	}
	if err := applyMigrations(database, noteMigrations("bible_notes"), zap.NewNop()); err != nil {
		t.Fatalf("failed to re-run migrations: %v", err)
	}

	value, _, err := store.Get(ctx, "bible_notes")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if string(value) != legacyCollection {
		t.Fatalf("expected recorded migration to be skipped")
	}
}

func TestApplyMigrationsDefersCorruptCollection(t *testing.T) {
	database := newMemoryDatabase(t)
	store, err := NewKeyValueStore(database)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	ctx := context.Background()
	if err := store.Set(ctx, "bible_notes", []byte(`{broken`)); err != nil {
		t.Fatalf("failed to seed collection: %v", err)
	}

	core, logs := observer.New(zapcore.WarnLevel)
	if err := applyMigrations(database, noteMigrations("bible_notes"), zap.New(core)); err != nil {
		t.Fatalf("expected corrupt collection to defer the migration, got %v", err)
	}
	if logs.FilterMessage("database migration deferred").Len() != 1 {
		t.Fatalf("expected deferral to be logged")
	}

	var count int64
	if err := database.Model(&migrationRecord{}).Where("name = ?", migrationRepairNoteCollection).Count(&count).Error; err != nil {
		t.Fatalf("failed to count migration records: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected deferred migration to stay unrecorded")
	}
	value, _, _ := store.Get(ctx, "bible_notes")
	if !strings.HasPrefix(string(value), "{broken") {
		t.Fatalf("expected corrupt bytes left in place, got %q", value)
	}
}
