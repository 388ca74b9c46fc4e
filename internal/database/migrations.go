package database

import (
	"errors"
	"time"

	"github.com/PlebRick/VerseNotes/internal/notes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRepairNoteCollection = "2024-03-01_repair_note_collection"

// errMigrationDeferred leaves a migration unrecorded so it runs again on the next start.
var errMigrationDeferred = errors.New("migration deferred")

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func noteMigrations(notesKey string) []migrationDefinition {
	return []migrationDefinition{
		{name: migrationRepairNoteCollection, apply: repairNoteCollection(notesKey)},
	}
}

func applyMigrations(db *gorm.DB, migrations []migrationDefinition, logger *zap.Logger) error {
	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if errors.Is(err, errMigrationDeferred) {
			if logger != nil {
				logger.Warn("database migration deferred", zap.String("migration", migration.name), zap.Error(err))
			}
			continue
		}
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// repairNoteCollection rewrites records left by older clients. A collection
// that cannot be decoded is left untouched for the note store to report.
func repairNoteCollection(notesKey string) func(*gorm.DB) error {
	return func(tx *gorm.DB) error {
		raw, found, err := readEntry(tx, notesKey)
		if err != nil || !found {
			return err
		}
		repaired, changed, err := notes.RepairCollection(raw)
		if errors.Is(err, notes.ErrCorruptCollection) {
			return errors.Join(errMigrationDeferred, err)
		}
		if err != nil || !changed {
			return err
		}
		return writeEntry(tx, notesKey, repaired, time.Now().UTC().Unix())
	}
}
