package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxKeyLength = 190

var (
	errMissingDatabase = errors.New("database handle is required")
	// ErrInvalidKey indicates an empty or oversized storage key.
	ErrInvalidKey = errors.New("database: invalid storage key")
)

// KeyValueEntry is one persisted value addressed by key.
type KeyValueEntry struct {
	Key              string `gorm:"column:entry_key;primaryKey;size:190;not null"`
	Value            []byte `gorm:"column:entry_value;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (KeyValueEntry) TableName() string {
	return "kv_entries"
}

// KeyValueStore persists opaque byte values in SQLite.
type KeyValueStore struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewKeyValueStore wraps a migrated database handle.
func NewKeyValueStore(db *gorm.DB) (*KeyValueStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &KeyValueStore{db: db, clock: time.Now}, nil
}

// Get returns the value stored under key and whether it exists.
func (s *KeyValueStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	return readEntry(s.db.WithContext(ctx), key)
}

// Set stores value under key, replacing any previous value.
func (s *KeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return writeEntry(s.db.WithContext(ctx), key, value, s.clock().UTC().Unix())
}

// Delete removes key. Removing an absent key is not an error.
func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&KeyValueEntry{}).Error
}

func readEntry(db *gorm.DB, key string) ([]byte, bool, error) {
	var entry KeyValueEntry
	err := db.Where("entry_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry.Value, true, nil
}

func writeEntry(db *gorm.DB, key string, value []byte, updatedAtSeconds int64) error {
	entry := KeyValueEntry{
		Key:              key,
		Value:            append([]byte{}, value...),
		UpdatedAtSeconds: updatedAtSeconds,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at_s"}),
	}).Create(&entry).Error
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidKey, maxKeyLength)
	}
	return nil
}
