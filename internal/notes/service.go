package notes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultStorageKey is the key under which the note collection is stored.
const DefaultStorageKey = "bible_notes"

const maxIDAttempts = 8

var (
	errMissingStorage    = errors.New("storage is required")
	errMissingIDProvider = errors.New("id provider is required")
	errIDExhausted       = errors.New("could not draw an unused note id")
	noOpLogger           = zap.NewNop()
)

// KeyValueStore is the byte-oriented persistent storage backing the note collection.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ServiceError carries a stable "<operation>.<reason>" code alongside its cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "notes.service.new"
	opLoad       = "notes.load"
	opList       = "notes.list"
	opGet        = "notes.get"
	opCreate     = "notes.create"
	opUpdate     = "notes.update"
	opDelete     = "notes.delete"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IsStorageError reports whether err stems from the key/value storage,
// including a stored collection that could not be decoded.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorage) || errors.Is(err, ErrCorruptCollection)
}

type ServiceConfig struct {
	Storage    KeyValueStore
	StorageKey string
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service is the note repository. It keeps the decoded collection in memory
// and writes the whole collection back on every mutation.
type Service struct {
	mu         sync.RWMutex
	storage    KeyValueStore
	storageKey string
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger

	loaded bool
	notes  []Note
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Storage == nil {
		return nil, newServiceError(opServiceNew, "missing_storage", errMissingStorage)
	}

	storageKey := strings.TrimSpace(cfg.StorageKey)
	if storageKey == "" {
		storageKey = DefaultStorageKey
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	idProvider := cfg.IDProvider
	if idProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		storage:    cfg.Storage,
		storageKey: storageKey,
		clock:      clock,
		idProvider: idProvider,
		logger:     logger,
	}, nil
}

// Open constructs a Service and loads the stored collection.
func Open(ctx context.Context, cfg ServiceConfig) (*Service, error) {
	service, err := NewService(cfg)
	if err != nil {
		return nil, err
	}
	if err := service.Load(ctx); err != nil {
		return nil, err
	}
	return service, nil
}

// Load (re)reads the collection from storage, replacing the in-memory view.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, opLoad)
}

// List returns notes ordered by opts.Sort and capped by opts.Limit.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Note, error) {
	order, err := parseSort(opts.Sort)
	if err != nil {
		s.logError(opList, "invalid_sort_key", err, zap.String("sort", opts.Sort))
		return nil, newServiceError(opList, "invalid_sort_key", err)
	}

	current, err := s.view(ctx, opList)
	if err != nil {
		return nil, err
	}

	ordered := make([]Note, len(current))
	copy(ordered, current)
	sort.SliceStable(ordered, order.less(ordered))

	if limit := opts.limit(); limit >= 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	for index := range ordered {
		ordered[index] = ordered[index].Clone()
	}
	return ordered, nil
}

// Get returns the note with the given identifier.
func (s *Service) Get(ctx context.Context, id string) (Note, error) {
	current, err := s.view(ctx, opGet)
	if err != nil {
		return Note{}, err
	}
	index := indexOf(current, id)
	if index < 0 {
		s.logError(opGet, "not_found", ErrNoteNotFound, zap.String("note_id", id))
		return Note{}, newServiceError(opGet, "not_found", ErrNoteNotFound)
	}
	return current[index].Clone(), nil
}

// Create validates draft, assigns an identifier and timestamps, and persists the new note.
func (s *Service) Create(ctx context.Context, draft Draft) (Note, error) {
	draft = draft.normalized()
	if err := draft.Validate(); err != nil {
		s.logError(opCreate, "invalid_note", err)
		return Note{}, newServiceError(opCreate, "invalid_note", fmt.Errorf("%w: %w", ErrInvalidNote, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx, opCreate); err != nil {
		return Note{}, err
	}

	id, err := s.unusedIDLocked()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Note{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	note := Note{
		ID:             id,
		Title:          draft.Title,
		Content:        draft.Content,
		VerseReference: draft.VerseReference,
		StartVerse:     draft.StartVerse,
		EndVerse:       draft.EndVerse,
		Tags:           draft.Tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	next := make([]Note, 0, len(s.notes)+1)
	next = append(next, s.notes...)
	next = append(next, note)
	if err := s.persistLocked(ctx, opCreate, next, zap.String("note_id", id)); err != nil {
		return Note{}, err
	}
	s.notes = next
	return note.Clone(), nil
}

// Update merges patch into the stored note and persists the result.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx, opUpdate); err != nil {
		return Note{}, err
	}

	index := indexOf(s.notes, id)
	if index < 0 {
		s.logError(opUpdate, "not_found", ErrNoteNotFound, zap.String("note_id", id))
		return Note{}, newServiceError(opUpdate, "not_found", ErrNoteNotFound)
	}

	merged := applyPatch(s.notes[index], patch, s.clock().UTC())
	if err := merged.draft().Validate(); err != nil {
		s.logError(opUpdate, "invalid_note", err, zap.String("note_id", id))
		return Note{}, newServiceError(opUpdate, "invalid_note", fmt.Errorf("%w: %w", ErrInvalidNote, err))
	}

	next := make([]Note, len(s.notes))
	copy(next, s.notes)
	next[index] = merged
	if err := s.persistLocked(ctx, opUpdate, next, zap.String("note_id", id)); err != nil {
		return Note{}, err
	}
	s.notes = next
	return merged.Clone(), nil
}

// Delete removes the note with the given identifier. Deleting an unknown
// identifier is not an error; the boolean reports whether a note was removed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx, opDelete); err != nil {
		return false, err
	}

	index := indexOf(s.notes, id)
	if index < 0 {
		return false, nil
	}

	next := make([]Note, 0, len(s.notes)-1)
	next = append(next, s.notes[:index]...)
	next = append(next, s.notes[index+1:]...)
	if err := s.persistLocked(ctx, opDelete, next, zap.String("note_id", id)); err != nil {
		return false, err
	}
	s.notes = next
	return true, nil
}

// view returns the current collection. The returned slice is never modified
// in place, so callers may read it without holding the lock.
func (s *Service) view(ctx context.Context, operation string) ([]Note, error) {
	s.mu.RLock()
	if s.loaded {
		current := s.notes
		s.mu.RUnlock()
		return current, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx, operation); err != nil {
		return nil, err
	}
	return s.notes, nil
}

func (s *Service) ensureLoadedLocked(ctx context.Context, operation string) error {
	if s.loaded {
		return nil
	}
	return s.loadLocked(ctx, operation)
}

func (s *Service) loadLocked(ctx context.Context, operation string) error {
	raw, found, err := s.storage.Get(ctx, s.storageKey)
	if err != nil {
		s.logError(operation, "storage_read_failed", err, zap.String("storage_key", s.storageKey))
		return newServiceError(operation, "storage_read_failed", fmt.Errorf("%w: %w", ErrStorage, err))
	}
	decoded := []Note{}
	if found {
		decoded, err = decodeCollection(raw)
		if err != nil {
			s.logError(operation, "corrupt_collection", err, zap.String("storage_key", s.storageKey))
			return newServiceError(operation, "corrupt_collection", err)
		}
	}
	s.notes = decoded
	s.loaded = true
	return nil
}

func (s *Service) persistLocked(ctx context.Context, operation string, next []Note, fields ...zap.Field) error {
	encoded, err := encodeCollection(next)
	if err != nil {
		s.logError(operation, "encode_failed", err, fields...)
		return newServiceError(operation, "encode_failed", fmt.Errorf("%w: %w", ErrStorage, err))
	}
	if err := s.storage.Set(ctx, s.storageKey, encoded); err != nil {
		s.logError(operation, "storage_write_failed", err, fields...)
		return newServiceError(operation, "storage_write_failed", fmt.Errorf("%w: %w", ErrStorage, err))
	}
	return nil
}

func (s *Service) unusedIDLocked() (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.idProvider.NewID()
		if err != nil {
			return "", err
		}
		if id != "" && indexOf(s.notes, id) < 0 {
			return id, nil
		}
	}
	return "", errIDExhausted
}

func indexOf(notes []Note, id string) int {
	for index := range notes {
		if notes[index].ID == id {
			return index
		}
	}
	return -1
}

func (o sortOrder) less(notes []Note) func(i, j int) bool {
	var compare func(left, right *Note) int
	switch o.field {
	case sortByUpdated:
		compare = func(left, right *Note) int { return left.UpdatedAt.Compare(right.UpdatedAt) }
	case sortByTitle, sortByVerseReference:
		collator := collate.New(language.Und, collate.Loose)
		field := o.field
		compare = func(left, right *Note) int {
			if field == sortByTitle {
				return collator.CompareString(left.Title, right.Title)
			}
			return collator.CompareString(left.VerseReference, right.VerseReference)
		}
	default:
		compare = func(left, right *Note) int { return left.CreatedAt.Compare(right.CreatedAt) }
	}
	return func(i, j int) bool {
		result := compare(&notes[i], &notes[j])
		if o.descending {
			return result > 0
		}
		return result < 0
	}
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("notes service error", attrs...)
}
