package notes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

var errInjected = errors.New("injected storage failure")

type memoryStore struct {
	mu         sync.Mutex
	values     map[string][]byte
	failReads  bool
	failWrites bool
	writes     int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string][]byte{}}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads {
		return nil, false, errInjected
	}
	value, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errInjected
	}
	m.values[key] = append([]byte(nil), value...)
	m.writes++
	return nil
}

func (m *memoryStore) raw(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.values[key])
}

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

// steppingClock advances by one minute on every reading.
type steppingClock struct {
	mu      sync.Mutex
	current time.Time
}

func newSteppingClock(start time.Time) *steppingClock {
	return &steppingClock{current: start}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(time.Minute)
	return now
}

func newTestService(t *testing.T, store KeyValueStore, ids []string, logger *zap.Logger) *Service {
	t.Helper()
	clock := newSteppingClock(time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))
	service, err := Open(context.Background(), ServiceConfig{
		Storage:    store,
		Clock:      clock.Now,
		IDProvider: &staticIDGenerator{ids: ids},
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("failed to open service: %v", err)
	}
	return service
}

func mustCreate(t *testing.T, service *Service, draft Draft) Note {
	t.Helper()
	note, err := service.Create(context.Background(), draft)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	return note
}

func intPtr(value int) *int {
	return &value
}

func stringPtr(value string) *string {
	return &value
}
