package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PlebRick/VerseNotes/internal/database"
	"github.com/PlebRick/VerseNotes/internal/metrics"
	"github.com/PlebRick/VerseNotes/internal/notes"
	"github.com/PlebRick/VerseNotes/internal/passage"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubPassageFetcher struct {
	mu         sync.Mutex
	err        error
	references []string
}

func (s *stubPassageFetcher) Fetch(_ context.Context, reference string) (passage.Passage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.references = append(s.references, reference)
	if s.err != nil {
		return passage.Passage{}, s.err
	}
	return passage.Passage{
		Reference:   reference,
		Translation: "web",
		Verses:      []passage.Verse{{Book: "Romans", Chapter: 1, Verse: 1, Text: "Paul, a servant"}},
	}, nil
}

type stubTokenValidator struct {
	tokens map[string]string
}

func (s stubTokenValidator) ValidateToken(token string) (string, error) {
	subject, ok := s.tokens[token]
	if !ok {
		return "", fmt.Errorf("unknown token")
	}
	return subject, nil
}

type testServer struct {
	handler  http.Handler
	service  *notes.Service
	passages *stubPassageFetcher
	realtime *RealtimeDispatcher
	metrics  *metrics.Recorder
}

func newNotesService(t *testing.T) *notes.Service {
	t.Helper()
	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.KeyValueEntry{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	store, err := database.NewKeyValueStore(db)
	if err != nil {
		t.Fatalf("failed to build key value store: %v", err)
	}
	service, err := notes.Open(context.Background(), notes.ServiceConfig{
		Storage:    store,
		IDProvider: notes.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to open notes service: %v", err)
	}
	return service
}

func newTestServer(t *testing.T, validator TokenValidator) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	server := testServer{
		service:  newNotesService(t),
		passages: &stubPassageFetcher{},
		realtime: NewRealtimeDispatcher(),
		metrics:  metrics.NewRecorder(),
	}
	handler, err := NewHTTPHandler(Dependencies{
		TokenValidator:  validator,
		NotesService:    server.service,
		Passages:        server.passages,
		Realtime:        server.realtime,
		Metrics:         server.metrics,
		Logger:          zap.NewNop(),
		StreamHeartbeat: time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	server.handler = handler
	return server
}

func (s testServer) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, target, nil)
	} else {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	for index := 0; index+1 < len(headers); index += 2 {
		request.Header.Set(headers[index], headers[index+1])
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}
