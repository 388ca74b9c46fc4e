package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/PlebRick/VerseNotes/internal/metrics"
	"github.com/PlebRick/VerseNotes/internal/notes"
	"github.com/PlebRick/VerseNotes/internal/passage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	subjectContextKey      = "versenotes_subject"
	localSubject           = "local"
	notesStreamRoute       = "/notes/stream"
	defaultStreamHeartbeat = 30 * time.Second
)

var (
	errMissingNotesService   = errors.New("notes service dependency required")
	errMissingPassageFetcher = errors.New("passage fetcher dependency required")
)

// TokenValidator resolves a bearer token to its subject.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// PassageFetcher retrieves scripture text for a canonical reference.
type PassageFetcher interface {
	Fetch(ctx context.Context, reference string) (passage.Passage, error)
}

// Dependencies wires the HTTP API. A nil TokenValidator disables authentication.
type Dependencies struct {
	TokenValidator     TokenValidator
	NotesService       *notes.Service
	Passages           PassageFetcher
	Realtime           *RealtimeDispatcher
	Metrics            *metrics.Recorder
	Logger             *zap.Logger
	CORSAllowedOrigins []string
	StreamHeartbeat    time.Duration
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.NotesService == nil {
		return nil, errMissingNotesService
	}
	if deps.Passages == nil {
		return nil, errMissingPassageFetcher
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	heartbeat := deps.StreamHeartbeat
	if heartbeat <= 0 {
		heartbeat = defaultStreamHeartbeat
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger, deps.Metrics))
	router.Use(cors.New(corsConfig(deps.CORSAllowedOrigins)))

	handler := &httpHandler{
		tokens:          deps.TokenValidator,
		notesService:    deps.NotesService,
		passages:        deps.Passages,
		realtime:        realtime,
		metrics:         deps.Metrics,
		logger:          logger,
		streamHeartbeat: heartbeat,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/references/resolve", handler.handleResolveReference)
	protected.GET("/passages", handler.handleFetchPassage)
	protected.GET("/notes", handler.handleListNotes)
	protected.POST("/notes", handler.handleCreateNote)
	protected.GET(notesStreamRoute, handler.handleNotesStream)
	protected.GET("/notes/:id", handler.handleGetNote)
	protected.PATCH("/notes/:id", handler.handleUpdateNote)
	protected.DELETE("/notes/:id", handler.handleDeleteNote)

	return router, nil
}

type httpHandler struct {
	tokens          TokenValidator
	notesService    *notes.Service
	passages        PassageFetcher
	realtime        *RealtimeDispatcher
	metrics         *metrics.Recorder
	logger          *zap.Logger
	streamHeartbeat time.Duration
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func corsConfig(allowedOrigins []string) cors.Config {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		config.AllowAllOrigins = true
		return config
	}
	config.AllowOrigins = allowedOrigins
	return config
}
