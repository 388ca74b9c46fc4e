package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/PlebRick/VerseNotes/internal/notes"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxNoteBodyBytes = 1 << 20

var immutableNoteFields = []string{"id", "created_date", "updated_date"}

type listNotesResponse struct {
	Notes []notes.Note `json:"notes"`
}

type createNoteRequest struct {
	notes.Draft
	TagsText *string `json:"tags_text,omitempty"`
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	options := notes.ListOptions{Sort: c.Query("sort")}
	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < notes.NoLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		options.Limit = limit
	}

	listed, err := h.notesService.List(c.Request.Context(), options)
	if err != nil {
		h.writeNotesError(c, err)
		return
	}
	if reference, ok := c.GetQuery("reference"); ok {
		listed = notes.MatchingNotes(reference, listed)
	}
	c.JSON(http.StatusOK, listNotesResponse{Notes: listed})
}

func (h *httpHandler) handleGetNote(c *gin.Context) {
	note, err := h.notesService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeNotesError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	var request createNoteRequest
	if err := sonic.ConfigStd.Unmarshal(body, &request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	draft := request.Draft
	if request.TagsText != nil {
		draft.Tags = append(draft.Tags, notes.ParseTags(*request.TagsText)...)
	}

	created, err := h.notesService.Create(c.Request.Context(), draft)
	if err != nil {
		h.writeNotesError(c, err)
		return
	}
	h.publishChange(c, "create", created.ID)
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	var fields map[string]any
	if err := sonic.ConfigStd.Unmarshal(body, &fields); err != nil || fields == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	for _, field := range immutableNoteFields {
		if _, present := fields[field]; present {
			c.JSON(http.StatusBadRequest, gin.H{"error": "immutable_field", "field": field})
			return
		}
	}
	var patch notes.Patch
	if err := sonic.ConfigStd.Unmarshal(body, &patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	updated, err := h.notesService.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeNotesError(c, err)
		return
	}
	h.publishChange(c, "update", updated.ID)
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	id := c.Param("id")
	removed, err := h.notesService.Delete(c.Request.Context(), id)
	if err != nil {
		h.writeNotesError(c, err)
		return
	}
	if removed {
		h.publishChange(c, "delete", id)
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) publishChange(c *gin.Context, operation, noteID string) {
	h.metrics.ObserveNoteMutation(operation)
	h.realtime.Publish(RealtimeMessage{
		Subject:   c.GetString(subjectContextKey),
		EventType: RealtimeEventNoteChanged,
		Operation: operation,
		NoteIDs:   []string{noteID},
	})
}

func (h *httpHandler) writeNotesError(c *gin.Context, err error) {
	status, reason := classifyNotesError(err)
	payload := gin.H{"error": reason}
	var serviceErr *notes.ServiceError
	if errors.As(err, &serviceErr) {
		payload["code"] = serviceErr.Code()
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("notes request failed", zap.Error(err))
	}
	c.JSON(status, payload)
}

func classifyNotesError(err error) (int, string) {
	switch {
	case errors.Is(err, notes.ErrNoteNotFound):
		return http.StatusNotFound, "note_not_found"
	case errors.Is(err, notes.ErrInvalidNote):
		return http.StatusBadRequest, "invalid_note"
	case errors.Is(err, notes.ErrInvalidSortKey):
		return http.StatusBadRequest, "invalid_sort_key"
	case notes.IsStorageError(err):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxNoteBodyBytes))
}
