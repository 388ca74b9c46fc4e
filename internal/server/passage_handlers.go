package server

import (
	"errors"
	"net/http"

	"github.com/PlebRick/VerseNotes/internal/notes"
	"github.com/PlebRick/VerseNotes/internal/passage"
	"github.com/PlebRick/VerseNotes/internal/scripture"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type resolveResponse struct {
	Reference scripture.Reference `json:"reference"`
	Canonical string              `json:"canonical"`
	Chapter   string              `json:"chapter"`
}

type passageResponse struct {
	Reference string          `json:"reference"`
	Passage   passage.Passage `json:"passage"`
	Notes     []notes.Note    `json:"notes"`
}

func (h *httpHandler) resolveQuery(c *gin.Context) (scripture.Reference, bool) {
	result := scripture.Resolve(c.Query("q"))
	h.metrics.ObserveResolution(result.Parsed())
	if !result.Parsed() {
		payload := gin.H{"error": "invalid_reference", "code": "references.resolve.malformed"}
		if result.Reason != nil {
			payload["detail"] = result.Reason.Error()
		}
		c.JSON(http.StatusUnprocessableEntity, payload)
		return scripture.Reference{}, false
	}
	return result.Reference, true
}

func (h *httpHandler) handleResolveReference(c *gin.Context) {
	reference, ok := h.resolveQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resolveResponse{
		Reference: reference,
		Canonical: scripture.Format(reference),
		Chapter:   scripture.Format(reference.ChapterReference()),
	})
}

// handleFetchPassage resolves the query, fetches its text and attaches the
// notes that belong to the surrounding chapter.
func (h *httpHandler) handleFetchPassage(c *gin.Context) {
	reference, ok := h.resolveQuery(c)
	if !ok {
		return
	}
	canonical := scripture.Format(reference)

	fetched, err := h.passages.Fetch(c.Request.Context(), canonical)
	if err != nil {
		h.logger.Warn("passage fetch failed", zap.String("reference", canonical), zap.Error(err))
		payload := gin.H{"error": "fetch_failed", "code": "passages.fetch.failed"}
		var fetchErr *passage.FetchError
		if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
			payload["upstream_status"] = fetchErr.StatusCode
		}
		c.JSON(http.StatusBadGateway, payload)
		return
	}

	all, err := h.notesService.List(c.Request.Context(), notes.ListOptions{Limit: notes.NoLimit})
	if err != nil {
		h.writeNotesError(c, err)
		return
	}

	c.JSON(http.StatusOK, passageResponse{
		Reference: canonical,
		Passage:   fetched,
		Notes:     notes.MatchingNotes(scripture.Format(reference.ChapterReference()), all),
	})
}
