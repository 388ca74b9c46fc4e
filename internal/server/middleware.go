package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/PlebRick/VerseNotes/internal/auth"
	"github.com/PlebRick/VerseNotes/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const accessTokenQueryParam = "access_token"

func requestLogger(logger *zap.Logger, recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		latency := time.Since(started)
		status := c.Writer.Status()
		recorder.ObserveHTTPRequest(c.Request.Method, c.FullPath(), status, latency)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("http request failed", fields...)
			return
		}
		logger.Debug("http request", fields...)
	}
}

// authorizeRequest resolves the caller's subject. Only the change stream may
// pass the token as a query parameter; browser event sources cannot set headers.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	if h.tokens == nil {
		c.Set(subjectContextKey, localSubject)
		c.Next()
		return
	}

	token, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok && c.FullPath() == notesStreamRoute {
		token = strings.TrimSpace(c.Query(accessTokenQueryParam))
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "auth.missing_token"})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "auth.invalid_token"})
		return
	}
	c.Set(subjectContextKey, subject)
	c.Next()
}
