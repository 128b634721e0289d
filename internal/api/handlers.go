// internal/api/handlers.go
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/validation"
	"loan-advisor/internal/documents"
	"loan-advisor/internal/models"
	"loan-advisor/internal/transcript"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 64 << 10

func (s *Server) handleChat(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		s.fail(c, apperrors.NewValidationError("request body could not be read"))
		return
	}
	if result := validation.ValidateChatRequest(body); !result.Valid {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": errorBody{
				Code:    apperrors.ErrCodeValidationFailed,
				Message: "Invalid chat request",
			},
			"fields": result.Errors,
		})
		return
	}

	var req models.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.fail(c, apperrors.NewValidationError(err.Error()))
		return
	}
	resp, err := s.chat.Chat(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetApplication(c *gin.Context) {
	app, err := s.chat.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (s *Server) handleHistory(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.chat.Get(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	turns, err := s.history.History(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application_id": id, "turns": nonNil(turns)})
}

func (s *Server) handleTranscript(c *gin.Context) {
	id := c.Param("id")
	size, _ := strconv.Atoi(c.Query("size"))
	turns, err := s.transcripts.Search(c.Request.Context(), transcript.Query{
		ApplicationID: id,
		Text:          c.Query("q"),
		Size:          size,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application_id": id, "turns": nonNil(turns)})
}

// handleSanctionLetter redirects to a URL reference or streams the stored PDF.
func (s *Server) handleSanctionLetter(c *gin.Context) {
	id := c.Param("id")
	app, err := s.chat.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ref := app.SanctionLetterRef
	if ref == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": errorBody{
			Code:    apperrors.ErrCodeApplicationNotFound,
			Message: "No sanction letter has been issued for this application",
		}})
		return
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		c.Redirect(http.StatusFound, ref)
		return
	}
	if s.letters == nil {
		s.fail(c, apperrors.NewExternalServiceError("documents", errDocumentsDisabled))
		return
	}

	key := documents.LetterKey(id)
	rc, err := s.letters.Open(c.Request.Context(), key)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, map[string]string{
		"Content-Disposition": `attachment; filename="` + key + `"`,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": s.now().UTC().Format(timeFormat)})
}

func (s *Server) handleReady(c *gin.Context) {
	failures := map[string]string{}
	for _, check := range s.checks {
		if err := check.Probe(c.Request.Context()); err != nil {
			failures[check.Name] = err.Error()
		}
	}
	if len(failures) > 0 {
		s.logger.Warn("Readiness check failed", map[string]interface{}{"failures": failures})
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "failures": failures})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "time": s.now().UTC().Format(timeFormat)})
}

func nonNil(turns []models.Turn) []models.Turn {
	if turns == nil {
		return []models.Turn{}
	}
	return turns
}
