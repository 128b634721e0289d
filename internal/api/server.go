// internal/api/server.go

// Package api exposes the conversation over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"
	"loan-advisor/internal/models"
	"loan-advisor/internal/transcript"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ChatService is satisfied by *orchestrator.Orchestrator.
type ChatService interface {
	Chat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error)
	Get(ctx context.Context, appID string) (*models.LoanApplication, error)
}

// LetterStore is satisfied by documents.Store.
type LetterStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// HistoryReader is satisfied by *audit.Recorder.
type HistoryReader interface {
	History(ctx context.Context, applicationID string) ([]models.Turn, error)
}

// TranscriptSearcher is satisfied by *transcript.Index.
type TranscriptSearcher interface {
	Search(ctx context.Context, q transcript.Query) ([]models.Turn, error)
}

// Check is one dependency probed by /ready.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type Server struct {
	chat        ChatService
	letters     LetterStore
	history     HistoryReader
	transcripts TranscriptSearcher
	checks      []Check
	logger      logger.Logger
	now         func() time.Time
}

type Option func(*Server)

func WithLetters(store LetterStore) Option { return func(s *Server) { s.letters = store } }

func WithHistory(h HistoryReader) Option { return func(s *Server) { s.history = h } }

func WithTranscripts(t TranscriptSearcher) Option { return func(s *Server) { s.transcripts = t } }

func WithReadinessChecks(checks ...Check) Option {
	return func(s *Server) { s.checks = append(s.checks, checks...) }
}

func NewServer(chat ChatService, log logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Server{
		chat:   chat,
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds a gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.POST("/chat", s.handleChat)
	r.GET("/applications/:id", s.handleGetApplication)
	if s.history != nil {
		r.GET("/applications/:id/history", s.handleHistory)
	}
	if s.transcripts != nil {
		r.GET("/applications/:id/transcript", s.handleTranscript)
	}
	r.GET("/sanction-letter/:id", s.handleSanctionLetter)

	r.GET("/health", s.handleHealth)
	r.GET("/ready", s.handleReady)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn("Request failed", fields)
			return
		}
		s.logger.Debug("Request served", fields)
	}
}

type errorBody struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
}

// statusFor maps error codes to HTTP statuses. Anything unrecognised is a 500.
func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeApplicationNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case apperrors.ErrCodeExternalService,
		apperrors.ErrCodeDocumentRenderFailed,
		apperrors.ErrCodeDocumentStoreFailed:
		return http.StatusBadGateway
	case apperrors.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.NewTimeoutError("request", err)
	}
	std := apperrors.Normalize(err)
	status := statusFor(std.Code)
	body := errorBody{Code: std.Code, Message: std.Message, Details: std.Details}
	if status == http.StatusInternalServerError {
		// Internal details stay in the log.
		s.logger.Error("Request error", map[string]interface{}{
			"path":  c.FullPath(),
			"code":  string(std.Code),
			"error": err.Error(),
		})
		body.Details = ""
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

const timeFormat = time.RFC3339

var errDocumentsDisabled = errors.New("document storage is not configured")
