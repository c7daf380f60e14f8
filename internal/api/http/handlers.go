package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Bloom/backend/internal/domain/analysis"
	"github.com/GriffinCanCode/Bloom/backend/internal/domain/session"
	"github.com/GriffinCanCode/Bloom/backend/internal/infrastructure/monitoring"
)

const version = "1.0.0"

// Handlers contains all HTTP handlers.
type Handlers struct {
	sessions  *session.Manager
	analyzer  *analysis.Orchestrator
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	maxUpload int64
	started   time.Time
}

// NewHandlers creates a new handler set.
func NewHandlers(
	sessions *session.Manager,
	analyzer *analysis.Orchestrator,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		sessions:  sessions,
		analyzer:  analyzer,
		metrics:   metrics,
		logger:    logger.Named("http"),
		maxUpload: sessions.Config().MaxFileSize,
		started:   time.Now(),
	}
}

// Register mounts every route on r. Multipart routes get a body cap slightly
// above the upload limit so the store's own size check reports oversize files.
func (h *Handlers) Register(r gin.IRouter, bodyLimit func(int64) gin.HandlerFunc) {
	multipartLimit := bodyLimit(h.maxUpload + multipartSlack)
	jsonLimit := bodyLimit(jsonBodyLimit)

	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	ai := r.Group("/api/ai")
	ai.POST("/analyze", jsonLimit, h.Analyze)
	ai.POST("/analyze-with-context", jsonLimit, h.AnalyzeWithContext)
	ai.POST("/analyze-image", multipartLimit, h.AnalyzeImage)
	ai.POST("/process-audio", multipartLimit, h.ProcessAudio)

	tutor := r.Group("/api/tutor")
	tutor.POST("/process-text", jsonLimit, h.ProcessText)
	tutor.POST("/process-image", multipartLimit, h.ProcessImage)
	tutor.POST("/process-speech", multipartLimit, h.ProcessSpeech)
	tutor.GET("/languages", h.Languages)

	files := r.Group("/api/files")
	files.POST("/session/create", h.CreateSession)
	files.POST("/upload/:session_id", multipartLimit, h.UploadFile)
	files.GET("/session/:session_id/files", h.ListFiles)
	files.DELETE("/session/:session_id/file/:file_id", h.DeleteFile)
	files.DELETE("/session/:session_id", h.EndSession)
}

// Root reports the service identity.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Bloom Backend",
		"version": version,
	})
}

// Health reports liveness plus running totals.
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":         "healthy",
		"version":        version,
		"uptime_seconds": time.Since(h.started).Seconds(),
		"sessions":       h.sessions.Count(),
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}
