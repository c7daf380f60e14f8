package http

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/Bloom/backend/internal/domain/analysis"
	"github.com/GriffinCanCode/Bloom/backend/internal/domain/extract"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
)

// AnalyzeRequest is the body of POST /api/ai/analyze.
type AnalyzeRequest struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
	Task     string `json:"task"`
	Subject  string `json:"subject"`
}

// ContextRequest is the body of POST /api/ai/analyze-with-context.
type ContextRequest struct {
	Content  string `json:"content"`
	FileType string `json:"fileType"`
	Language string `json:"language"`
	Context  string `json:"context"`
}

// Analyze runs a free-text prompt.
func (h *Handlers) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		h.respondError(c, errs.Validation("Prompt is required"))
		return
	}
	task, err := analysis.ParseTask(req.Task)
	if err != nil {
		h.respondError(c, err)
		return
	}

	res := h.analyzer.Analyze(c.Request.Context(), analysis.AnalysisRequest{
		Text:     req.Prompt,
		Task:     task,
		Language: req.Language,
		Subject:  req.Subject,
	})
	c.JSON(resultStatus(res), resultBody(res, "response"))
}

// AnalyzeWithContext runs the content analysis template over pasted content.
func (h *Handlers) AnalyzeWithContext(c *gin.Context) {
	var req ContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		h.respondError(c, errs.Validation("File content is required"))
		return
	}

	res := h.analyzer.Analyze(c.Request.Context(), analysis.AnalysisRequest{
		Text:     req.Content,
		Task:     analysis.TaskContentAnalysis,
		FileType: req.FileType,
		Language: req.Language,
		Context:  req.Context,
	})
	c.JSON(resultStatus(res), resultBody(res, "response"))
}

// AnalyzeImage answers a question about an uploaded image.
func (h *Handlers) AnalyzeImage(c *gin.Context) {
	data, _, err := h.readFormFile(c, "image")
	if err != nil {
		h.respondError(c, err)
		return
	}

	mime := extract.Detect(data)
	if !strings.HasPrefix(mime, "image/") {
		h.respondError(c, errs.Validation("uploaded file is not an image (detected %s)", mime))
		return
	}

	res := h.analyzer.Analyze(c.Request.Context(), analysis.AnalysisRequest{
		Task:     analysis.TaskVision,
		Text:     c.PostForm("query"),
		Language: c.PostForm("language"),
		Image:    "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
	})
	c.JSON(resultStatus(res), resultBody(res, "response"))
}

// ProcessAudio transcribes an uploaded recording.
func (h *Handlers) ProcessAudio(c *gin.Context) {
	data, header, err := h.readFormFile(c, "audio")
	if err != nil {
		h.respondError(c, err)
		return
	}

	res := h.analyzer.Transcribe(c.Request.Context(), analysis.AudioSubmission{
		Filename: header.Filename,
		Audio:    data,
		Language: c.PostForm("language"),
	})
	if res.Error != nil {
		c.JSON(resultStatus(res), gin.H{"status": res.Status, "error": res.Error})
		return
	}

	body := gin.H{
		"transcription": res.Response,
		"status":        res.Status,
	}
	if res.Language != "" {
		body["language"] = res.Language
	}
	c.JSON(resultStatus(res), body)
}

// readFormFile reads one multipart file field, bounded by the upload limit.
func (h *Handlers) readFormFile(c *gin.Context, field string) ([]byte, *multipart.FileHeader, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if isTooLarge(err) {
			return nil, nil, err
		}
		return nil, nil, errs.Validation("No %s file provided", field)
	}
	if header.Size > h.maxUpload {
		return nil, nil, errs.Validation("file size exceeds maximum limit of %dMB", h.maxUpload/(1<<20))
	}

	f, err := header.Open()
	if err != nil {
		return nil, nil, errs.Storage("failed to read upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return nil, nil, errs.Storage("failed to read upload", err)
	}
	if int64(len(data)) > h.maxUpload {
		return nil, nil, errs.Validation("file size exceeds maximum limit of %dMB", h.maxUpload/(1<<20))
	}
	if len(data) == 0 {
		return nil, nil, errs.Validation("%s file is empty", field)
	}
	return data, header, nil
}
