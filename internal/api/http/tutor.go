package http

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/Bloom/backend/internal/domain/analysis"
	"github.com/GriffinCanCode/Bloom/backend/internal/domain/extract"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
)

// ProblemRequest is the body of POST /api/tutor/process-text.
type ProblemRequest struct {
	Problem  string `json:"problem"`
	Subject  string `json:"subject"`
	Language string `json:"language"`
}

// ProcessText solves a typed problem.
func (h *Handlers) ProcessText(c *gin.Context) {
	var req ProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}
	if strings.TrimSpace(req.Problem) == "" {
		h.respondError(c, errs.Validation("Problem is required"))
		return
	}

	res := h.analyzer.Analyze(c.Request.Context(), analysis.AnalysisRequest{
		Text:     req.Problem,
		Task:     analysis.TaskProblemSolving,
		Language: req.Language,
		Subject:  req.Subject,
	})
	c.JSON(resultStatus(res), resultBody(res, "solution"))
}

// ProcessImage reads a pictured problem and solves it.
func (h *Handlers) ProcessImage(c *gin.Context) {
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
		Text:     analysis.ImageProblemQuery(c.PostForm("subject")),
		Language: c.PostForm("language"),
		Image:    "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
	})
	c.JSON(resultStatus(res), resultBody(res, "solution"))
}

// ProcessSpeech transcribes a spoken problem and solves it.
func (h *Handlers) ProcessSpeech(c *gin.Context) {
	data, header, err := h.readFormFile(c, "audio")
	if err != nil {
		h.respondError(c, err)
		return
	}

	res := h.analyzer.SolveSpoken(c.Request.Context(), analysis.AudioSubmission{
		Filename: header.Filename,
		Audio:    data,
		Language: c.PostForm("language"),
	}, c.PostForm("subject"))

	body := resultBody(res, "solution")
	if res.Transcript != "" {
		body["transcript"] = res.Transcript
	}
	c.JSON(resultStatus(res), body)
}

// Languages lists the languages answers can be translated into.
func (h *Handlers) Languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": analysis.SupportedLanguages()})
}
