package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Bloom/backend/internal/domain/analysis"
	"github.com/GriffinCanCode/Bloom/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
)

const (
	multipartSlack = 1 << 20
	jsonBodyLimit  = 4 << 20
)

// respondError writes the {error: {kind, message}} envelope. Unclassified
// errors are logged and reported as a generic storage fault.
func (h *Handlers) respondError(c *gin.Context, err error) {
	if isTooLarge(err) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": errs.Validation("request body exceeds maximum size of %dMB", h.maxUpload/(1<<20)),
		})
		return
	}

	e, ok := errs.As(err)
	if !ok {
		tracing.Logger(c.Request.Context(), h.logger).Error("Unclassified handler error", zap.Error(err))
		e = errs.Wrap(errs.KindStorage, "Internal server error", err)
	}
	if !e.Kind.IsClientFault() {
		tracing.Logger(c.Request.Context(), h.logger).Warn("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(e.Kind)),
			zap.Error(err),
		)
	}
	c.JSON(errs.HTTPStatus(e.Kind), gin.H{"error": e})
}

// resultBody renders an analysis result, putting the primary text under key.
func resultBody(res *analysis.AnalysisResult, key string) gin.H {
	body := gin.H{
		key:      res.Response,
		"status": res.Status,
		"state":  res.State,
	}
	if res.Error != nil {
		body["error"] = res.Error
	}
	if res.Translated != "" {
		body["translated"] = res.Translated
	}
	if res.TranslationError != nil {
		body["translation_error"] = res.TranslationError
	}
	if res.Language != "" {
		body["language"] = res.Language
	}
	if res.Model != "" {
		body["model"] = res.Model
	}
	return body
}

// resultStatus is 200 unless the run failed outright.
func resultStatus(res *analysis.AnalysisResult) int {
	if res.Error != nil {
		return errs.HTTPStatus(res.Error.Kind)
	}
	return http.StatusOK
}
