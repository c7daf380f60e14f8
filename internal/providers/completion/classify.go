package completion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/GriffinCanCode/Bloom/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
)

// Caller-facing messages. Provider payloads never reach callers.
const (
	msgTimeout     = "Request timed out. Please try again."
	msgConnection  = "Network connection error. Please check your internet connection."
	msgRateLimit   = "Rate limit exceeded. Please try again later."
	msgServer      = "Completion service error. Please try again later."
	msgUnavailable = "Completion service is temporarily unavailable. Please try again later."
	msgCancelled   = "Request was cancelled."
	msgMalformed   = "Completion service returned an unexpected response."
)

// retryable lists the statuses that are retried before giving up.
var retryable = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsRetryableStatus reports whether a response status is worth another attempt.
func IsRetryableStatus(status int) bool {
	return retryable[status]
}

// Classify maps the outcome of a provider call onto the error taxonomy. It
// returns nil for a 2xx response without transport error.
func Classify(resp *resty.Response, err error) *errs.Error {
	if err != nil {
		return classifyErr(err)
	}
	if resp == nil {
		return errs.New(errs.KindConnection, msgConnection)
	}
	return classifyStatus(resp.StatusCode())
}

func classifyStatus(status int) *errs.Error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusRequestTimeout:
		return errs.New(errs.KindTimeout, msgTimeout)
	case status == http.StatusTooManyRequests:
		return errs.New(errs.KindRateLimit, msgRateLimit)
	case status >= 500:
		return errs.New(errs.KindProviderServer, msgServer)
	default:
		return errs.New(errs.KindRequest, fmt.Sprintf("API request failed with status %d.", status))
	}
}

func classifyErr(err error) *errs.Error {
	if e, ok := errs.As(err); ok {
		return e
	}

	var netErr net.Error
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return errs.Wrap(errs.KindProviderServer, msgUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.KindTimeout, msgTimeout, err)
	case errors.Is(err, context.Canceled):
		return errs.Wrap(errs.KindRequest, msgCancelled, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return errs.Wrap(errs.KindTimeout, msgTimeout, err)
	default:
		return errs.Wrap(errs.KindConnection, msgConnection, err)
	}
}
