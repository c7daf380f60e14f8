package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/Bloom/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   errs.Kind
	}{
		{http.StatusOK, ""},
		{http.StatusRequestTimeout, errs.KindTimeout},
		{http.StatusGatewayTimeout, errs.KindProviderServer},
		{http.StatusTooManyRequests, errs.KindRateLimit},
		{http.StatusInternalServerError, errs.KindProviderServer},
		{http.StatusBadGateway, errs.KindProviderServer},
		{http.StatusServiceUnavailable, errs.KindProviderServer},
		{http.StatusBadRequest, errs.KindRequest},
		{http.StatusUnauthorized, errs.KindRequest},
		{http.StatusNotFound, errs.KindRequest},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			e := classifyStatus(tt.status)
			if tt.want == "" {
				assert.Nil(t, e)
				return
			}
			if assert.NotNil(t, e) {
				assert.Equal(t, tt.want, e.Kind)
			}
		})
	}
}

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), errs.KindTimeout},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), errs.KindTimeout},
		{"cancelled", fmt.Errorf("post: %w", context.Canceled), errs.KindRequest},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), errs.KindConnection},
		{"breaker open", resilience.ErrCircuitOpen, errs.KindProviderServer},
		{"already classified", errs.New(errs.KindRateLimit, "slow down"), errs.KindRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(nil, tt.err).Kind)
		})
	}
}

func TestRetryableStatuses(t *testing.T) {
	for _, s := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsRetryableStatus(s), s)
	}
	for _, s := range []int{200, 400, 401, 403, 404, 422, 501} {
		assert.False(t, IsRetryableStatus(s), s)
	}
}

func TestBackoff(t *testing.T) {
	base, max := time.Second, 30*time.Second

	assert.Equal(t, 1*time.Second, backoff(base, max, 0, nil))
	assert.Equal(t, 2*time.Second, backoff(base, max, 1, nil))
	assert.Equal(t, 4*time.Second, backoff(base, max, 2, nil))
	assert.Equal(t, max, backoff(base, max, 10, nil))

	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, backoff(base, max, 0, resp))

	resp.Header.Set("Retry-After", "600")
	assert.Equal(t, max, backoff(base, max, 0, resp))

	resp.Header.Set("Retry-After", "Wed, 21 Oct 2015 07:28:00 GMT")
	assert.Equal(t, base, backoff(base, max, 0, resp))
}

func TestCheckRetry(t *testing.T) {
	ctx := context.Background()

	retry, err := checkRetry(ctx, &http.Response{StatusCode: http.StatusServiceUnavailable}, nil)
	assert.True(t, retry)
	assert.NoError(t, err)

	retry, _ = checkRetry(ctx, &http.Response{StatusCode: http.StatusNotImplemented}, nil)
	assert.False(t, retry)

	retry, _ = checkRetry(ctx, nil, errors.New("connection reset by peer"))
	assert.True(t, retry)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	retry, err = checkRetry(cancelled, &http.Response{StatusCode: http.StatusServiceUnavailable}, nil)
	assert.False(t, retry)
	assert.ErrorIs(t, err, context.Canceled)
}
