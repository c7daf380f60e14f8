package completion

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Bloom/backend/internal/infrastructure/tracing"
)

// Lane selects the per-attempt timeout for a call.
type Lane int

const (
	// LaneShort is for interactive prompts.
	LaneShort Lane = iota
	// LaneLong is for file analysis and transcription.
	LaneLong
)

func (l Lane) String() string {
	if l == LaneLong {
		return "long"
	}
	return "short"
}

type attemptsKey struct{}

// withAttemptCounter attaches a counter the retry hook increments per attempt.
func withAttemptCounter(ctx context.Context) (context.Context, *atomic.Int32) {
	counter := new(atomic.Int32)
	return context.WithValue(ctx, attemptsKey{}, counter), counter
}

// checkRetry retries the transient statuses and defers to the library policy for
// transport errors, which already stops on cancelled contexts and certificate
// failures.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err != nil || resp == nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return IsRetryableStatus(resp.StatusCode), nil
}

// backoff waits base*2^attempt, stretched to Retry-After when the provider asks
// for longer, and never more than max.
func backoff(base, max time.Duration, attempt int, resp *http.Response) time.Duration {
	wait := base << uint(attempt)
	if wait <= 0 || wait > max {
		wait = max
	}

	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			if after := time.Duration(secs) * time.Second; after > wait {
				wait = after
			}
		}
	}

	if wait > max {
		wait = max
	}
	return wait
}

// zapLeveled adapts zap to retryablehttp.LeveledLogger.
type zapLeveled struct {
	s *zap.SugaredLogger
}

func (l zapLeveled) Error(msg string, kv ...interface{}) { l.s.Warnw(msg, kv...) }
func (l zapLeveled) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l zapLeveled) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l zapLeveled) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }

// newLane builds the resty client for one lane. Retries happen inside the
// transport, so resty's own retry stays disabled.
func (c *Client) newLane(perAttempt time.Duration) *resty.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = c.cfg.MaxAttempts - 1
	rc.RetryWaitMin = c.cfg.BackoffBase
	rc.RetryWaitMax = c.cfg.BackoffMax
	rc.CheckRetry = checkRetry
	rc.Backoff = backoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = perAttempt
	rc.Logger = zapLeveled{s: c.logger.Named("transport").Sugar()}
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if counter, ok := req.Context().Value(attemptsKey{}).(*atomic.Int32); ok {
			counter.Add(1)
		}
		if attempt > 0 {
			c.metrics.RetryAttempted()
			c.logger.Info("Retrying provider request",
				zap.String("path", req.URL.Path),
				zap.Int("attempt", attempt+1),
			)
		}
	}

	client := resty.NewWithClient(rc.StandardClient()).
		SetBaseURL(c.cfg.BaseURL).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			tracing.InjectTraceContext(r.Context(), r.Header)
			return nil
		})
	if c.cfg.APIKey != "" {
		client.SetAuthToken(c.cfg.APIKey)
	}
	return client
}
