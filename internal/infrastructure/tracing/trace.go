package tracing

import (
	"context"
	"net/http"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/Bloom/backend/internal/shared/id"
)

const (
	// RequestIDHeader carries the trace id in and out of the service.
	RequestIDHeader = "X-Request-ID"
	// SpanIDHeader carries the caller's span id.
	SpanIDHeader = "X-Span-ID"

	spanBuffer = 1000
)

// inbound ids are echoed into logs and headers, so only short safe tokens are kept.
var safeID = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

// TraceID identifies one inbound request end to end.
type TraceID string

// SpanID identifies one operation inside a trace.
type SpanID string

// Span is a timed operation.
type Span struct {
	TraceID    TraceID
	SpanID     SpanID
	ParentID   SpanID
	Name       string
	StartTime  time.Time
	Duration   time.Duration
	Tags       map[string]string
	Error      error
	StatusCode int
}

// Tracer hands out spans and logs them asynchronously once finished.
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
	wg      sync.WaitGroup
	once    sync.Once
}

// New creates a tracer and starts its collector. Call Close to drain it.
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger.Named("trace"),
		spans:   make(chan *Span, spanBuffer),
	}
	t.wg.Add(1)
	go t.collectSpans()
	return t
}

// StartSpan opens a span under the trace carried by ctx, starting a new trace
// when there is none.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = TraceID(id.NewRequestID())
	}

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(id.Default().GenerateString()),
		ParentID:  GetSpanID(ctx),
		Name:      name,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	return span, ctx
}

// Finish records the span duration.
func (s *Span) Finish() {
	s.Duration = time.Since(s.StartTime)
}

// SetTag adds a tag to the span.
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records a failure.
func (s *Span) SetError(err error) {
	s.Error = err
}

// SetStatus sets the HTTP status code.
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

// Submit queues a finished span. Spans are dropped when the buffer is full.
func (t *Tracer) Submit(span *Span) {
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", string(span.SpanID)),
		)
	}
}

// Close stops accepting spans and waits until queued ones are logged.
func (t *Tracer) Close() {
	t.once.Do(func() {
		close(t.spans)
		t.wg.Wait()
	})
}

func (t *Tracer) collectSpans() {
	defer t.wg.Done()
	for span := range t.spans {
		t.processSpan(span)
	}
}

func (t *Tracer) processSpan(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.String("service", t.service),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	if span.StatusCode != 0 {
		fields = append(fields, zap.Int("status", span.StatusCode))
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}

	if span.Error != nil {
		fields = append(fields, zap.Error(span.Error))
		t.logger.Warn("span completed with error", fields...)
		return
	}
	t.logger.Debug("span completed", fields...)
}

// ExtractTraceContext reads ids from inbound headers, discarding unsafe ones.
func ExtractTraceContext(h http.Header) (TraceID, SpanID) {
	traceID := TraceID(h.Get(RequestIDHeader))
	if !safeID.MatchString(string(traceID)) {
		traceID = ""
	}
	spanID := SpanID(h.Get(SpanIDHeader))
	if !safeID.MatchString(string(spanID)) {
		spanID = ""
	}
	return traceID, spanID
}

// InjectTraceContext writes the ids carried by ctx onto outbound headers.
func InjectTraceContext(ctx context.Context, h http.Header) {
	if traceID := GetTraceID(ctx); traceID != "" {
		h.Set(RequestIDHeader, string(traceID))
	}
	if spanID := GetSpanID(ctx); spanID != "" {
		h.Set(SpanIDHeader, string(spanID))
	}
}

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// GetTraceID retrieves the trace id from ctx.
func GetTraceID(ctx context.Context) TraceID {
	if traceID, ok := ctx.Value(traceIDKey).(TraceID); ok {
		return traceID
	}
	return ""
}

// GetSpanID retrieves the span id from ctx.
func GetSpanID(ctx context.Context) SpanID {
	if spanID, ok := ctx.Value(spanIDKey).(SpanID); ok {
		return spanID
	}
	return ""
}

// Logger returns base annotated with the trace id carried by ctx.
func Logger(ctx context.Context, base *zap.Logger) *zap.Logger {
	if traceID := GetTraceID(ctx); traceID != "" {
		return base.With(zap.String("trace_id", string(traceID)))
	}
	return base
}
