package completion

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/Bloom/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
)

const (
	userAgent = "Bloom-Backend/1.0"

	// DefaultSystemPrompt frames every completion that does not bring its own.
	DefaultSystemPrompt = "You are a helpful educational AI assistant. When analyzing content, provide detailed, insightful responses that help users understand the material better. Break down complex topics, offer examples, and suggest related concepts to explore."

	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7

	chatPath          = "/chat/completions"
	transcriptionPath = "/audio/transcriptions"
)

// Config controls the provider connection.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds one attempt on the short lane.
	Timeout time.Duration
	// LongTimeout bounds one attempt on the long lane.
	LongTimeout time.Duration
	// MaxElapsed bounds the whole retry sequence of one call.
	MaxElapsed  time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// RPS caps outbound requests per second; zero means unlimited.
	RPS         float64
	Temperature float32
	Catalog     Catalog
}

// DefaultConfig targets Groq's OpenAI-compatible endpoint.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.groq.com/openai/v1",
		Timeout:     30 * time.Second,
		LongTimeout: 120 * time.Second,
		MaxElapsed:  3 * time.Minute,
		MaxAttempts: 3,
		BackoffBase: time.Second,
		BackoffMax:  30 * time.Second,
		Temperature: DefaultTemperature,
	}
}

// Request is one completion call.
type Request struct {
	Prompt string
	// System replaces DefaultSystemPrompt when set.
	System    string
	Category  Category
	MaxTokens int
	Lane      Lane
	// ImageURL attaches an image (usually a data URL) for vision models.
	ImageURL string
}

// Result is a successful completion.
type Result struct {
	Text     string        `json:"text"`
	Model    ModelID       `json:"model"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
	Usage    openai.Usage  `json:"usage"`
}

// Transcription is a successful speech-to-text call.
type Transcription struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Model    ModelID `json:"model"`
	Attempts int     `json:"attempts"`
}

// Recorder receives call outcomes.
type Recorder interface {
	CompletionFinished(operation, outcome string, attempts int, elapsed time.Duration)
	RetryAttempted()
	BreakerStateChanged(state string)
}

type nopRecorder struct{}

func (nopRecorder) CompletionFinished(string, string, int, time.Duration) {}
func (nopRecorder) RetryAttempted()                                       {}
func (nopRecorder) BreakerStateChanged(string)                            {}

// Client calls an OpenAI-compatible completion provider.
type Client struct {
	cfg     Config
	logger  *zap.Logger
	metrics Recorder
	catalog Catalog
	limiter *rate.Limiter
	breaker *resilience.Breaker
	lanes   map[Lane]*resty.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithMetrics attaches an outcome recorder.
func WithMetrics(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// New creates a Client. Zero config fields take DefaultConfig values.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.LongTimeout <= 0 {
		cfg.LongTimeout = defaults.LongTimeout
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = defaults.MaxElapsed
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaults.BackoffBase
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = defaults.BackoffMax
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaults.Temperature
	}
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:     cfg,
		logger:  logger.Named("completion"),
		metrics: nopRecorder{},
		catalog: cfg.Catalog,
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.breaker == nil {
		c.breaker = resilience.New("completion", resilience.Settings{
			HalfOpenProbes: 2,
			Cooldown:       30 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !errs.KindOf(err).IsTransient()
			},
			OnStateChange: func(name string, from, to resilience.State) {
				c.metrics.BreakerStateChanged(to.String())
				c.logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	c.lanes = map[Lane]*resty.Client{
		LaneShort: c.newLane(cfg.Timeout),
		LaneLong:  c.newLane(cfg.LongTimeout),
	}
	return c
}

// Catalog returns the model catalog in use.
func (c *Client) Catalog() Catalog {
	return c.catalog
}

// SelectModel returns the first model for category in this client's catalog.
func (c *Client) SelectModel(category Category) ModelID {
	return c.catalog.Select(category)
}

// Complete sends one chat completion, retrying transient failures.
func (c *Client) Complete(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" && req.ImageURL == "" {
		return nil, errs.Validation("prompt is required")
	}

	model := c.catalog.Select(req.Category)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	body := openai.ChatCompletionRequest{
		Model:       string(model),
		Messages:    c.messages(req),
		MaxTokens:   maxTokens,
		Temperature: c.cfg.Temperature,
	}

	var out openai.ChatCompletionResponse
	start := time.Now()
	attempts, err := c.execute(ctx, "complete", req.Lane, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).SetResult(&out).Post(chatPath)
	})
	if err != nil {
		return nil, err
	}

	if len(out.Choices) == 0 {
		c.logger.Warn("Provider returned no choices", zap.String("model", string(model)))
		return nil, errs.New(errs.KindRequest, msgMalformed)
	}

	used := model
	if out.Model != "" {
		used = ModelID(out.Model)
	}
	return &Result{
		Text:     out.Choices[0].Message.Content,
		Model:    used,
		Attempts: attempts,
		Elapsed:  time.Since(start),
		Usage:    out.Usage,
	}, nil
}

// messages builds the conversation. Vision requests carry only the user turn.
func (c *Client) messages(req Request) []openai.ChatCompletionMessage {
	if req.ImageURL != "" {
		return []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: req.ImageURL}},
			},
		}}
	}

	system := req.System
	if system == "" {
		system = DefaultSystemPrompt
	}
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
	}
}

// Transcribe converts speech to text with the speech-to-text model.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte, language string) (*Transcription, error) {
	if len(audio) == 0 {
		return nil, errs.Validation("audio is required")
	}
	if filename == "" {
		filename = "audio.webm"
	}

	model := c.catalog.Select(CategorySpeechToText)
	form := map[string]string{
		"model":           string(model),
		"response_format": "json",
	}
	if language != "" {
		form["language"] = language
	}

	var out openai.AudioResponse
	attempts, err := c.execute(ctx, "transcribe", LaneLong, func(r *resty.Request) (*resty.Response, error) {
		return r.SetFileReader("file", filename, bytes.NewReader(audio)).
			SetFormData(form).
			SetResult(&out).
			Post(transcriptionPath)
	})
	if err != nil {
		return nil, err
	}

	return &Transcription{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
		Duration: out.Duration,
		Model:    model,
		Attempts: attempts,
	}, nil
}

// execute runs one provider call under the rate limiter, the breaker and the
// overall deadline, and returns how many attempts the transport made.
func (c *Client) execute(ctx context.Context, op string, lane Lane, send func(*resty.Request) (*resty.Response, error)) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.MaxElapsed)
	defer cancel()

	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		// Only a wait that would overrun the deadline is a local rate limit.
		e := errs.Wrap(errs.KindRateLimit, msgRateLimit, err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e = classifyErr(err)
		}
		c.metrics.CompletionFinished(op, string(e.Kind), 0, time.Since(start))
		return 0, e
	}

	ctx, counter := withAttemptCounter(ctx)
	client, ok := c.lanes[lane]
	if !ok {
		client = c.lanes[LaneShort]
	}

	var resp *resty.Response
	err := c.breaker.Do(func() error {
		var sendErr error
		resp, sendErr = send(client.R().SetContext(ctx).SetError(&openai.ErrorResponse{}))
		if e := Classify(resp, sendErr); e != nil {
			return e
		}
		return nil
	})

	attempts := int(counter.Load())
	elapsed := time.Since(start)
	if err == nil {
		c.metrics.CompletionFinished(op, "success", attempts, elapsed)
		c.logger.Debug("Provider call succeeded",
			zap.String("op", op),
			zap.String("lane", lane.String()),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed),
		)
		return attempts, nil
	}

	e := classifyErr(err)
	c.metrics.CompletionFinished(op, string(e.Kind), attempts, elapsed)

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("lane", lane.String()),
		zap.String("kind", string(e.Kind)),
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", elapsed),
	}
	if resp != nil && resp.RawResponse != nil {
		fields = append(fields, zap.Int("status", resp.StatusCode()))
		if apiErr, ok := resp.Error().(*openai.ErrorResponse); ok && apiErr.Error != nil {
			fields = append(fields, zap.String("provider_message", apiErr.Error.Message))
		}
		c.logger.Debug("Provider error body", zap.String("op", op), zap.ByteString("body", resp.Body()))
	}
	if e.Cause != nil && !errors.Is(e.Cause, context.Canceled) {
		fields = append(fields, zap.NamedError("cause", e.Cause))
	}
	c.logger.Warn("Provider call failed", fields...)

	return attempts, e
}
