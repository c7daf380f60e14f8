package analysis

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/Bloom/backend/internal/domain/extract"
	"github.com/GriffinCanCode/Bloom/backend/internal/domain/session"
	"github.com/GriffinCanCode/Bloom/backend/internal/providers/completion"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/id"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/utils"
)

// Completer is the provider side of a run.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (*completion.Result, error)
	Transcribe(ctx context.Context, filename string, audio []byte, language string) (*completion.Transcription, error)
}

// FileSource lends stored file bytes to a run.
type FileSource interface {
	ReadFile(ctx context.Context, sid id.SessionID, fileID string) ([]byte, *session.FileEntry, error)
}

// ContentExtractor turns bytes into analyzable content.
type ContentExtractor interface {
	Extract(data []byte) (*extract.Content, error)
}

// Orchestrator runs submissions through extraction, completion and optional
// translation, and converts every failure into an *errs.Error on the result.
type Orchestrator struct {
	completer Completer
	files     FileSource
	extractor ContentExtractor
	logger    *zap.Logger
	metrics   Recorder
	now       func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics attaches a run recorder.
func WithMetrics(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.metrics = r
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(c Completer, files FileSource, x ContentExtractor, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		completer: c,
		files:     files,
		extractor: x,
		logger:    logger.Named("analysis"),
		metrics:   nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run tracks the states one submission passes through.
type run struct {
	o     *Orchestrator
	task  Task
	trail []State
	start time.Time
	model completion.ModelID
	// transcript is the recognized speech of a spoken submission.
	transcript string
}

func (o *Orchestrator) begin(task Task) *run {
	return &run{o: o, task: task, trail: []State{StateReceived}, start: o.now()}
}

func (r *run) enter(s State) {
	r.trail = append(r.trail, s)
	r.o.logger.Debug("Analysis state", zap.String("task", string(r.task)), zap.String("state", string(s)))
}

// finish seals the result with the final state.
func (r *run) finish(final State, status Status, res AnalysisResult) *AnalysisResult {
	if r.trail[len(r.trail)-1] != final {
		r.enter(final)
	}
	res.State = final
	res.Status = status
	res.Trail = append([]State(nil), r.trail...)
	res.Elapsed = r.o.now().Sub(r.start)
	if res.Model == "" {
		res.Model = r.model
	}
	if res.Transcript == "" {
		res.Transcript = r.transcript
	}
	r.o.metrics.AnalysisFinished(string(r.task), string(final), res.Elapsed)

	fields := []zap.Field{
		zap.String("task", string(r.task)),
		zap.String("state", string(final)),
		zap.String("status", string(status)),
		zap.Duration("elapsed", res.Elapsed),
	}
	if res.Error != nil {
		fields = append(fields, zap.String("kind", string(res.Error.Kind)))
		r.o.logger.Warn("Analysis failed", fields...)
	} else {
		r.o.logger.Info("Analysis finished", fields...)
	}
	return &res
}

func (r *run) fail(err error, fallback errs.Kind) *AnalysisResult {
	return r.finish(StateFailed, StatusFailed, AnalysisResult{Error: toCallerError(err, fallback)})
}

// Analyze runs a prompt, pasted content or image submission.
func (o *Orchestrator) Analyze(ctx context.Context, req AnalysisRequest) *AnalysisResult {
	task := req.Task
	if task == "" {
		task = TaskGeneral
	}
	r := o.begin(task)

	if err := validateRequest(task, req); err != nil {
		return r.fail(err, errs.KindValidation)
	}
	r.enter(StateExtracted)

	creq := completion.Request{Category: task.Category(), Lane: completion.LaneShort}
	switch task {
	case TaskProblemSolving:
		creq.Prompt = problemPrompt(req.Subject, req.Text)
	case TaskContentAnalysis:
		creq.Prompt = contentPrompt(req.FileType, req.Text, req.Context)
		creq.System = contentSystemPrompt
		creq.MaxTokens = contentMaxTokens
		creq.Lane = completion.LaneLong
	case TaskTranslation:
		creq.Prompt = translationPrompt(ParseLanguage(req.Language).Name, req.Text)
	case TaskVision:
		creq.Prompt = visionQuery(req.Text, req.Context)
		creq.ImageURL = imageURL(req.Image)
		creq.MaxTokens = visionMaxTokens
	default:
		creq.Prompt = req.Text
	}

	// A translation task already answers in the target language.
	target := req.Language
	if task == TaskTranslation {
		target = ""
	}
	return o.complete(ctx, r, creq, target)
}

func validateRequest(task Task, req AnalysisRequest) error {
	var err error
	switch task {
	case TaskGeneral, TaskProblemSolving, TaskTranslation:
		err = utils.ValidatePrompt(req.Text)
	case TaskContentAnalysis:
		err = utils.ValidateContent(req.Text)
	case TaskVision:
		if strings.TrimSpace(req.Image) == "" {
			return errs.Validation("image is required")
		}
		if len(req.Text) > utils.MaxPromptSize {
			err = utils.ValidatePrompt(req.Text)
		}
	default:
		return errs.Validation("unknown task %q", task)
	}
	if err == nil {
		err = utils.ValidateContextNote(req.Context)
	}
	if err != nil {
		return errs.New(errs.KindValidation, err.Error())
	}
	return nil
}

// AnalyzeFile extracts a stored file and analyzes it. Files that cannot be read
// as text end the run as unextractable with a fixed explanation.
func (o *Orchestrator) AnalyzeFile(ctx context.Context, sub FileSubmission) *AnalysisResult {
	r := o.begin(TaskContentAnalysis)

	if err := utils.ValidateContextNote(sub.Context); err != nil {
		return r.fail(errs.New(errs.KindValidation, err.Error()), errs.KindValidation)
	}

	r.enter(StateExtracting)
	data, entry, err := o.files.ReadFile(ctx, sub.SessionID, sub.FileID)
	if err != nil {
		return r.fail(err, errs.KindStorage)
	}
	content, err := o.extractor.Extract(data)
	if err != nil {
		return r.fail(err, errs.KindExtraction)
	}

	fileType := entry.OriginalName
	if fileType == "" {
		fileType = content.MIME
	}

	switch content.Kind {
	case extract.KindUnsupported:
		return r.finish(StateUnextractable, StatusLimited, AnalysisResult{Response: extract.UnsupportedMessage})

	case extract.KindImage:
		r.enter(StateExtracted)
		r.task = TaskVision
		return o.complete(ctx, r, completion.Request{
			Prompt:    visionQuery(sub.Context, ""),
			Category:  completion.CategoryVision,
			ImageURL:  content.ImageDataURL(),
			MaxTokens: visionMaxTokens,
			Lane:      completion.LaneLong,
		}, sub.Language)

	case extract.KindAudio:
		t, err := o.completer.Transcribe(ctx, entry.OriginalName, content.Audio, spokenLanguage(sub.Language))
		if err != nil {
			return r.fail(err, errs.KindRequest)
		}
		if t.Text == "" {
			return r.finish(StateUnextractable, StatusLimited, AnalysisResult{Response: extract.UnsupportedMessage, Model: t.Model})
		}
		content = &extract.Content{Kind: extract.KindText, MIME: content.MIME, Text: t.Text}
		fileType = "audio transcript of " + fileType
	}

	r.enter(StateExtracted)
	note := sub.Context
	if content.Note != "" {
		note = strings.TrimSpace(content.Note + "\n" + note)
	}
	text := truncateUTF8(content.Text, utils.MaxContentSize)
	if len(text) < len(content.Text) {
		o.logger.Info("Truncated extracted text",
			zap.String("file_id", string(entry.ID)),
			zap.Int("original_bytes", len(content.Text)),
			zap.Int("kept_bytes", len(text)),
		)
	}

	return o.complete(ctx, r, completion.Request{
		Prompt:    contentPrompt(fileType, text, note),
		System:    contentSystemPrompt,
		Category:  completion.CategoryReasoning,
		MaxTokens: contentMaxTokens,
		Lane:      completion.LaneLong,
	}, sub.Language)
}

// Transcribe converts a speech clip to text.
func (o *Orchestrator) Transcribe(ctx context.Context, sub AudioSubmission) *AnalysisResult {
	r := o.begin("transcription")
	if err := validateAudio(sub.Audio); err != nil {
		return r.fail(err, errs.KindValidation)
	}

	r.enter(StateExtracted)
	r.enter(StateCompleting)
	t, err := o.completer.Transcribe(ctx, sub.Filename, sub.Audio, spokenLanguage(sub.Language))
	if err != nil {
		return r.fail(err, errs.KindRequest)
	}
	if t.Text == "" {
		return r.fail(errs.New(errs.KindRequest, "Could not transcribe audio"), errs.KindRequest)
	}
	return r.finish(StateCompleted, StatusSuccess, AnalysisResult{Response: t.Text, Language: t.Language, Model: t.Model})
}

// SolveSpoken transcribes a spoken problem and works it with the
// problem-solving template. The answer is translated into sub.Language, which
// also serves as the transcription hint.
func (o *Orchestrator) SolveSpoken(ctx context.Context, sub AudioSubmission, subject string) *AnalysisResult {
	r := o.begin(TaskProblemSolving)
	if err := validateAudio(sub.Audio); err != nil {
		return r.fail(err, errs.KindValidation)
	}

	r.enter(StateExtracting)
	t, err := o.completer.Transcribe(ctx, sub.Filename, sub.Audio, spokenLanguage(sub.Language))
	if err != nil {
		return r.fail(err, errs.KindRequest)
	}
	problem := strings.TrimSpace(t.Text)
	if problem == "" {
		return r.fail(errs.Validation("Could not transcribe audio"), errs.KindValidation)
	}
	r.transcript = truncateUTF8(problem, utils.MaxPromptSize)
	r.enter(StateExtracted)

	return o.complete(ctx, r, completion.Request{
		Prompt:   problemPrompt(subject, r.transcript),
		Category: TaskProblemSolving.Category(),
		Lane:     completion.LaneShort,
	}, sub.Language)
}

func validateAudio(audio []byte) error {
	if len(audio) == 0 {
		return errs.Validation("audio is required")
	}
	if int64(len(audio)) > utils.MaxUploadSize {
		return errs.Validation("audio exceeds maximum size of 16MB")
	}
	return nil
}

// complete runs the completing stage and, for a non-English target, the
// translation stage.
func (o *Orchestrator) complete(ctx context.Context, r *run, req completion.Request, target string) *AnalysisResult {
	r.enter(StateCompleting)
	res, err := o.completer.Complete(ctx, req)
	if err != nil {
		return r.fail(err, errs.KindRequest)
	}
	r.model = res.Model
	if strings.TrimSpace(res.Text) == "" {
		return r.fail(errs.New(errs.KindRequest, "No response generated"), errs.KindRequest)
	}

	lang := ParseLanguage(target)
	if lang.IsEnglish() {
		return r.finish(StateCompleted, StatusSuccess, AnalysisResult{Response: res.Text})
	}

	r.enter(StateCompleted)
	r.enter(StateTranslating)
	tr, err := o.completer.Complete(ctx, completion.Request{
		Prompt:    translationPrompt(lang.Name, res.Text),
		Category:  completion.CategoryMultilingual,
		MaxTokens: req.MaxTokens,
		Lane:      req.Lane,
	})
	if err == nil && strings.TrimSpace(tr.Text) == "" {
		err = errs.New(errs.KindRequest, "No translation generated")
	}
	if err != nil {
		return r.finish(StateTranslationFailed, StatusLimited, AnalysisResult{
			Response:         res.Text,
			Language:         lang.Name,
			TranslationError: toCallerError(err, errs.KindRequest),
		})
	}
	return r.finish(StateTranslated, StatusSuccess, AnalysisResult{
		Response:   res.Text,
		Translated: tr.Text,
		Language:   lang.Name,
	})
}

// spokenLanguage reduces a language hint to the ISO 639-1 code the
// transcription endpoint accepts, or "" to let the provider detect it.
func spokenLanguage(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	lang := ParseLanguage(s)
	if !lang.Known {
		return ""
	}
	base, _ := lang.Tag.Base()
	return base.String()
}

// toCallerError maps any error onto the caller-facing taxonomy. Classified
// errors pass through; everything else gets a generic message of kind fallback.
func toCallerError(err error, fallback errs.Kind) *errs.Error {
	if e, ok := errs.As(err); ok {
		return e
	}
	switch {
	case errors.Is(err, context.Canceled):
		return errs.Wrap(errs.KindRequest, "Request was cancelled.", err)
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.KindTimeout, "Request timed out. Please try again.", err)
	}

	msg := "Failed to process request"
	switch fallback {
	case errs.KindStorage:
		msg = "Session storage is unavailable"
	case errs.KindExtraction:
		msg = "Failed to extract file content"
	case errs.KindValidation:
		msg = "Invalid request"
	}
	return errs.Wrap(fallback, msg, err)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
