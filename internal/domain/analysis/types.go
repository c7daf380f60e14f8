package analysis

import (
	"strings"
	"time"

	"github.com/GriffinCanCode/Bloom/backend/internal/providers/completion"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/id"
)

// State is a step of one submission. Terminal states end the run.
type State string

const (
	StateReceived          State = "received"
	StateExtracting        State = "extracting"
	StateExtracted         State = "extracted"
	StateUnextractable     State = "unextractable"
	StateCompleting        State = "completing"
	StateCompleted         State = "completed"
	StateFailed            State = "failed"
	StateTranslating       State = "translating"
	StateTranslated        State = "translated"
	StateTranslationFailed State = "translation_failed"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	switch s {
	case StateUnextractable, StateCompleted, StateFailed, StateTranslated, StateTranslationFailed:
		return true
	}
	return false
}

// Status is the coarse outcome reported to callers.
type Status string

const (
	StatusSuccess Status = "success"
	// StatusLimited means a usable response with a degraded part, such as an
	// opaque file or a failed translation.
	StatusLimited Status = "limited"
	StatusFailed  Status = "failed"
)

// Task selects the prompt template and model category.
type Task string

const (
	TaskGeneral         Task = "general"
	TaskProblemSolving  Task = "problem-solving"
	TaskContentAnalysis Task = "content-analysis"
	TaskTranslation     Task = "translation"
	TaskVision          Task = "vision"
)

// ParseTask accepts the task names above, case-insensitively, with "_" or "-".
// Empty input means TaskGeneral.
func ParseTask(s string) (Task, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	switch Task(s) {
	case "":
		return TaskGeneral, nil
	case TaskGeneral, TaskProblemSolving, TaskContentAnalysis, TaskTranslation, TaskVision:
		return Task(s), nil
	}
	return "", errs.Validation("unknown task %q", s)
}

// Category returns the model capability the task runs on.
func (t Task) Category() completion.Category {
	switch t {
	case TaskProblemSolving, TaskContentAnalysis:
		return completion.CategoryReasoning
	case TaskTranslation:
		return completion.CategoryMultilingual
	case TaskVision:
		return completion.CategoryVision
	}
	return ""
}

// AnalysisRequest is a prompt, pasted content or image submission.
type AnalysisRequest struct {
	Text string
	Task Task
	// Language is the requested output language; empty means English.
	Language string
	Context  string
	// FileType labels pasted content, e.g. "PDF" or "notes.md".
	FileType string
	// Subject names the field for problem-solving prompts.
	Subject string
	// Image is a base64 payload or data URL for vision requests.
	Image string
}

// FileSubmission analyzes a file already stored in a session.
type FileSubmission struct {
	SessionID id.SessionID
	FileID    string
	Context   string
	Language  string
}

// AudioSubmission is a speech clip to transcribe.
type AudioSubmission struct {
	Filename string
	Audio    []byte
	// Language is the spoken language hint, as a name or code.
	Language string
}

// AnalysisResult is the outcome of one submission. It is built once and never
// changed; a retry produces a new result.
type AnalysisResult struct {
	State            State              `json:"state"`
	Status           Status             `json:"status"`
	Response         string             `json:"response"`
	Translated       string             `json:"translated,omitempty"`
	Transcript       string             `json:"transcript,omitempty"`
	Language         string             `json:"language,omitempty"`
	Error            *errs.Error        `json:"error,omitempty"`
	TranslationError *errs.Error        `json:"translation_error,omitempty"`
	Model            completion.ModelID `json:"model,omitempty"`
	Trail            []State            `json:"-"`
	Elapsed          time.Duration      `json:"-"`
}

// Succeeded reports whether the result carries a primary response.
func (r *AnalysisResult) Succeeded() bool {
	return r.Status != StatusFailed
}

// Output returns the translated text when present, else the primary response.
func (r *AnalysisResult) Output() string {
	if r.Translated != "" {
		return r.Translated
	}
	return r.Response
}

// Recorder receives run outcomes.
type Recorder interface {
	AnalysisFinished(task string, state string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) AnalysisFinished(string, string, time.Duration) {}
