// Package extract turns uploaded bytes into something a language model can read.
//
// The dispatch key is the MIME type sniffed from the bytes with mimetype; the
// caller's declared content type is never consulted. Handlers are tried in order
// and the first one that supports the type wins:
//
//	gzip   -> decompress, re-dispatch once
//	image  -> base64 data URL for the vision model
//	pdf    -> "Page N:\n<text>" blocks joined by a blank line
//	audio  -> raw bytes for transcription
//	html   -> scripts dropped, one line per block element, title kept
//	text   -> UTF-8 text, rejected with a charset hint when not UTF-8
//
// Anything else is decoded as UTF-8 when possible. When it is not, Extract returns
// KindUnsupported with a fixed sentinel message rather than an error.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Bloom/backend/internal/shared/utils"
)

// Kind describes what the extracted content is.
type Kind string

const (
	KindText        Kind = "text"
	KindImage       Kind = "image"
	KindAudio       Kind = "audio"
	KindUnsupported Kind = "unsupported"
)

const (
	// UnsupportedNote is attached to best-effort text from an unrecognized type.
	UnsupportedNote = "This file type is not directly supported, but I'll try to analyze its text content."

	// UnsupportedMessage is returned in place of content that cannot be decoded.
	UnsupportedMessage = "This file type cannot be analyzed directly. Please provide specific questions about what you'd like to know about this file."
)

// Content is the normalized form of an upload.
type Content struct {
	Kind Kind
	// MIME is the sniffed type without parameters.
	MIME string
	// Text is set for KindText, and holds UnsupportedMessage for KindUnsupported.
	Text string
	// Image is the base64 payload for KindImage.
	Image string
	// Audio is the raw payload for KindAudio.
	Audio []byte
	// Note is guidance for the model about how the text was obtained.
	Note string
}

// ImageDataURL returns the data URL form of an image payload.
func (c *Content) ImageDataURL() string {
	if c.Kind != KindImage {
		return ""
	}
	return "data:" + c.MIME + ";base64," + c.Image
}

// Recorder receives extraction outcomes.
type Recorder interface {
	Extracted(kind string, mime string)
	ExtractionFailed(mime string)
}

type nopRecorder struct{}

func (nopRecorder) Extracted(string, string) {}
func (nopRecorder) ExtractionFailed(string)  {}

// handler extracts one family of types.
type handler interface {
	supports(mt *mimetype.MIME) bool
	extract(x *Extractor, data []byte, mime string, depth int) (*Content, error)
}

// Extractor dispatches uploads to the handler for their sniffed type.
type Extractor struct {
	logger     *zap.Logger
	metrics    Recorder
	maxDecoded int64
	handlers   []handler
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithMetrics attaches an outcome recorder.
func WithMetrics(r Recorder) Option {
	return func(x *Extractor) {
		if r != nil {
			x.metrics = r
		}
	}
}

// WithMaxDecoded bounds the size of decompressed payloads.
func WithMaxDecoded(n int64) Option {
	return func(x *Extractor) {
		if n > 0 {
			x.maxDecoded = n
		}
	}
}

// New creates an Extractor with the default handler chain.
func New(logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	x := &Extractor{
		logger:     logger.Named("extract"),
		metrics:    nopRecorder{},
		maxDecoded: utils.MaxUploadSize,
		handlers: []handler{
			gzipHandler{},
			imageHandler{},
			pdfHandler{},
			audioHandler{},
			newHTMLHandler(),
			textHandler{},
		},
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Extract normalizes data. The only error kind it returns is errs.KindExtraction.
func (x *Extractor) Extract(data []byte) (*Content, error) {
	content, err := x.dispatch(data, 0)
	if err != nil {
		mime := Detect(data)
		x.metrics.ExtractionFailed(mime)
		x.logger.Debug("Extraction failed", zap.String("mime", mime), zap.Error(err))
		return nil, err
	}
	x.metrics.Extracted(string(content.Kind), content.MIME)
	return content, nil
}

// Detect returns the sniffed MIME type of data without parameters.
func Detect(data []byte) string {
	return baseType(mimetype.Detect(data))
}

func (x *Extractor) dispatch(data []byte, depth int) (*Content, error) {
	if len(data) == 0 {
		return fallback(data, "application/octet-stream"), nil
	}

	mt := mimetype.Detect(data)
	mime := baseType(mt)

	for _, h := range x.handlers {
		if !h.supports(mt) {
			continue
		}
		content, err := h.extract(x, data, mime, depth)
		if err != nil {
			return nil, err
		}
		if content != nil {
			return content, nil
		}
	}

	return fallback(data, mime), nil
}

// fallback decodes unrecognized bytes as UTF-8 when possible.
func fallback(data []byte, mime string) *Content {
	if len(data) > 0 && utf8.Valid(data) {
		return &Content{Kind: KindText, MIME: mime, Text: string(data), Note: UnsupportedNote}
	}
	return &Content{Kind: KindUnsupported, MIME: mime, Text: UnsupportedMessage}
}

// baseType strips parameters such as "; charset=utf-8".
func baseType(mt *mimetype.MIME) string {
	base, _, _ := strings.Cut(mt.String(), ";")
	return strings.TrimSpace(base)
}

// lineage returns mt and its ancestors' base types, most specific first.
func lineage(mt *mimetype.MIME) []string {
	var out []string
	for m := mt; m != nil; m = m.Parent() {
		out = append(out, baseType(m))
	}
	return out
}
