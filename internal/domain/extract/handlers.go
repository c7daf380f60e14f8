package extract

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"

	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
)

type imageHandler struct{}

func (imageHandler) supports(mt *mimetype.MIME) bool {
	return strings.HasPrefix(baseType(mt), "image/")
}

func (imageHandler) extract(_ *Extractor, data []byte, mime string, _ int) (*Content, error) {
	return &Content{
		Kind:  KindImage,
		MIME:  mime,
		Image: base64.StdEncoding.EncodeToString(data),
	}, nil
}

type audioHandler struct{}

func (audioHandler) supports(mt *mimetype.MIME) bool {
	return strings.HasPrefix(baseType(mt), "audio/")
}

func (audioHandler) extract(_ *Extractor, data []byte, mime string, _ int) (*Content, error) {
	return &Content{Kind: KindAudio, MIME: mime, Audio: data}, nil
}

// gzipHandler decompresses one layer. Nested archives fall through to the
// fallback path.
type gzipHandler struct{}

func (gzipHandler) supports(mt *mimetype.MIME) bool {
	return mt.Is("application/gzip")
}

func (gzipHandler) extract(x *Extractor, data []byte, _ string, depth int) (*Content, error) {
	if depth > 0 {
		return nil, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Extraction("failed to open compressed file", err)
	}
	defer zr.Close()

	decoded, err := io.ReadAll(io.LimitReader(zr, x.maxDecoded+1))
	if err != nil {
		return nil, errs.Extraction("failed to decompress file", err)
	}
	if int64(len(decoded)) > x.maxDecoded {
		return nil, errs.Extraction(fmt.Sprintf("decompressed content exceeds %dMB", x.maxDecoded/(1024*1024)), nil)
	}

	return x.dispatch(decoded, depth+1)
}

type htmlHandler struct {
	policy *bluemonday.Policy
}

func newHTMLHandler() htmlHandler {
	return htmlHandler{policy: bluemonday.StrictPolicy()}
}

func (htmlHandler) supports(mt *mimetype.MIME) bool {
	return mt.Is("text/html")
}

func (h htmlHandler) extract(_ *Extractor, data []byte, mime string, _ int) (*Content, error) {
	if !utf8.Valid(data) {
		return nil, notUTF8(data)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Extraction("failed to parse HTML", err)
	}
	doc.Find("script, style, noscript, template").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())

	// Block elements end a line once tags are stripped.
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).AppendHtml("\n")

	body, err := doc.Find("body").First().Html()
	if err != nil {
		return nil, errs.Extraction("failed to render HTML", err)
	}
	text := collapseBlankLines(html.UnescapeString(h.policy.Sanitize(body)))
	if title != "" && !strings.HasPrefix(text, title) {
		text = "Title: " + title + "\n\n" + text
	}
	return &Content{Kind: KindText, MIME: mime, Text: text}, nil
}

const blockSelector = "p, div, li, tr, h1, h2, h3, h4, h5, h6, pre, blockquote, section, article, table, ul, ol"

type textHandler struct{}

func (textHandler) supports(mt *mimetype.MIME) bool {
	for _, t := range lineage(mt) {
		if strings.HasPrefix(t, "text/") || t == "application/json" || t == "application/xml" {
			return true
		}
	}
	return false
}

func (textHandler) extract(_ *Extractor, data []byte, mime string, _ int) (*Content, error) {
	if !utf8.Valid(data) {
		return nil, notUTF8(data)
	}
	return &Content{Kind: KindText, MIME: mime, Text: string(data)}, nil
}

// notUTF8 builds the extraction error for text that is not UTF-8, naming the
// charset it most likely is.
func notUTF8(data []byte) error {
	guess := "an unknown encoding"
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err == nil && result != nil && result.Charset != "" {
		guess = result.Charset
	}
	return errs.Extraction(fmt.Sprintf("file is not valid UTF-8 text (looks like %s); re-save it as UTF-8 and upload again", guess), nil)
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
