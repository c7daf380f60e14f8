package extract

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
)

// ErrNoPDFText is the message for a PDF whose pages hold no text.
const ErrNoPDFText = "no readable text found in PDF"

type pdfHandler struct{}

func (pdfHandler) supports(mt *mimetype.MIME) bool {
	return mt.Is("application/pdf")
}

func (pdfHandler) extract(_ *Extractor, data []byte, mime string, _ int) (*Content, error) {
	pages, err := pdfPages(data)
	if err != nil {
		return nil, errs.Extraction("failed to extract text from PDF", err)
	}

	text := joinPages(pages)
	if text == "" {
		return nil, errs.Extraction(ErrNoPDFText, nil)
	}
	return &Content{Kind: KindText, MIME: mime, Text: text}, nil
}

// pdfPages returns the plain text of every page in order. Pages that fail to
// decode come back empty. The pdf package panics on some malformed inputs, so the
// whole read is guarded.
func pdfPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	n := rdr.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		pg := rdr.Page(i)
		if pg.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		txt, err := pg.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, txt)
	}
	return pages, nil
}

// joinPages renders non-empty pages as "Page N:\n<text>" separated by a blank
// line. N is the page's position in the document, so skipped pages leave gaps.
func joinPages(pages []string) string {
	blocks := make([]string, 0, len(pages))
	for i, page := range pages {
		text := strings.TrimSpace(page)
		if text == "" {
			continue
		}
		blocks = append(blocks, "Page "+strconv.Itoa(i+1)+":\n"+text)
	}
	return strings.Join(blocks, "\n\n")
}
