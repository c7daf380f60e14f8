package extract

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
)

// buildPDF writes a minimal PDF with one page per entry. An empty entry yields a
// page with an empty content stream.
func buildPDF(t *testing.T, pages []string) []byte {
	t.Helper()

	var buf bytes.Buffer
	offsets := []int{0}
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets)-1, body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, text := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		}
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets), xref)

	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type countingRecorder struct {
	extracted map[string]int
	failed    int
}

func (r *countingRecorder) Extracted(kind, _ string) {
	if r.extracted == nil {
		r.extracted = make(map[string]int)
	}
	r.extracted[kind]++
}

func (r *countingRecorder) ExtractionFailed(string) { r.failed++ }

func TestExtractPDF(t *testing.T) {
	x := New(nil)

	t.Run("pages are numbered and joined", func(t *testing.T) {
		content, err := x.Extract(buildPDF(t, []string{"Photosynthesis basics", "", "Light reactions"}))
		require.NoError(t, err)

		assert.Equal(t, KindText, content.Kind)
		assert.Equal(t, "application/pdf", content.MIME)
		assert.True(t, strings.HasPrefix(content.Text, "Page 1:\n"))
		assert.Contains(t, content.Text, "Photosynthesis basics")
		assert.Contains(t, content.Text, "\n\nPage 3:\n")
		assert.Contains(t, content.Text, "Light reactions")
		assert.NotContains(t, content.Text, "Page 2:")
	})

	t.Run("all pages empty", func(t *testing.T) {
		_, err := x.Extract(buildPDF(t, []string{"", ""}))
		require.Error(t, err)

		e, ok := errs.As(err)
		require.True(t, ok)
		assert.Equal(t, errs.KindExtraction, e.Kind)
		assert.Equal(t, ErrNoPDFText, e.Message)
	})

	t.Run("corrupt document", func(t *testing.T) {
		_, err := x.Extract([]byte("%PDF-1.4\nthis is not really a pdf"))
		assert.Equal(t, errs.KindExtraction, errs.KindOf(err))
	})
}

func TestJoinPages(t *testing.T) {
	got := joinPages([]string{"first", "", "  \n ", " third \n"})
	assert.Equal(t, "Page 1:\nfirst\n\nPage 4:\nthird", got)

	assert.Empty(t, joinPages(nil))
	assert.Empty(t, joinPages([]string{"", " "}))
}

func TestExtractImage(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 17)...)

	content, err := New(nil).Extract(png)
	require.NoError(t, err)

	assert.Equal(t, KindImage, content.Kind)
	assert.Equal(t, "image/png", content.MIME)
	assert.NotEmpty(t, content.Image)
	assert.True(t, strings.HasPrefix(content.ImageDataURL(), "data:image/png;base64,"))
}

func TestExtractAudio(t *testing.T) {
	wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)

	content, err := New(nil).Extract(wav)
	require.NoError(t, err)

	assert.Equal(t, KindAudio, content.Kind)
	assert.True(t, strings.HasPrefix(content.MIME, "audio/"))
	assert.Equal(t, wav, content.Audio)
	assert.Empty(t, content.ImageDataURL())
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"plain", "Newton's second law: F = ma\n", "Newton's second law: F = ma\n"},
		{"json", `{"topic": "fractions", "level": 3}`, `{"topic": "fractions", "level": 3}`},
		{"unicode", "Ecuación: x² + y² = z²", "Ecuación: x² + y² = z²"},
	}

	x := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := x.Extract([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, KindText, content.Kind)
			assert.Equal(t, tt.want, content.Text)
			assert.Empty(t, content.Note)
		})
	}
}

func TestExtractTextNotUTF8(t *testing.T) {
	latin1 := []byte("La cr\xe8me br\xfbl\xe9e est un dessert fran\xe7ais tr\xe8s c\xe9l\xe8bre.\n")

	_, err := New(nil).Extract(latin1)
	require.Error(t, err)
	assert.Equal(t, errs.KindExtraction, errs.KindOf(err))
	assert.Contains(t, err.Error(), "UTF-8")
}

func TestExtractHTML(t *testing.T) {
	page := `<!DOCTYPE html><html><head><style>p{color:red}</style></head>
<body><h1>Cell Biology</h1><p>Mitochondria &amp; ribosomes</p><script>track()</script></body></html>`

	content, err := New(nil).Extract([]byte(page))
	require.NoError(t, err)

	assert.Equal(t, KindText, content.Kind)
	assert.Equal(t, "text/html", content.MIME)
	assert.Contains(t, content.Text, "Cell Biology")
	assert.Contains(t, content.Text, "Mitochondria & ribosomes")
	assert.NotContains(t, content.Text, "<h1>")
	assert.NotContains(t, content.Text, "track()")
	assert.NotContains(t, content.Text, "color:red")
	assert.Contains(t, content.Text, "Cell Biology\nMitochondria")
}

func TestExtractHTMLTitle(t *testing.T) {
	page := `<html><head><title>Photosynthesis Notes</title></head>
<body><ul><li>Light reactions</li><li>Calvin cycle</li></ul>Chlorophyll<br>absorbs light</body></html>`

	content, err := New(nil).Extract([]byte(page))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(content.Text, "Title: Photosynthesis Notes\n\n"), content.Text)
	assert.Contains(t, content.Text, "Light reactions\nCalvin cycle")
	assert.Contains(t, content.Text, "Chlorophyll\nabsorbs light")
}

func TestExtractGzip(t *testing.T) {
	x := New(nil)

	t.Run("decompressed and re-dispatched", func(t *testing.T) {
		content, err := x.Extract(gzipBytes(t, []byte("Chapter 1: The water cycle\n")))
		require.NoError(t, err)
		assert.Equal(t, KindText, content.Kind)
		assert.Equal(t, "Chapter 1: The water cycle\n", content.Text)
	})

	t.Run("only one layer", func(t *testing.T) {
		nested := gzipBytes(t, gzipBytes(t, []byte("deep")))
		content, err := x.Extract(nested)
		require.NoError(t, err)
		assert.Equal(t, KindUnsupported, content.Kind)
	})

	t.Run("bounded", func(t *testing.T) {
		small := New(nil, WithMaxDecoded(8))
		_, err := small.Extract(gzipBytes(t, bytes.Repeat([]byte("a"), 64)))
		assert.Equal(t, errs.KindExtraction, errs.KindOf(err))
	})
}

func TestExtractFallback(t *testing.T) {
	x := New(nil)

	t.Run("binary yields sentinel", func(t *testing.T) {
		content, err := x.Extract([]byte{0x00, 0x01, 0xff, 0xfe, 0x80, 0x81})
		require.NoError(t, err)
		assert.Equal(t, KindUnsupported, content.Kind)
		assert.Equal(t, UnsupportedMessage, content.Text)
	})

	t.Run("decodable bytes of unknown type", func(t *testing.T) {
		data := []byte("\x01\x02legacy export: score=42")
		content, err := x.Extract(data)
		require.NoError(t, err)
		assert.Equal(t, KindText, content.Kind)
		assert.Equal(t, string(data), content.Text)
		assert.Equal(t, UnsupportedNote, content.Note)
	})

	t.Run("empty", func(t *testing.T) {
		content, err := x.Extract(nil)
		require.NoError(t, err)
		assert.Equal(t, KindUnsupported, content.Kind)
	})
}

func TestExtractRecordsOutcomes(t *testing.T) {
	rec := &countingRecorder{}
	x := New(nil, WithMetrics(rec))

	_, err := x.Extract([]byte("hello"))
	require.NoError(t, err)
	_, err = x.Extract(buildPDF(t, []string{""}))
	require.Error(t, err)

	assert.Equal(t, 1, rec.extracted[string(KindText)])
	assert.Equal(t, 1, rec.failed)
}
