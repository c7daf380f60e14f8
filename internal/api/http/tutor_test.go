package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Bloom/backend/internal/domain/analysis"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
)

func TestTutorProcessText(t *testing.T) {
	s := newTestServer(t, 0)

	w, body := s.postJSON("/api/tutor/process-text", `{"problem":"Solve 2x+3=7","subject":"algebra"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "answer", body["solution"])
	assert.Equal(t, "success", body["status"])
	assert.NotContains(t, body, "translated")
	require.Len(t, s.completer.prompts, 1)
	assert.Contains(t, s.completer.prompts[0], "Analyze this algebra problem step by step:\nSolve 2x+3=7")

	w, body = s.postJSON("/api/tutor/process-text", `{"problem":"2+2","language":"Spanish"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "answer", body["solution"])
	assert.Equal(t, "traducido", body["translated"])
	assert.Contains(t, s.completer.prompts[1], "Analyze this mathematics problem")

	t.Run("missing problem", func(t *testing.T) {
		w, body := s.postJSON("/api/tutor/process-text", `{"subject":"physics"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", errorKind(body))
	})

	t.Run("malformed body", func(t *testing.T) {
		w, _ := s.postJSON("/api/tutor/process-text", `{"problem":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTutorProcessImage(t *testing.T) {
	s := newTestServer(t, 0)
	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 17)...)

	w, body := s.do(multipartRequest(t, "/api/tutor/process-image",
		[]formFile{{"image", "worksheet.png", png}}, map[string]string{"subject": "geometry"}, true))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "answer", body["solution"])
	require.Len(t, s.completer.prompts, 1)
	assert.Equal(t, analysis.ImageProblemQuery("geometry"), s.completer.prompts[0])

	w, body = s.do(multipartRequest(t, "/api/tutor/process-image",
		[]formFile{{"image", "worksheet.txt", []byte("x + 1 = 2")}}, nil, true))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", errorKind(body))

	w, body = s.do(multipartRequest(t, "/api/tutor/process-image", nil, map[string]string{"subject": "geometry"}, true))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", errorKind(body))
}

func TestTutorProcessSpeech(t *testing.T) {
	s := newTestServer(t, 0)

	w, body := s.do(multipartRequest(t, "/api/tutor/process-speech",
		[]formFile{{"audio", "question.webm", []byte("fake audio bytes")}},
		map[string]string{"subject": "physics", "language": "English"}, true))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "hello class", body["transcript"])
	assert.Equal(t, "answer", body["solution"])
	require.Len(t, s.completer.prompts, 1)
	assert.Contains(t, s.completer.prompts[0], "Analyze this physics problem step by step:\nhello class")

	w, body = s.do(multipartRequest(t, "/api/tutor/process-speech", nil, map[string]string{"subject": "physics"}, true))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", errorKind(body))

	t.Run("provider failure", func(t *testing.T) {
		s.completer.err = errs.New(errs.KindConnection, "Unable to connect to the AI service. Please try again later.")
		defer func() { s.completer.err = nil }()

		w, body := s.do(multipartRequest(t, "/api/tutor/process-speech",
			[]formFile{{"audio", "question.webm", []byte("fake audio bytes")}}, nil, true))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "connection_error", errorKind(body))
		assert.NotContains(t, body, "transcript")
	})

	t.Run("unclassified provider error", func(t *testing.T) {
		s.completer.err = errors.New("socket closed")
		defer func() { s.completer.err = nil }()

		w, body := s.do(multipartRequest(t, "/api/tutor/process-speech",
			[]formFile{{"audio", "question.webm", []byte("fake audio bytes")}}, nil, true))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "request_error", errorKind(body))
	})
}

func TestTutorLanguages(t *testing.T) {
	s := newTestServer(t, 0)

	w, body := s.do(httptest.NewRequest(http.MethodGet, "/api/tutor/languages", nil))
	require.Equal(t, http.StatusOK, w.Code)
	langs, ok := body["languages"].([]interface{})
	require.True(t, ok)
	require.Len(t, langs, len(analysis.SupportedLanguages()))

	first := langs[0].(map[string]interface{})
	assert.Equal(t, "en", first["code"])
	assert.Equal(t, "English", first["name"])

	codes := make([]string, 0, len(langs))
	for _, l := range langs {
		codes = append(codes, l.(map[string]interface{})["code"].(string))
	}
	for _, want := range []string{"es", "fr", "de", "zh", "hi", "ar", "ru", "pt", "ja"} {
		assert.Contains(t, codes, want)
	}
}
