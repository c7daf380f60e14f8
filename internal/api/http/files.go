package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/Bloom/backend/internal/domain/analysis"
	"github.com/GriffinCanCode/Bloom/backend/internal/domain/session"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/id"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/utils"
)

// CreateSession allocates a new upload session.
func (h *Handlers) CreateSession(c *gin.Context) {
	sid, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sid,
		"message":    "Session created successfully",
	})
}

// UploadFile stores a multipart file in the session and analyzes it. The file
// part is streamed straight into the store; "context" and "language" fields
// may come before or after it.
func (h *Handlers) UploadFile(c *gin.Context) {
	sid, err := sessionParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	mr, err := c.Request.MultipartReader()
	if err != nil {
		h.respondError(c, errs.Validation("expected multipart/form-data upload"))
		return
	}

	var (
		entry    *session.FileEntry
		note     string
		language string
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if isTooLarge(err) {
				h.respondError(c, err)
			} else {
				h.respondError(c, errs.Validation("malformed multipart body"))
			}
			return
		}

		switch part.FormName() {
		case "file":
			if entry != nil {
				part.Close()
				h.respondError(c, errs.Validation("only one file may be uploaded per request"))
				return
			}
			entry, err = h.sessions.AddFile(c.Request.Context(), sid, session.IncomingFile{
				Name:        part.FileName(),
				Size:        -1,
				ContentType: part.Header.Get("Content-Type"),
				Reader:      part,
			})
			if err != nil {
				part.Close()
				h.respondError(c, err)
				return
			}
		case "context":
			note, err = readField(part, utils.MaxContextSize)
		case "language":
			language, err = readField(part, 64)
		}
		part.Close()
		if err != nil {
			h.respondError(c, err)
			return
		}
	}

	if entry == nil {
		h.respondError(c, errs.Validation("No file provided"))
		return
	}

	res := h.analyzer.AnalyzeFile(c.Request.Context(), analysis.FileSubmission{
		SessionID: sid,
		FileID:    string(entry.ID),
		Context:   note,
		Language:  language,
	})

	body := resultBody(res, "analysis")
	body["file_id"] = entry.ID
	body["original_name"] = entry.OriginalName
	body["size"] = entry.Size
	body["type"] = entry.ContentType
	c.JSON(resultStatus(res), body)
}

// ListFiles lists a session's stored files alongside the session snapshot.
func (h *Handlers) ListFiles(c *gin.Context) {
	sid, err := sessionParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	files, err := h.sessions.ListFiles(c.Request.Context(), sid)
	if err != nil {
		h.respondError(c, err)
		return
	}
	body := gin.H{"files": files}
	if snap, ok := h.sessions.Get(sid); ok {
		body["session"] = snap
	}
	c.JSON(http.StatusOK, body)
}

// DeleteFile removes one file by id or id prefix.
func (h *Handlers) DeleteFile(c *gin.Context) {
	sid, err := sessionParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	removed, err := h.sessions.RemoveFile(c.Request.Context(), sid, c.Param("file_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": errs.Validation("File not found")})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "File deleted successfully",
	})
}

// EndSession removes the session and all its files.
func (h *Handlers) EndSession(c *gin.Context) {
	sid, err := sessionParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	removed, err := h.sessions.EndSession(c.Request.Context(), sid)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"removed": removed,
		"message": "Session ended successfully",
	})
}

func sessionParam(c *gin.Context) (id.SessionID, error) {
	sid, err := id.ParseSessionID(c.Param("session_id"))
	if err != nil {
		return "", errs.New(errs.KindValidation, err.Error())
	}
	return sid, nil
}

// readField reads a small text form field, rejecting values over max bytes.
func readField(r io.Reader, max int) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(max)+1))
	if err != nil {
		if isTooLarge(err) {
			return "", err
		}
		return "", errs.Validation("malformed form field")
	}
	if len(data) > max {
		return "", errs.Validation("form field exceeds maximum length of %d bytes", max)
	}
	return strings.TrimSpace(string(data)), nil
}

func bindError(err error) error {
	if isTooLarge(err) {
		return err
	}
	return errs.Validation("invalid JSON body")
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}
