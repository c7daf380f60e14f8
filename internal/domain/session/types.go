package session

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/GriffinCanCode/Bloom/backend/internal/shared/id"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/utils"
)

const (
	DefaultTTL         = time.Hour
	DefaultMaxFileSize = utils.MaxUploadSize
	tempPattern        = ".upload-*"
)

// Config controls workspace placement and limits.
type Config struct {
	BaseDir     string
	TTL         time.Duration
	MaxFileSize int64
}

// DefaultConfig places workspaces under the system temp directory.
func DefaultConfig() Config {
	return Config{
		BaseDir:     filepath.Join(os.TempDir(), "bloom_sessions"),
		TTL:         DefaultTTL,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// Session is a read-only snapshot of a live session.
type Session struct {
	ID        id.SessionID `json:"session_id"`
	Dir       string       `json:"-"`
	CreatedAt time.Time    `json:"created_at"`
	FileCount int          `json:"file_count"`
}

// IncomingFile is an upload that has not been stored yet.
type IncomingFile struct {
	Name string
	// Size is the declared byte length, or -1 when unknown. The stored length is
	// enforced independently while copying.
	Size int64
	// ContentType is the caller's claim; it is recorded but never trusted.
	ContentType string
	Reader      io.Reader
}

// FileEntry describes a stored upload.
type FileEntry struct {
	ID           id.FileID `json:"file_id"`
	OriginalName string    `json:"original_name"`
	StoredName   string    `json:"stored_name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"type"`
	ClaimedType  string    `json:"claimed_type,omitempty"`
	Path         string    `json:"-"`
}

// FileMetadata is what ListFiles reconstructs from the workspace.
type FileMetadata struct {
	ID         id.FileID `json:"file_id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Recorder receives session lifecycle events.
type Recorder interface {
	SessionOpened()
	SessionClosed(reason string)
	FileStored(bytes int64)
	FileRejected(reason string)
}

type nopRecorder struct{}

func (nopRecorder) SessionOpened()       {}
func (nopRecorder) SessionClosed(string) {}
func (nopRecorder) FileStored(int64)     {}
func (nopRecorder) FileRejected(string)  {}
