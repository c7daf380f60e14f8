// Package id provides identifier generation for sessions, uploaded files and requests.
//
//   - SessionID: random UUIDv4. Session ids become directory names, so they are
//     validated with ParseSessionID before touching the filesystem.
//   - FileID: ULID. Lexicographically sortable, so a directory listing sorted by
//     name is also sorted by upload time.
//   - RequestID: "req_" prefixed ULID used for log correlation.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SessionID identifies an upload session.
type SessionID string

// FileID identifies a file inside a session.
type FileID string

// RequestID identifies an inbound API request.
type RequestID string

const RequestPrefix = "req"

// FileIDLength is the length of the canonical ULID text form.
const FileIDLength = ulid.EncodedSize

// Generator generates ULIDs.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic ordering
// inside the same millisecond.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewSessionID generates a new session ID
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// NewFileID generates a new file ID
func NewFileID() FileID {
	return FileID(Default().GenerateString())
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id SessionID) String() string { return string(id) }
func (id FileID) String() string    { return string(id) }
func (id RequestID) String() string { return string(id) }

// ParseSessionID validates a caller-supplied session id and returns its canonical
// lowercase form.
func ParseSessionID(s string) (SessionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("session id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid session id %q", s)
	}
	return SessionID(u.String()), nil
}

// IsFileID checks if s is a complete ULID
func IsFileID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Timestamp extracts the timestamp from a file ID
func Timestamp(id FileID) (time.Time, error) {
	parsed, err := ulid.Parse(string(id))
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
