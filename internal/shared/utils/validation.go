package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Size limits
const (
	MaxPromptSize   = 32 * 1024        // 32KB - free-text prompt
	MaxContentSize  = 2 * 1024 * 1024  // 2MB - pasted file content
	MaxContextSize  = 4 * 1024         // 4KB - caller supplied context note
	MaxUploadSize   = 16 * 1024 * 1024 // 16MB - single uploaded file
	MaxFileIDLength = 64
	MaxFilenameLen  = 200
)

var (
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	filenameStrip = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

	// reserved device names on Windows hosts
	reservedNames = map[string]bool{
		"CON": true, "AUX": true, "COM1": true, "COM2": true, "COM3": true, "COM4": true,
		"LPT1": true, "LPT2": true, "LPT3": true, "PRN": true, "NUL": true,
	}
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	if !utf8.ValidString(value) {
		return fmt.Errorf("%s must be valid UTF-8", fieldName)
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if len(value) > maxLen {
		return fmt.Errorf("%s must not exceed %d bytes", fieldName, maxLen)
	}

	// Check for null bytes (security issue)
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidatePrompt validates a free-text prompt
func ValidatePrompt(prompt string) error {
	return ValidateString(prompt, "prompt", 1, MaxPromptSize, true)
}

// ValidateContent validates pasted file content
func ValidateContent(content string) error {
	return ValidateString(content, "content", 1, MaxContentSize, true)
}

// ValidateContextNote validates the optional context string sent with uploads
func ValidateContextNote(note string) error {
	return ValidateString(note, "context", 0, MaxContextSize, false)
}

// ValidateFileID validates a file id or id prefix
func ValidateFileID(fileID string) error {
	if err := ValidateString(fileID, "file_id", 1, MaxFileIDLength, true); err != nil {
		return err
	}
	if !SafeIDPattern.MatchString(fileID) {
		return fmt.Errorf("file_id contains invalid characters (only alphanumeric, hyphens, and underscores allowed)")
	}
	return nil
}

// SanitizeFilename reduces an uploaded filename to a safe ASCII form that can be
// joined onto a directory without escaping it. Accented characters are folded to
// their base letter, path separators become underscores and everything outside
// [A-Za-z0-9_.-] is dropped. The result is "" when nothing usable remains.
func SanitizeFilename(name string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}

	folded = strings.NewReplacer("/", " ", "\\", " ").Replace(folded)
	folded = strings.Join(strings.Fields(folded), "_")
	folded = filenameStrip.ReplaceAllString(folded, "")
	folded = strings.Trim(folded, "._")

	if folded == "" {
		return ""
	}

	base := strings.TrimSuffix(folded, filepath.Ext(folded))
	if reservedNames[strings.ToUpper(base)] {
		folded = "_" + folded
	}

	if len(folded) > MaxFilenameLen {
		ext := filepath.Ext(folded)
		if len(ext) > 16 {
			ext = ""
		}
		folded = folded[:MaxFilenameLen-len(ext)] + ext
	}

	return folded
}
