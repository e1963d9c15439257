// Package docloader validates uploaded bytes against the configured
// envelope and parses supported formats into a single UTF-8 string,
// assigning each document a stable identity derived from its filename
// and content hash.
//
// New formats are added by writing a loader function with the
// signature `func([]byte) (string, error)` and registering it under
// its extension in the variant registry below — no other part of the
// package needs to change.
package docloader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"ragserver/pkg/xerr"
)

// loader parses raw bytes of one supported format into plain text.
type loader func([]byte) (string, error)

var registry = map[string]loader{
	".pdf":  loadPDF,
	".md":   loadText,
	".txt":  loadText,
	".docx": loadDocx,
}

// Loader validates and parses uploads against a configured envelope.
type Loader struct {
	allowed  map[string]struct{}
	maxBytes int64
}

// New builds a Loader. allowedExtensions is the configured allow-list
// (e.g. []string{".pdf", ".md", ".txt", ".docx"}); maxFileSizeMB bounds
// upload size.
func New(allowedExtensions []string, maxFileSizeMB int) *Loader {
	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return &Loader{
		allowed:  allowed,
		maxBytes: int64(maxFileSizeMB) * 1024 * 1024,
	}
}

// Validate rejects uploads whose extension isn't allow-listed or whose
// size exceeds the configured maximum.
func (l *Loader) Validate(filename string, sizeBytes int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := l.allowed[ext]; !ok {
		return xerr.UnsupportedFormat(fmt.Sprintf("unsupported file extension %q", ext))
	}
	if sizeBytes > l.maxBytes {
		return xerr.TooLarge(fmt.Sprintf("file size %d bytes exceeds maximum of %d bytes", sizeBytes, l.maxBytes))
	}
	return nil
}

// Parse dispatches to the registered variant for filename's extension
// and returns the extracted text along with a deterministic document
// identity derived from (filename, sha256(bytes)).
func (l *Loader) Parse(filename string, data []byte) (text string, documentID string, err error) {
	ext := strings.ToLower(filepath.Ext(filename))
	fn, ok := registry[ext]
	if !ok {
		return "", "", xerr.UnsupportedFormat(fmt.Sprintf("unsupported file extension %q", ext))
	}

	text, err = fn(data)
	if err != nil {
		return "", "", xerr.ParseFailed(fmt.Sprintf("failed to parse %s", filename), err)
	}
	if strings.TrimSpace(text) == "" {
		return "", "", xerr.ParseFailed("no extractable text", nil)
	}

	return text, DocumentID(filename, data), nil
}

// DocumentID derives a stable identity from filename and content hash
// so that re-uploading identical bytes under the same filename is
// idempotent, while identical filenames with different content don't
// collide.
func DocumentID(filename string, data []byte) string {
	sum := sha256.Sum256(data)
	contentHash := hex.EncodeToString(sum[:])

	nameSum := sha256.Sum256([]byte(filename + ":" + contentHash))
	full := hex.EncodeToString(nameSum[:])
	return full[:16]
}

// FileType returns the lower-cased extension of filename, as recorded
// on a DocumentSummary.
func FileType(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
