package docloader

import (
	"fmt"
	"unicode/utf8"
)

// loadText decodes .md and .txt uploads as UTF-8. Markdown is treated
// as plain text for retrieval — no markup stripping.
func loadText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("content is not valid UTF-8")
	}
	return string(data), nil
}
