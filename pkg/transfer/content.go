package transfer

import (
	"mime"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

// contentType guesses the MIME type of a file from its extension, then from
// its first bytes.
func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	m, err := mimetype.DetectFile(path)
	if err != nil || m == nil {
		return defaultContentType
	}
	return m.String()
}
