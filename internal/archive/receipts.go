package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vet/internal/core"
)

// UploadsURLPrefix is where stored receipts are served from.
const UploadsURLPrefix = "/data/uploads/"

// ReceiptStore writes decoded receipt images into a directory.
type ReceiptStore struct {
	dir string
}

func NewReceiptStore(dir string) *ReceiptStore {
	return &ReceiptStore{dir: dir}
}

// Dir returns the uploads directory.
func (s *ReceiptStore) Dir() string { return s.dir }

// Save decodes an embedded receipt into <dir>/<name>.<ext> and returns the
// reference path clients should keep. Anything that is not an embedded
// receipt is returned unchanged.
func (s *ReceiptStore) Save(name, receipt string) (string, error) {
	if !core.IsEmbeddedReceipt(receipt) {
		return receipt, nil
	}
	mediaType, body, err := core.DecodeReceipt(receipt)
	if err != nil {
		// not a payload we can decode; keep it as sent
		return receipt, nil
	}

	filename := safeName(name) + "." + core.ReceiptExtension(mediaType)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, filename), body, 0o644); err != nil {
		return "", fmt.Errorf("write receipt %s: %w", filename, err)
	}
	return UploadsURLPrefix + filename, nil
}

// safeName keeps ids usable as file names inside the uploads directory.
func safeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
