// Package archive is the backend's record keeping: an append-only JSON file
// of everything clients have synced plus the decoded receipt images.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"vet/internal/core"
)

// Record is an expense as archived by the backend.
type Record struct {
	core.Expense
	ServerReceivedAt string `json:"_serverReceivedAt"`
}

// JSONFile keeps records as a pretty-printed JSON array.
type JSONFile struct {
	filename string
	mu       sync.Mutex
}

func NewJSONFile(filename string) *JSONFile {
	return &JSONFile{filename: filename}
}

// Filename returns the path of the backing file.
func (f *JSONFile) Filename() string { return f.filename }

// ReadAll returns every archived record. A missing or empty file is an
// empty archive; a corrupt one is an error.
func (f *JSONFile) ReadAll() ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// Append adds records to the end of the archive. The file is replaced
// atomically so a failed write leaves the previous contents intact.
func (f *JSONFile) Append(records []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.read()
	if err != nil {
		return err
	}
	return f.write(append(existing, records...))
}

func (f *JSONFile) read() ([]Record, error) {
	data, err := os.ReadFile(f.filename)
	if os.IsNotExist(err) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if len(data) == 0 {
		return []Record{}, nil
	}

	var out []Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", f.filename, err)
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

func (f *JSONFile) write(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}

	dir := filepath.Dir(f.filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".expenses-*.json")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.filename); err != nil {
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}
