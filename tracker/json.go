package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// storeFile is the on-disk layout: pretty-printed JSON so the file stays
// human-readable and diffable, suitable for committing after each run.
type storeFile struct {
	Articles []Entry `json:"articles"`
}

// JSONBackend persists the entry collection to a single JSON file.
type JSONBackend struct {
	path string
}

// NewJSONBackend creates a backend writing to the given file path.
func NewJSONBackend(path string) *JSONBackend {
	return &JSONBackend{path: path}
}

// Load reads the full entry collection. A missing file is an empty store,
// not an error; the file is created on the first Save.
func (b *JSONBackend) Load() ([]Entry, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", b.path, err)
	}
	return f.Articles, nil
}

// Save writes the full entry collection, replacing prior content as a single
// atomic unit: the data goes to a temp file in the same directory which is
// then renamed over the target, so an interrupted process can never leave a
// half-written store behind.
func (b *JSONBackend) Save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(storeFile{Articles: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp store: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", b.path, err)
	}
	return nil
}
