package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ragchat/internal/domain"
)

// DefaultPath is the file name used when none is configured.
const DefaultPath = "vector_store.json"

// File persists the knowledge base as one JSON array of
// {"source","text","vector"} objects.
type File struct {
	path string
}

func New(path string) *File {
	if path == "" {
		path = DefaultPath
	}
	return &File{path: path}
}

func (f *File) Location() string { return f.path }

// Load reads the file. A missing file is an empty knowledge base.
func (f *File) Load() ([]domain.Chunk, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Chunk{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	var chunks []domain.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	return chunks, nil
}

// Save writes chunks to a temporary file next to the target and renames it
// over the target, so readers never observe a half-written file.
func (f *File) Save(chunks []domain.Chunk) error {
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(chunks); err != nil {
		return fmt.Errorf("encode knowledge base: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("rename into %s: %w", f.path, err)
	}
	return nil
}
