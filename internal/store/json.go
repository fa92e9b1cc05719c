package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/frjar/frjarai/pkg/models"
)

// JSONHistory stores History as a single JSON object file.
type JSONHistory struct {
	path string
	mu   sync.Mutex
}

// NewJSONHistory creates a file-backed history store at path.
func NewJSONHistory(path string) *JSONHistory {
	return &JSONHistory{path: path}
}

// Path returns the backing file path.
func (s *JSONHistory) Path() string { return s.path }

// Load reads the history. A missing file yields an empty history; an
// undecodable one yields an empty history and ErrCorrupt.
func (s *JSONHistory) Load(_ context.Context) (History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := make(History)
	if err := readJSON(s.path, &h); err != nil {
		return make(History), err
	}
	return h, nil
}

// Save rewrites the whole file atomically.
func (s *JSONHistory) Save(_ context.Context, h History) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.path, h)
}

// JSONTraining stores the training set as a JSON array file.
type JSONTraining struct {
	path string
	mu   sync.Mutex
}

// NewJSONTraining creates a file-backed training store at path.
func NewJSONTraining(path string) *JSONTraining {
	return &JSONTraining{path: path}
}

// Path returns the backing file path.
func (s *JSONTraining) Path() string { return s.path }

// Load reads the training set. A missing file yields an empty slice; a
// file that is not a JSON array yields an empty slice and ErrCorrupt.
func (s *JSONTraining) Load(_ context.Context) ([]models.TrainingExample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.TrainingExample
	if err := readJSON(s.path, &out); err != nil {
		return []models.TrainingExample{}, err
	}
	if out == nil {
		out = []models.TrainingExample{}
	}
	return out, nil
}

// Save rewrites the whole file atomically.
func (s *JSONTraining) Save(_ context.Context, examples []models.TrainingExample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if examples == nil {
		examples = []models.TrainingExample{}
	}
	return writeJSONAtomic(s.path, examples)
}

// ── Internal Helpers ──

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return nil
}

// writeJSONAtomic writes v to a temp file in the target directory and
// renames it over path, so readers never observe a partial file.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("store: rename into %s: %w", path, err)
	}
	return nil
}
