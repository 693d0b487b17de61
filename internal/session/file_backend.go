package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend persists values as a single JSON file on disk. Used by the CLI
// so that a session survives process restarts, the same way the dashboard
// session survived page reloads.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Get(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	values, err := b.read()
	if err != nil {
		return "", false
	}
	val, ok := values[key]
	return val, ok
}

func (b *FileBackend) Set(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	values, err := b.read()
	if err != nil {
		return fmt.Errorf("read credentials file: %w", err)
	}
	values[key] = value
	return b.write(values)
}

func (b *FileBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	values, err := b.read()
	if err != nil {
		return fmt.Errorf("read credentials file: %w", err)
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return b.write(values)
}

func (b *FileBackend) read() (map[string]string, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		// corrupted file counts as empty, the session logic is fail-closed
		return map[string]string{}, nil
	}
	return values, nil
}

func (b *FileBackend) write(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	return os.WriteFile(b.path, data, 0o600)
}
