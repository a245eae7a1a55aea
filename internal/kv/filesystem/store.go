package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/artpar/gqlswitch/internal/kv"
	"gopkg.in/yaml.v3"
)

// Store implements kv.Store as a single YAML document on disk.
// The whole document is rewritten on every Set.
type Store struct {
	mu     sync.RWMutex
	path   string
	data   map[string]string
	closed bool
}

// New opens the YAML store at path, creating its directory if needed.
// A missing file is an empty store.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &Store{
		path: path,
		data: make(map[string]string),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}

	var data map[string]string
	if err := yaml.Unmarshal(content, &data); err != nil {
		return fmt.Errorf("failed to parse store file: %w", err)
	}
	if data != nil {
		s.data = data
	}
	return nil
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", false, kv.ErrStoreClosed
	}

	v, ok := s.data[key]
	return v, ok, nil
}

// Set stores value under key and flushes the document to disk.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kv.ErrStoreClosed
	}
	if key == "" {
		return kv.ErrEmptyKey
	}

	next := make(map[string]string, len(s.data)+1)
	for k, v := range s.data {
		next[k] = v
	}
	next[key] = value

	content, err := yaml.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	if err := atomicWriteFile(s.path, content, 0644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}

	s.data = next
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// atomicWriteFile writes to a temp file in the target directory and renames
// it over path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ kv.Store = (*Store)(nil)
