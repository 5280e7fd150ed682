package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	lockFileName = ".lock"
	valueSuffix  = ".json"
)

// ErrLocked is returned by OpenFileStore when another process owns the
// directory.
var ErrLocked = errors.New("state directory is locked by another process")

// FileStore keeps one file per key in a directory it holds an exclusive lock
// on for its lifetime.
type FileStore struct {
	dir  string
	lock *os.File

	mu     sync.RWMutex
	closed bool
}

// OpenFileStore creates dir if needed and locks it.
func OpenFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	lock, err := acquireFileLock(filepath.Join(dir, lockFileName))
	if err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return nil, fmt.Errorf("%s: %w", dir, ErrLocked)
		}
		return nil, err
	}
	return &FileStore{dir: dir, lock: lock}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	return filepath.Join(s.dir, url.PathEscape(key)+valueSuffix), nil
}

func (s *FileStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, os.ErrClosed
	}
	p, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return data, true, nil
}

func (s *FileStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	return AtomicWriteFile(p, value, 0o600)
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, os.ErrClosed
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list state directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), valueSuffix)
		if !ok || e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		key, err := url.PathUnescape(name)
		if err != nil || !strings.HasPrefix(key, prefix) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases the directory lock. Idempotent.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return releaseFileLock(s.lock)
}
