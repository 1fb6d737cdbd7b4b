package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// KV is the durable key-value primitive the Store writes through.
// A SetItem call is treated as atomic.
type KV interface {
	// GetItem returns the value for key and whether it exists.
	GetItem(key string) ([]byte, bool, error)
	// SetItem replaces the value for key.
	SetItem(key string, value []byte) error
}

// MemoryKV is a process-local KV. It does not survive restarts.
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string][]byte)}
}

func (m *MemoryKV) GetItem(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) SetItem(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]byte(nil), value...)
	return nil
}

var validFileKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// LockFile is created in a FileKV directory while a process owns it.
const LockFile = ".lock"

// ErrLocked is returned when another FileKV holds the directory.
var ErrLocked = errors.New("drafts directory is in use")

// FileKV stores each key as <dir>/<key>.json. It holds <dir>/.lock until
// Close, so two processes never overwrite each other's collection.
type FileKV struct {
	dir  string
	lock string
}

// NewFileKV creates dir if needed, takes its lock and returns a FileKV
// rooted there.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	lock := filepath.Join(dir, LockFile)
	fh, err := os.OpenFile(lock, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s exists; remove it if no other draft process is running", ErrLocked, lock)
	}
	if err != nil {
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	_, err = fmt.Fprintf(fh, "%d\n", os.Getpid())
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(lock)
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &FileKV{dir: dir, lock: lock}, nil
}

// Close releases the directory lock.
func (f *FileKV) Close() error {
	if f.lock == "" {
		return nil
	}
	err := os.Remove(f.lock)
	f.lock = ""
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (f *FileKV) path(key string) (string, error) {
	if !validFileKey.MatchString(key) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *FileKV) GetItem(key string) ([]byte, bool, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// SetItem writes to a temp file and renames it over the old one, so readers
// see either the previous or the new value.
func (f *FileKV) SetItem(key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, "."+key+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}
