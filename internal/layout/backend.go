package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	c "github.com/patrickmn/go-cache"
)

// Backend is a local string-keyed blob store.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// FileBackend keeps one JSON file per key under a directory.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, filepath.Base(key)+".json")
}

func (b *FileBackend) Get(key string) ([]byte, bool, error) {
	body, err := os.ReadFile(b.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read layout %s: %w", key, err)
	}
	return body, true, nil
}

// Set writes through a temporary file and renames it into place so a crash
// never leaves a half written blob.
func (b *FileBackend) Set(key string, value []byte) error {
	if err := os.MkdirAll(b.dir, 0750); err != nil {
		return fmt.Errorf("failed to create layout directory: %w", err)
	}
	tmp, err := os.CreateTemp(b.dir, filepath.Base(key)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp layout file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write layout %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write layout %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), b.path(key)); err != nil {
		return fmt.Errorf("failed to replace layout %s: %w", key, err)
	}
	return nil
}

func (b *FileBackend) Delete(key string) error {
	err := os.Remove(b.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete layout %s: %w", key, err)
	}
	return nil
}

// CacheBackend keeps blobs in process memory. Entries never expire.
type CacheBackend struct {
	cache *c.Cache
}

func NewCacheBackend() *CacheBackend {
	return &CacheBackend{cache: c.New(c.NoExpiration, 10*time.Minute)}
}

func (b *CacheBackend) Get(key string) ([]byte, bool, error) {
	v, found := b.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	body, ok := v.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("layout %s: unexpected cached type %T", key, v)
	}
	return append([]byte(nil), body...), true, nil
}

func (b *CacheBackend) Set(key string, value []byte) error {
	b.cache.Set(key, append([]byte(nil), value...), c.NoExpiration)
	return nil
}

func (b *CacheBackend) Delete(key string) error {
	b.cache.Delete(key)
	return nil
}
