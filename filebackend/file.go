// Package filebackend stores verstats statistics in a YAML preferences file.
//
// The whole file is rewritten atomically (temp file + rename) on every
// mutation. Values must be valid UTF-8, as JSON-encoded statistics are.
package filebackend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"code.byted.org/khicago/verstats"
	"gopkg.in/yaml.v3"
)

// File implements verstats.Backend and verstats.Updater on a YAML file.
type File struct {
	path string

	mu   sync.Mutex
	data map[string]string
}

var (
	_ verstats.Backend = (*File)(nil)
	_ verstats.Updater = (*File)(nil)
)

// Open loads path, or starts empty if it does not exist yet. The file is
// created on the first write.
func Open(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("file path is required")
	}
	f := &File{path: filepath.Clean(path), data: make(map[string]string)}

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if err := yaml.Unmarshal(raw, &f.data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}
	if f.data == nil {
		f.data = make(map[string]string)
	}
	return f, nil
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

func (f *File) Write(ctx context.Context, key string, value []byte) error {
	return f.Update(ctx, key, func([]byte, bool) ([]byte, bool, error) {
		return value, value != nil, nil
	})
}

func (f *File) Read(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, verstats.ErrNotFound
	}
	return []byte(v), nil
}

func (f *File) Delete(ctx context.Context, key string) error {
	return f.Write(ctx, key, nil)
}

func (f *File) DeletePrefix(ctx context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := make(map[string]string)
	for k, v := range f.data {
		if strings.HasPrefix(k, prefix) {
			removed[k] = v
			delete(f.data, k)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	if err := f.persist(); err != nil {
		for k, v := range removed {
			f.data[k] = v
		}
		return err
	}
	return nil
}

func (f *File) LastVersion(ctx context.Context) (string, error) {
	data, err := f.Read(ctx, verstats.LastVersionKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *File) SetLastVersion(ctx context.Context, version string) error {
	return f.Write(ctx, verstats.LastVersionKey, []byte(version))
}

// Update applies fn and persists the result. The in-memory state is rolled
// back if the file cannot be written.
func (f *File) Update(ctx context.Context, key string, fn verstats.UpdateFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	old, found := f.data[key]
	var oldBytes []byte
	if found {
		oldBytes = []byte(old)
	}
	next, keep, err := fn(oldBytes, found)
	if err != nil {
		return err
	}

	if keep && next != nil {
		f.data[key] = string(next)
	} else {
		if !found {
			return nil
		}
		delete(f.data, key)
	}

	if err := f.persist(); err != nil {
		if found {
			f.data[key] = old
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

// Keys returns the sorted keys starting with prefix.
func (f *File) Keys(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// persist must be called with mu held.
func (f *File) persist() error {
	out, err := yaml.Marshal(f.data)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close preferences: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}
