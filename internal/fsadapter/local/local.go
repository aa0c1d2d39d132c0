// Package local provides a local filesystem storage adapter.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/shelfd/shelfd/internal/fsadapter"
	"github.com/shelfd/shelfd/internal/fsmeta"
)

// Config holds local filesystem adapter settings.
type Config struct {
	RootPath   string `json:"root_path"`
	CreateDirs bool   `json:"create_dirs"`
}

// Adapter implements fsadapter.Adapter on the local filesystem.
type Adapter struct {
	rootPath   string
	createDirs bool
}

// New creates a new local filesystem adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root_path is required")
	}

	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(cfg.RootPath, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	return &Adapter{
		rootPath:   cfg.RootPath,
		createDirs: cfg.CreateDirs,
	}, nil
}

// NewFromJSON creates an Adapter from raw JSON config.
func NewFromJSON(raw json.RawMessage) (*Adapter, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse local config: %w", err)
	}
	return New(cfg)
}

func (a *Adapter) fullPath(key string) string {
	return filepath.Join(a.rootPath, filepath.FromSlash(key))
}

// List returns raw metadata for every entry directly under dir.
func (a *Adapter) List(_ context.Context, dir string) ([]fsmeta.Raw, error) {
	entries, err := os.ReadDir(a.fullPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", fsadapter.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	metas := make([]fsmeta.Raw, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			// Entry vanished between ReadDir and Stat; skip it.
			continue
		}
		typ := "file"
		if entry.IsDir() {
			typ = "dir"
		}
		metas = append(metas, fsmeta.Raw{
			Path:      path.Join(dir, entry.Name()),
			Type:      typ,
			Timestamp: info.ModTime().Unix(),
			Size:      info.Size(),
		})
	}
	return metas, nil
}

// Metadata returns raw metadata for a single path.
func (a *Adapter) Metadata(_ context.Context, key string) (fsmeta.Raw, error) {
	info, err := os.Stat(a.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fsmeta.Raw{}, fmt.Errorf("%w: %s", fsadapter.ErrNotFound, key)
		}
		return fsmeta.Raw{}, fmt.Errorf("stat %s: %w", key, err)
	}

	typ := "file"
	if info.IsDir() {
		typ = "dir"
	}
	return fsmeta.Raw{
		Path:      key,
		Type:      typ,
		Timestamp: info.ModTime().Unix(),
		Size:      info.Size(),
	}, nil
}

// Read returns the full content at key.
func (a *Adapter) Read(_ context.Context, key string) ([]byte, error) {
	content, err := os.ReadFile(a.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", fsadapter.ErrNotFound, key)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return content, nil
}

// Write creates a new file at key atomically (temp file + rename).
func (a *Adapter) Write(_ context.Context, key string, content []byte) error {
	path := a.fullPath(key)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", fsadapter.ErrExists, key)
	}
	return a.writeAtomic(key, content)
}

// Update overwrites an existing file at key.
func (a *Adapter) Update(_ context.Context, key string, content []byte) error {
	if _, err := os.Stat(a.fullPath(key)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", fsadapter.ErrNotFound, key)
		}
		return fmt.Errorf("stat %s: %w", key, err)
	}
	return a.writeAtomic(key, content)
}

func (a *Adapter) writeAtomic(key string, content []byte) error {
	path := a.fullPath(key)
	dir := filepath.Dir(path)

	if a.createDirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dirs for %s: %w", key, err)
		}
	}

	// Write to temp file then rename for atomicity
	tmp, err := os.CreateTemp(dir, ".shelfd-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", key, err)
	}

	return nil
}

// Rename moves oldKey to newKey, refusing to clobber an existing target.
func (a *Adapter) Rename(_ context.Context, oldKey, newKey string) error {
	oldPath := a.fullPath(oldKey)
	newPath := a.fullPath(newKey)

	if _, err := os.Stat(oldPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", fsadapter.ErrNotFound, oldKey)
		}
		return fmt.Errorf("stat %s: %w", oldKey, err)
	}
	if _, err := os.Stat(newPath); err == nil {
		return fmt.Errorf("%w: %s", fsadapter.ErrExists, newKey)
	}

	if a.createDirs {
		if err := os.MkdirAll(filepath.Dir(newPath), 0755); err != nil {
			return fmt.Errorf("create dirs for %s: %w", newKey, err)
		}
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", oldKey, newKey, err)
	}
	return nil
}

// Delete removes the file at key.
func (a *Adapter) Delete(_ context.Context, key string) error {
	err := os.Remove(a.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", fsadapter.ErrNotFound, key)
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Type returns "local".
func (a *Adapter) Type() string { return "local" }

// Close is a no-op for local adapters.
func (a *Adapter) Close() error { return nil }
