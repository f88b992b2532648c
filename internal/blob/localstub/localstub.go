// Package localstub provides a filesystem-backed blob.Uploader used by
// tests and as the processor's fallback when no Azure connection string is
// configured, writing each container as a subdirectory under a root.
package localstub

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pinesagetechnology/filemonitor/internal/util/buffers"
)

// Backend is a filesystem-backed blob.Uploader implementation.
type Backend struct {
	root string
}

// New creates a Backend rooted at dir, creating it if absent.
func New(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("localstub: create root %q: %w", dir, err)
	}
	return &Backend{root: dir}, nil
}

// Upload writes r's contents to <root>/<container>/<objectName>, creating
// parent directories as needed for object names containing slashes.
func (b *Backend) Upload(ctx context.Context, container, objectName string, r io.Reader, size int64) error {
	dest := filepath.Join(b.root, container, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("localstub: create parent dir: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("localstub: create object: %w", err)
	}
	defer f.Close()

	buf := buffers.Get()
	defer buffers.Put(buf)
	if _, err := io.CopyBuffer(f, r, *buf); err != nil {
		return fmt.Errorf("localstub: write object: %w", err)
	}
	return nil
}

// ListContainers returns the top-level directory names under root.
func (b *Backend) ListContainers(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("localstub: list containers: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Probe verifies the root directory exists; it does not test whether it is
// writable.
func (b *Backend) Probe(ctx context.Context) (string, error) {
	if _, err := os.Stat(b.root); err != nil {
		return "", fmt.Errorf("localstub: probe root %q: %w", b.root, err)
	}
	return fmt.Sprintf("localstub backend ready at %s (no cloud storage configured)", b.root), nil
}
