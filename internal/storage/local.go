package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// errKeyEscapes guards against keys that would resolve outside the
// storage directory.
var errKeyEscapes = errors.New("object key escapes storage directory")

// LocalClient stores objects as plain files under a directory. It is
// the default backend; the files it writes are served back as static
// content under /uploads/.
type LocalClient struct {
	dir string
}

// NewLocalClient constructs a local-disk backend rooted at dir.
func NewLocalClient(dir string) (*LocalClient, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("local storage directory is required")
	}
	return &LocalClient{dir: dir}, nil
}

// EnsureBucket creates the storage directory if it does not exist.
func (l *LocalClient) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(l.dir, 0o755)
}

// Put writes an object to disk.
func (l *LocalClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	path, err := l.resolve(key)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// Get opens a reader for an object on disk.
func (l *LocalClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fs.ErrNotExist
		}
		return nil, err
	}
	return f, nil
}

// Delete removes an object from disk. Deleting a missing object is not
// an error, matching the best-effort cleanup callers expect.
func (l *LocalClient) Delete(ctx context.Context, key string) error {
	path, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Bucket returns the storage directory.
func (l *LocalClient) Bucket() string {
	return l.dir
}

func (l *LocalClient) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.Base(key))
	if cleaned == "." || cleaned == ".." || strings.ContainsAny(key, "/\\") {
		return "", errKeyEscapes
	}
	return filepath.Join(l.dir, cleaned), nil
}
