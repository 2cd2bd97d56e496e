package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix is the path uploads are served under.
const URLPrefix = "/uploads/"

// Local keeps uploads in a directory on disk.
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates dir if needed. When baseURL is empty the returned URLs
// are host-relative.
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &Local{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir returns the directory files are written to.
func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) Save(ctx context.Context, r io.Reader, ext string) (string, error) {
	name := uuid.NewString() + ext
	target := filepath.Join(l.dir, name)

	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("failed to close upload: %w", err)
	}

	return l.baseURL + URLPrefix + name, nil
}

func (l *Local) Delete(ctx context.Context, rawURL string) error {
	name, err := l.fileName(rawURL)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(l.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete upload: %w", err)
	}

	return nil
}

// fileName extracts the stored file name from a URL produced by Save.
func (l *Local) fileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid upload url %q: %w", rawURL, err)
	}

	if !strings.HasPrefix(u.Path, URLPrefix) {
		return "", fmt.Errorf("url %q is not a local upload", rawURL)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("url %q does not name a file", rawURL)
	}

	return name, nil
}
