package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"marketmint/internal/config"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNotImage = errors.New("file is not a supported image")
)

// allowedImageTypes are the content types accepted for listing pictures.
// SVG is excluded because it can carry script.
var allowedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/avif",
	"image/bmp",
}

// Storage persists uploaded images and hands back the public URL they are
// reachable under.
type Storage interface {
	// Save writes r under a fresh name ending in ext and returns its URL.
	Save(ctx context.Context, r io.Reader, ext string) (string, error)
	// Delete removes the object behind url. Unknown objects are not an error.
	Delete(ctx context.Context, url string) error
}

// New builds the backend selected by cfg.Backend.
func New(cfg config.StorageConfig, publicBaseURL string) (Storage, error) {
	switch cfg.Backend {
	case config.StorageLocal:
		return NewLocal(cfg.UploadDir, publicBaseURL)
	case config.StorageCloudinary:
		return NewCloudinary(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// DetectImage sniffs the content of r and rewinds it. It returns the
// detected MIME type or ErrNotImage.
func DetectImage(r io.ReadSeeker) (*mimetype.MIME, error) {
	mime, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to detect content type: %w", err)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind upload: %w", err)
	}

	for _, allowed := range allowedImageTypes {
		if mime.Is(allowed) {
			return mime, nil
		}
	}

	return nil, ErrNotImage
}
