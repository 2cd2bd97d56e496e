package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"marketmint/internal/config"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// versionSegment matches the "v1712345678" component Cloudinary puts in
// delivery URLs.
var versionSegment = regexp.MustCompile(`^v\d+$`)

// uploadAPI is the subset of the Cloudinary upload API the backend uses.
type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// Cloudinary stores uploads in a Cloudinary folder.
type Cloudinary struct {
	api    uploadAPI
	folder string
}

// NewCloudinary connects with CLOUDINARY_URL when set, otherwise with the
// individual credentials.
func NewCloudinary(cfg config.StorageConfig) (*Cloudinary, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	if cfg.CloudinaryURL != "" {
		cld, err = cloudinary.NewFromURL(cfg.CloudinaryURL)
	} else {
		cld, err = cloudinary.NewFromParams(cfg.CloudName, cfg.CloudAPIKey, cfg.CloudAPISecret)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to configure cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	return newCloudinary(&cld.Upload, cfg.CloudinaryFolder), nil
}

func newCloudinary(api uploadAPI, folder string) *Cloudinary {
	return &Cloudinary{api: api, folder: strings.Trim(folder, "/")}
}

func (c *Cloudinary) Save(ctx context.Context, r io.Reader, ext string) (string, error) {
	result, err := c.api.Upload(ctx, r, uploader.UploadParams{
		PublicID: uuid.NewString(),
		Folder:   c.folder,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message)
	}
	if result.SecureURL == "" {
		return "", errors.New("cloudinary returned no url")
	}

	return result.SecureURL, nil
}

func (c *Cloudinary) Delete(ctx context.Context, rawURL string) error {
	publicID, err := publicIDFromURL(rawURL)
	if err != nil {
		return err
	}

	result, err := c.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("failed to delete from cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("cloudinary rejected delete: %s", result.Error.Message)
	}

	return nil
}

// publicIDFromURL turns
// https://res.cloudinary.com/demo/image/upload/v17/marketmint/abc.jpg
// into marketmint/abc.
func publicIDFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid cloudinary url %q: %w", rawURL, err)
	}

	_, rest, found := strings.Cut(u.Path, "/upload/")
	if !found || rest == "" {
		return "", fmt.Errorf("url %q is not a cloudinary delivery url", rawURL)
	}

	segments := strings.Split(rest, "/")
	if len(segments) > 1 && versionSegment.MatchString(segments[0]) {
		segments = segments[1:]
	}

	publicID := strings.Join(segments, "/")
	publicID = strings.TrimSuffix(publicID, path.Ext(publicID))
	if publicID == "" {
		return "", fmt.Errorf("url %q has no public id", rawURL)
	}

	return publicID, nil
}
