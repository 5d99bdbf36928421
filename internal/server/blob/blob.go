// Package blob uploads avatar images to an external object store and returns
// their public URLs. Two backends exist: Cloudinary and S3-compatible storage.
package blob

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/contactkeeper/internal/server/config"
)

// Store uploads data under name and returns a public URL.
type Store interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// New builds the Store selected by cfg.BlobBackend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendCloudinary:
		return NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	case config.BlobBackendS3:
		return NewS3Store(ctx, S3Config{
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ""
	}
}
