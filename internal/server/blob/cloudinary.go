package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const cloudinaryFolder = "avatars"

type cloudinaryUploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// CloudinaryStore uploads images to Cloudinary. Re-uploading under the same
// name replaces the previous image.
type CloudinaryStore struct {
	uploader cloudinaryUploader
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryStore{uploader: &cld.Upload}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, name string, data []byte, _ string) (string, error) {
	res, err := s.uploader.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     name,
		Folder:       cloudinaryFolder,
		Overwrite:    api.Bool(true),
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected upload: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", errors.New("cloudinary returned no secure url")
	}
	return res.SecureURL, nil
}
