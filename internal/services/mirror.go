package services

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/travelcontentflow/internal/gcp"
)

// AssetMirror uploads cached assets to the public bucket the site serves
// images from. Object names are the timestamped cache filenames, so uploads
// are idempotent: an object that already exists is the same bytes.
type AssetMirror struct {
	bucket *storage.BucketHandle
}

func NewAssetMirror(client *storage.Client, bucketName string) (*AssetMirror, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("asset bucket name must be provided")
	}
	return &AssetMirror{bucket: client.Bucket(bucketName)}, nil
}

// Upload mirrors one cached file. Failures leave the asset usable from the
// local directory, so the caller logs and continues.
func (m *AssetMirror) Upload(ctx context.Context, localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read cached asset %s: %w", localPath, err)
	}

	name := filepath.Base(localPath)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return gcp.UploadAssetIfAbsent(ctx, m.bucket, name, contentType, data)
}
