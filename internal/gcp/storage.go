package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// UploadAssetIfAbsent writes image bytes to a GCS object only if it doesn't
// already exist. Generated assets are append-only: a filename embeds its
// timestamp, so an existing object is the same bytes from a previous run.
func UploadAssetIfAbsent(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType string, data []byte) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 412 {
			slog.Info("SKIPPING: Object already mirrored.", "object", objectName)
			return nil // Not a failure in an idempotent workflow.
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 412 {
			slog.Info("SKIPPING: Object already mirrored.", "object", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// PublicAssetPath resolves the path under which a stored asset is served.
// When a CDN domain fronts the asset bucket the path is absolute; otherwise
// assets are served from the site's local image prefix.
func PublicAssetPath(cdnDomain, localPrefix, filename string) string {
	if cdnDomain != "" {
		return "https://" + strings.TrimRight(cdnDomain, "/") + "/" + filename
	}
	return path.Join(localPrefix, filename)
}
