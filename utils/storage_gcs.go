package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var ErrStorageNotConfigured = errors.New("GCS_BUCKET is not set")

// getGoogleClient prefers ADC; GCS_CREDENTIALS_JSON overrides it (local runs).
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func ArchiveEnabled() bool {
	return strings.TrimSpace(os.Getenv("GCS_BUCKET")) != ""
}

// UploadToGCS writes data to GCS_BUCKET/objectName and returns the gs:// URI.
func UploadToGCS(ctx context.Context, objectName string, contentType string, data []byte) (string, error) {
	bucketName := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucketName == "" {
		return "", ErrStorageNotConfigured
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("gcs upload %q: %w", objectName, err)
	}
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
