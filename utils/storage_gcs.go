package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// BlobStore is the binary-resource collaborator: write bytes to a freshly
// named location and read them back by location. Only the profile image
// goes through it.
type BlobStore interface {
	Write(ctx context.Context, name string, data []byte) (location string, err error)
	Read(ctx context.Context, location string) ([]byte, error)
}

// getGoogleClient initializes a Google Cloud Storage client.
// Prefers ADC (service account / GOOGLE_APPLICATION_CREDENTIALS); set
// GCS_CREDENTIALS_JSON to provide explicit JSON locally.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// GCSBlobStore stores blobs as objects in a single bucket and addresses
// them with gs://bucket/object locations.
type GCSBlobStore struct {
	Bucket string
}

func NewGCSBlobStore() (*GCSBlobStore, error) {
	bucket := os.Getenv("GCS_BUCKET")
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	return &GCSBlobStore{Bucket: bucket}, nil
}

func (s *GCSBlobStore) Write(ctx context.Context, name string, data []byte) (string, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	w := client.Bucket(s.Bucket).Object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", s.Bucket, name), nil
}

func (s *GCSBlobStore) Read(ctx context.Context, location string) ([]byte, error) {
	object := strings.TrimPrefix(location, fmt.Sprintf("gs://%s/", s.Bucket))
	if object == location {
		return nil, fmt.Errorf("location %q is not in bucket %s", location, s.Bucket)
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	r, err := client.Bucket(s.Bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
