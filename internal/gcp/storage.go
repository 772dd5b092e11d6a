package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// ErrObjectExists is returned by Upload when the destination object is already present.
var ErrObjectExists = errors.New("object already exists")

// ObjectStore reads and writes upload objects in Cloud Storage.
type ObjectStore struct {
	client *storage.Client
}

// NewObjectStore wraps client.
func NewObjectStore(client *storage.Client) *ObjectStore {
	return &ObjectStore{client: client}
}

// Download streams gs://bucket/object into destPath.
func (s *ObjectStore) Download(ctx context.Context, bucket, object, destPath string) error {
	gcsReader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()

	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	if _, err := io.Copy(localFile, gcsReader); err != nil {
		_ = localFile.Close()
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	if err := localFile.Close(); err != nil {
		return fmt.Errorf("failed to flush local file %s: %w", destPath, err)
	}
	return nil
}

// Upload writes r to gs://bucket/object with contentType, only if the object does not exist yet.
// The content type becomes the declared type the ingestion function dispatches on.
func (s *ObjectStore) Upload(ctx context.Context, bucket, object, contentType string, r io.Reader) error {
	writer := s.client.Bucket(bucket).Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", classifyWriteError(object, err))
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS write: %w", classifyWriteError(object, err))
	}
	return nil
}

func classifyWriteError(object string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		slog.Warn("Upload target already exists.", "gcsObject", object)
		return fmt.Errorf("%w: %s", ErrObjectExists, object)
	}
	return err
}
