package dashboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Ge9Nico/SWYM/internal/models"
	"github.com/Ge9Nico/SWYM/internal/paths"
)

// failureWriteTimeout bounds the status write made after a failed transfer.
const failureWriteTimeout = 10 * time.Second

// ObjectWriter stores upload bytes.
type ObjectWriter interface {
	Upload(ctx context.Context, bucket, object, contentType string, r io.Reader) error
}

// Ledger moves StatusRecords forward.
type Ledger interface {
	Advance(ctx context.Context, ref models.DocumentRef, upd models.StatusUpdate) (models.StatusRecord, error)
}

// File is one user-selected document.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Uploader is the upload entry point: it opens the StatusRecord in state uploading and
// transfers the bytes to the object path the ingestion function listens on.
type Uploader struct {
	objects   ObjectWriter
	ledger    Ledger
	namespace string
	bucket    string
	now       func() time.Time
}

// NewUploader returns an Uploader writing to bucket under namespace.
func NewUploader(objects ObjectWriter, ledger Ledger, namespace, bucket string) *Uploader {
	return &Uploader{objects: objects, ledger: ledger, namespace: namespace, bucket: bucket, now: time.Now}
}

// Upload stores f for id and returns the StatusRecord it opened. When the transfer fails the
// record is marked failed and returned together with the transfer error.
func (u *Uploader) Upload(ctx context.Context, id models.Identity, f File) (models.StatusRecord, error) {
	ref := models.DocumentRef{Owner: id.Owner, Key: paths.NewDocumentKey(u.now(), f.Name)}
	object := paths.UploadObject(u.namespace, ref)
	logCtx := slog.With("tenantId", ref.TenantID, "userId", ref.UserID, "documentKey", ref.Key, "gcsObject", object)

	rec, err := u.ledger.Advance(ctx, ref, models.StatusUpdate{Status: models.StatusUploading, FileName: f.Name})
	if err != nil {
		return models.StatusRecord{}, fmt.Errorf("failed to open status record: %w", err)
	}

	if err := u.objects.Upload(ctx, u.bucket, object, f.ContentType, f.Body); err != nil {
		logCtx.Error("Upload failed.", "error", err)
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
		defer cancel()
		failed, werr := u.ledger.Advance(writeCtx, ref, models.StatusUpdate{Status: models.StatusFailed, Error: err.Error()})
		if werr != nil {
			logCtx.Error("CRITICAL: Failed to update status to FAILED after an upload error.", "updateError", werr)
			failed = rec
		}
		return failed, fmt.Errorf("upload %s: %w", f.Name, err)
	}
	logCtx.Info("Upload complete.", "contentType", f.ContentType)
	return rec, nil
}
