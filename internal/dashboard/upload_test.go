package dashboard

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ge9Nico/SWYM/internal/models"
)

func TestUploader_OpensRecordAndWritesObject(t *testing.T) {
	store := newStore()
	writer := &fakeWriter{}
	u := NewUploader(writer, store, "artifacts", "bucket")
	u.now = func() time.Time { return time.UnixMilli(1700000000000) }

	rec, err := u.Upload(context.Background(), member, pdfFile("My Policy (2024).pdf"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploading, rec.Status)
	assert.Equal(t, "My Policy (2024).pdf", rec.FileName)
	assert.Equal(t, "1700000000000-My_Policy__2024_.pdf", rec.Key)

	assert.Contains(t, writer.objects, "artifacts/app/users/member/uploads/1700000000000-My_Policy__2024_.pdf")
	stored, ok := store.Status(models.DocumentRef{Owner: member.Owner, Key: rec.Key})
	require.True(t, ok)
	assert.Equal(t, models.StatusUploading, stored.Status)
}

func TestUploader_TransferFailureMarksFailed(t *testing.T) {
	store := newStore()
	writer := &fakeWriter{err: errors.New("network unreachable")}
	u := NewUploader(writer, store, "artifacts", "bucket")

	rec, err := u.Upload(context.Background(), member, pdfFile("a.pdf"))
	require.Error(t, err)
	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.NotEmpty(t, rec.Key)

	docs := store.Documents(member.Owner)
	require.Len(t, docs, 1)
	assert.Equal(t, models.StatusFailed, docs[0].Status)
	assert.Equal(t, "network unreachable", docs[0].Error)
}

func TestUploader_FailureRecordedAfterCancel(t *testing.T) {
	store := newStore()
	ctx, cancel := context.WithCancel(context.Background())
	writer := &cancellingWriter{cancel: cancel}
	u := NewUploader(writer, store, "artifacts", "bucket")

	_, err := u.Upload(ctx, member, pdfFile("a.pdf"))
	require.ErrorIs(t, err, context.Canceled)

	docs := store.Documents(member.Owner)
	require.Len(t, docs, 1)
	assert.Equal(t, models.StatusFailed, docs[0].Status)
}

type cancellingWriter struct {
	cancel context.CancelFunc
}

func (w *cancellingWriter) Upload(ctx context.Context, _, _, _ string, _ io.Reader) error {
	w.cancel()
	return ctx.Err()
}
