package gcp

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ge9Nico/SWYM/internal/models"
)

// newEmulatorStore connects to the Firestore emulator. The client picks the emulator up from
// FIRESTORE_EMULATOR_HOST; without it the test is skipped.
func newEmulatorStore(t *testing.T) (*FirestoreStore, models.Owner) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := NewFirestoreClient(ctx, "swym-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	// A fresh user per test keeps runs against a shared emulator independent.
	owner := models.Owner{TenantID: "test-app", UserID: uuid.NewString()}
	return NewFirestoreStore(client, "artifacts"), owner
}

func TestFirestoreStore_Advance(t *testing.T) {
	store, owner := newEmulatorStore(t)
	ctx := context.Background()
	ref := models.DocumentRef{Owner: owner, Key: "1700000000000-a.pdf"}

	rec, err := store.Advance(ctx, ref, models.StatusUpdate{Status: models.StatusUploading, FileName: "a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", rec.FileName)

	_, err = store.Advance(ctx, ref, models.StatusUpdate{Status: models.StatusProcessing})
	require.NoError(t, err)
	_, err = store.Advance(ctx, ref, models.StatusUpdate{Status: models.StatusUploading})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = store.Advance(ctx, ref, models.StatusUpdate{Status: models.StatusFailed, Error: "boom"})
	require.NoError(t, err)
	_, err = store.Advance(ctx, ref, models.StatusUpdate{Status: models.StatusProcessing})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	feed := store.WatchDocuments(ctx, owner)
	defer feed.Stop()
	docs, err := feed.Next()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, ref.Key, docs[0].Key)
	assert.Equal(t, models.StatusFailed, docs[0].Status)
	assert.Equal(t, "boom", docs[0].Error)
	assert.Equal(t, "a.pdf", docs[0].FileName)
	assert.False(t, docs[0].CreatedAt.IsZero())
	assert.False(t, docs[0].CompletedAt.IsZero())
}

func TestFirestoreStore_AppendCompletesOnce(t *testing.T) {
	store, owner := newEmulatorStore(t)
	ctx := context.Background()
	ref := models.DocumentRef{Owner: owner, Key: "1700000000000-acme.pdf"}

	_, err := store.Advance(ctx, ref, models.StatusUpdate{Status: models.StatusProcessing})
	require.NoError(t, err)

	policy := models.StructuredPolicy{
		Provider: "Acme Insurance",
		Perks:    []models.Benefit{{Name: "Roadside", Description: "24/7"}},
	}
	written, err := store.Append(ctx, ref, policy, models.StatusUpdate{Strategy: "text", PageCount: 2})
	require.NoError(t, err)

	read, err := store.Policy(ctx, owner, written.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Insurance", read.Provider)
	assert.Equal(t, ref.Key, read.SourceFile)
	assert.Equal(t, policy.Perks, read.Perks)
	assert.WithinDuration(t, time.Now(), read.CreatedAt, time.Minute)

	again, err := store.Policy(ctx, owner, written.ID)
	require.NoError(t, err)
	assert.Equal(t, read, again)

	_, err = store.Append(ctx, ref, policy, models.StatusUpdate{})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	pf := store.WatchPolicies(ctx, owner)
	defer pf.Stop()
	policies, err := pf.Next()
	require.NoError(t, err)
	assert.Len(t, policies, 1, "a rejected append writes no policy")

	df := store.WatchDocuments(ctx, owner)
	defer df.Stop()
	docs, err := df.Next()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, models.StatusCompleted, docs[0].Status)
	assert.Equal(t, "text", docs[0].Strategy)
	assert.Equal(t, 2, docs[0].PageCount)
}

func TestFirestoreStore_AppendWithoutRecordRejected(t *testing.T) {
	store, owner := newEmulatorStore(t)
	ref := models.DocumentRef{Owner: owner, Key: "missing.pdf"}

	_, err := store.Append(context.Background(), ref, models.StructuredPolicy{Provider: "Acme"}, models.StatusUpdate{})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}
