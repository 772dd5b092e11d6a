package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/Ge9Nico/SWYM/internal/models"
	"github.com/Ge9Nico/SWYM/internal/paths"
)

// snapshotFeed adapts a Firestore query listener to models.Feed.
type snapshotFeed[T any] struct {
	it     *firestore.QuerySnapshotIterator
	decode func(*firestore.DocumentSnapshot) (T, error)
}

func (f *snapshotFeed[T]) Next() ([]T, error) {
	qs, err := f.it.Next()
	if err != nil {
		return nil, err
	}
	docs, err := qs.Documents.GetAll()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := f.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *snapshotFeed[T]) Stop() {
	f.it.Stop()
}

// WatchDocuments listens to owner's StatusRecords ordered by creation time.
func (s *FirestoreStore) WatchDocuments(ctx context.Context, owner models.Owner) models.Feed[models.StatusRecord] {
	q := s.client.Collection(paths.DocumentsCollection(s.namespace, owner)).OrderBy("createdAt", firestore.Asc)
	return &snapshotFeed[models.StatusRecord]{
		it: q.Snapshots(ctx),
		decode: func(snap *firestore.DocumentSnapshot) (models.StatusRecord, error) {
			var rec models.StatusRecord
			if err := snap.DataTo(&rec); err != nil {
				return models.StatusRecord{}, fmt.Errorf("decode status %s: %w", snap.Ref.ID, err)
			}
			rec.Key = snap.Ref.ID
			return rec, nil
		},
	}
}

// WatchPolicies listens to owner's PolicyRecords ordered by creation time.
func (s *FirestoreStore) WatchPolicies(ctx context.Context, owner models.Owner) models.Feed[models.PolicyRecord] {
	q := s.client.Collection(paths.PoliciesCollection(s.namespace, owner)).OrderBy("createdAt", firestore.Asc)
	return &snapshotFeed[models.PolicyRecord]{
		it:     q.Snapshots(ctx),
		decode: policyFromSnapshot,
	}
}
