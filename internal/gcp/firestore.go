package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Ge9Nico/SWYM/internal/models"
	"github.com/Ge9Nico/SWYM/internal/paths"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreStore keeps StatusRecords and PolicyRecords under a namespace.
// Every status write is a transaction that re-reads the record and enforces the forward-only rule.
type FirestoreStore struct {
	client    *firestore.Client
	namespace string
}

// NewFirestoreStore wraps client.
func NewFirestoreStore(client *firestore.Client, namespace string) *FirestoreStore {
	return &FirestoreStore{client: client, namespace: namespace}
}

// Advance moves ref's StatusRecord forward, creating it if absent.
func (s *FirestoreStore) Advance(ctx context.Context, ref models.DocumentRef, upd models.StatusUpdate) (models.StatusRecord, error) {
	docRef := s.client.Doc(paths.StatusDocument(s.namespace, ref))
	var (
		rec    models.StatusRecord
		exists bool
	)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, found, err := getStatus(tx, docRef)
		if err != nil {
			return err
		}
		rec, exists = current, found
		if err := models.CheckTransition(statusOf(current, exists), upd.Status); err != nil {
			return err
		}
		return writeStatus(tx, docRef, exists, upd)
	})
	if err != nil {
		return models.StatusRecord{}, fmt.Errorf("advance %s to %s: %w", ref.Key, upd.Status, err)
	}
	// Server timestamps are only known after a re-read; the caller gets the local view.
	rec.Key = ref.Key
	if err := upd.Apply(&rec, exists, time.Now()); err != nil {
		return models.StatusRecord{}, err
	}
	return rec, nil
}

// Append writes a new PolicyRecord for ref and completes ref's StatusRecord in the same transaction.
// It never touches an existing PolicyRecord.
func (s *FirestoreStore) Append(ctx context.Context, ref models.DocumentRef, policy models.StructuredPolicy, meta models.StatusUpdate) (models.PolicyRecord, error) {
	statusRef := s.client.Doc(paths.StatusDocument(s.namespace, ref))
	record := models.NewPolicyRecord(uuid.NewString(), policy, ref.Key)
	policyRef := s.client.Collection(paths.PoliciesCollection(s.namespace, ref.Owner)).Doc(record.ID)
	meta.Status = models.StatusCompleted

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, exists, err := getStatus(tx, statusRef)
		if err != nil {
			return err
		}
		if err := models.CheckTransition(statusOf(current, exists), models.StatusCompleted); err != nil {
			return err
		}
		if err := tx.Create(policyRef, record); err != nil {
			return fmt.Errorf("create policy: %w", err)
		}
		return writeStatus(tx, statusRef, exists, meta)
	})
	if err != nil {
		return models.PolicyRecord{}, fmt.Errorf("append policy for %s: %w", ref.Key, err)
	}
	record.CreatedAt = time.Now()
	return record, nil
}

// Policy reads one PolicyRecord.
func (s *FirestoreStore) Policy(ctx context.Context, owner models.Owner, id string) (models.PolicyRecord, error) {
	snap, err := s.client.Collection(paths.PoliciesCollection(s.namespace, owner)).Doc(id).Get(ctx)
	if err != nil {
		return models.PolicyRecord{}, fmt.Errorf("get policy %s: %w", id, err)
	}
	return policyFromSnapshot(snap)
}

func getStatus(tx *firestore.Transaction, ref *firestore.DocumentRef) (models.StatusRecord, bool, error) {
	snap, err := tx.Get(ref)
	if status.Code(err) == codes.NotFound {
		return models.StatusRecord{}, false, nil
	}
	if err != nil {
		return models.StatusRecord{}, false, fmt.Errorf("read status: %w", err)
	}
	var rec models.StatusRecord
	if err := snap.DataTo(&rec); err != nil {
		return models.StatusRecord{}, false, fmt.Errorf("decode status: %w", err)
	}
	rec.Key = ref.ID
	return rec, true, nil
}

func statusOf(rec models.StatusRecord, exists bool) models.DocumentStatus {
	if !exists {
		return ""
	}
	return rec.Status
}

func writeStatus(tx *firestore.Transaction, ref *firestore.DocumentRef, exists bool, upd models.StatusUpdate) error {
	updates := []firestore.Update{{Path: "status", Value: string(upd.Status)}}
	if upd.Status == models.StatusFailed {
		updates = append(updates, firestore.Update{Path: "error", Value: upd.Error})
	}
	if upd.Strategy != "" {
		updates = append(updates, firestore.Update{Path: "strategy", Value: upd.Strategy})
	}
	if upd.PageCount > 0 {
		updates = append(updates, firestore.Update{Path: "pageCount", Value: upd.PageCount})
	}
	if upd.Status.IsTerminal() {
		updates = append(updates, firestore.Update{Path: "completedAt", Value: firestore.ServerTimestamp})
	}
	if exists {
		return tx.Update(ref, updates)
	}

	fileName := upd.FileName
	if fileName == "" {
		fileName = ref.ID
	}
	data := map[string]interface{}{
		"fileName":  fileName,
		"createdAt": firestore.ServerTimestamp,
	}
	for _, u := range updates {
		data[u.Path] = u.Value
	}
	return tx.Create(ref, data)
}

func policyFromSnapshot(snap *firestore.DocumentSnapshot) (models.PolicyRecord, error) {
	var rec models.PolicyRecord
	if err := snap.DataTo(&rec); err != nil {
		return models.PolicyRecord{}, fmt.Errorf("decode policy %s: %w", snap.Ref.ID, err)
	}
	rec.ID = snap.Ref.ID
	return rec, nil
}
