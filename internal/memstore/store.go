// Package memstore is an in-process status ledger, policy store and live feed source.
// It applies the same transition and append-only rules as the Firestore store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/Ge9Nico/SWYM/internal/models"
)

// Store is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	documents map[models.Owner]map[string]models.StatusRecord
	policies  map[models.Owner][]models.PolicyRecord
	watchers  map[*watcher]struct{}
	appendErr error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		now:       time.Now,
		documents: make(map[models.Owner]map[string]models.StatusRecord),
		policies:  make(map[models.Owner][]models.PolicyRecord),
		watchers:  make(map[*watcher]struct{}),
	}
}

// SetClock replaces the time source used for createdAt and completedAt.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailAppends makes every following Append return err until called with nil.
func (s *Store) FailAppends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

// Advance moves ref's StatusRecord forward, creating it if absent.
func (s *Store) Advance(ctx context.Context, ref models.DocumentRef, upd models.StatusUpdate) (models.StatusRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.StatusRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.advanceLocked(ref, upd)
	if err != nil {
		return models.StatusRecord{}, fmt.Errorf("advance %s to %s: %w", ref.Key, upd.Status, err)
	}
	s.notifyLocked(ref.Owner, documentsFeed)
	return rec, nil
}

func (s *Store) advanceLocked(ref models.DocumentRef, upd models.StatusUpdate) (models.StatusRecord, error) {
	docs := s.documents[ref.Owner]
	rec, exists := docs[ref.Key]
	rec.Key = ref.Key
	if err := upd.Apply(&rec, exists, s.now()); err != nil {
		return models.StatusRecord{}, err
	}
	if docs == nil {
		docs = make(map[string]models.StatusRecord)
		s.documents[ref.Owner] = docs
	}
	docs[ref.Key] = rec
	return rec, nil
}

// Append stores a new PolicyRecord for ref and completes ref's StatusRecord atomically.
func (s *Store) Append(ctx context.Context, ref models.DocumentRef, policy models.StructuredPolicy, meta models.StatusUpdate) (models.PolicyRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.PolicyRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		return models.PolicyRecord{}, fmt.Errorf("append policy for %s: %w", ref.Key, s.appendErr)
	}
	current, exists := s.documents[ref.Owner][ref.Key]
	from := models.DocumentStatus("")
	if exists {
		from = current.Status
	}
	if err := models.CheckTransition(from, models.StatusCompleted); err != nil {
		return models.PolicyRecord{}, fmt.Errorf("append policy for %s: %w", ref.Key, err)
	}

	meta.Status = models.StatusCompleted
	if _, err := s.advanceLocked(ref, meta); err != nil {
		return models.PolicyRecord{}, fmt.Errorf("append policy for %s: %w", ref.Key, err)
	}
	record := models.NewPolicyRecord(uuid.NewString(), policy, ref.Key)
	record.CreatedAt = s.now()
	s.policies[ref.Owner] = append(s.policies[ref.Owner], record)

	s.notifyLocked(ref.Owner, documentsFeed)
	s.notifyLocked(ref.Owner, policiesFeed)
	return record.Clone(), nil
}

// Status returns ref's StatusRecord.
func (s *Store) Status(ref models.DocumentRef) (models.StatusRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.documents[ref.Owner][ref.Key]
	return rec, ok
}

// Policy returns one PolicyRecord by id.
func (s *Store) Policy(_ context.Context, owner models.Owner, id string) (models.PolicyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.policies[owner] {
		if p.ID == id {
			return p.Clone(), nil
		}
	}
	return models.PolicyRecord{}, fmt.Errorf("get policy %s: not found", id)
}

// Documents returns owner's StatusRecords ordered by creation time.
func (s *Store) Documents(owner models.Owner) []models.StatusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentsLocked(owner)
}

// Policies returns owner's PolicyRecords in insertion order.
func (s *Store) Policies(owner models.Owner) []models.PolicyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policiesLocked(owner)
}

func (s *Store) documentsLocked(owner models.Owner) []models.StatusRecord {
	out := make([]models.StatusRecord, 0, len(s.documents[owner]))
	for _, rec := range s.documents[owner] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (s *Store) policiesLocked(owner models.Owner) []models.PolicyRecord {
	out := make([]models.PolicyRecord, 0, len(s.policies[owner]))
	for _, p := range s.policies[owner] {
		out = append(out, p.Clone())
	}
	return out
}

type feedKind int

const (
	documentsFeed feedKind = iota
	policiesFeed
)

// watcher is one live subscription. pending holds at most one "changed" signal, so
// a slow reader skips intermediate states but always sees the latest one.
type watcher struct {
	ctx      context.Context
	owner    models.Owner
	kind     feedKind
	pending  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type feed[T any] struct {
	store    *Store
	w        *watcher
	snapshot func(models.Owner) []T
}

func (f *feed[T]) Next() ([]T, error) {
	select {
	case <-f.w.done:
		return nil, iterator.Done
	default:
	}
	select {
	case <-f.w.done:
		return nil, iterator.Done
	case <-f.w.ctx.Done():
		return nil, f.w.ctx.Err()
	case <-f.w.pending:
		f.store.mu.Lock()
		defer f.store.mu.Unlock()
		return f.snapshot(f.w.owner), nil
	}
}

func (f *feed[T]) Stop() {
	f.w.stopOnce.Do(func() {
		close(f.w.done)
		f.store.mu.Lock()
		delete(f.store.watchers, f.w)
		f.store.mu.Unlock()
	})
}

// WatchDocuments subscribes to owner's StatusRecords. The first Next returns the current state.
func (s *Store) WatchDocuments(ctx context.Context, owner models.Owner) models.Feed[models.StatusRecord] {
	return &feed[models.StatusRecord]{store: s, w: s.subscribe(ctx, owner, documentsFeed), snapshot: s.documentsLocked}
}

// WatchPolicies subscribes to owner's PolicyRecords. The first Next returns the current state.
func (s *Store) WatchPolicies(ctx context.Context, owner models.Owner) models.Feed[models.PolicyRecord] {
	return &feed[models.PolicyRecord]{store: s, w: s.subscribe(ctx, owner, policiesFeed), snapshot: s.policiesLocked}
}

// ActiveWatchers is the number of subscriptions not yet stopped.
func (s *Store) ActiveWatchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func (s *Store) subscribe(ctx context.Context, owner models.Owner, kind feedKind) *watcher {
	w := &watcher{
		ctx:     ctx,
		owner:   owner,
		kind:    kind,
		pending: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	w.pending <- struct{}{}
	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()
	return w
}

func (s *Store) notifyLocked(owner models.Owner, kind feedKind) {
	for w := range s.watchers {
		if w.owner != owner || w.kind != kind {
			continue
		}
		select {
		case w.pending <- struct{}{}:
		default:
		}
	}
}
