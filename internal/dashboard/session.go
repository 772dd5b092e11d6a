// Package dashboard keeps a live, derived view of one identity's documents and policies.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/Ge9Nico/SWYM/internal/models"
)

// Source opens the two live feeds a Session consumes.
type Source interface {
	WatchDocuments(ctx context.Context, owner models.Owner) models.Feed[models.StatusRecord]
	WatchPolicies(ctx context.Context, owner models.Owner) models.Feed[models.PolicyRecord]
}

// View is the derived dashboard state. Loaded is false until both feeds delivered a first snapshot.
type View struct {
	Documents []models.StatusRecord `json:"documents"`
	Policies  []models.PolicyRecord `json:"policies"`
	Benefits  []models.Benefit      `json:"benefits"`
	Quota     QuotaDecision         `json:"quota"`
	Loaded    bool                  `json:"loaded"`
}

type update struct {
	docs     []models.StatusRecord
	policies []models.PolicyRecord
	isDocs   bool
}

// Session owns both feed subscriptions for one identity. Views are recomputed on every snapshot
// by a single reducer goroutine. Close must be called to release the subscriptions.
type Session struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	views  chan View

	mu       sync.Mutex
	identity models.Identity
	current  View
	closed   bool
	// opened holds records this session created that may not be in the documents feed yet.
	opened map[string]models.StatusRecord

	uploadMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// Open subscribes to id's documents and policies and starts deriving views.
func Open(ctx context.Context, src Source, id models.Identity) *Session {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s := &Session{
		cancel:   cancel,
		done:     make(chan struct{}),
		views:    make(chan View, 1),
		identity: id,
		opened:   make(map[string]models.StatusRecord),
	}
	s.current.Quota = CheckQuota(id, nil)

	updates := make(chan update)
	g.Go(func() error {
		return pump(gctx, src.WatchDocuments(gctx, id.Owner), updates, func(docs []models.StatusRecord) update {
			return update{docs: docs, isDocs: true}
		})
	})
	g.Go(func() error {
		return pump(gctx, src.WatchPolicies(gctx, id.Owner), updates, func(policies []models.PolicyRecord) update {
			return update{policies: policies}
		})
	})
	g.Go(func() error {
		s.reduce(gctx, updates)
		return nil
	})
	go func() {
		s.err = g.Wait()
		close(s.done)
	}()
	return s
}

// pump forwards snapshots from feed until the context ends or the feed fails.
// The feed is stopped on every return path.
func pump[T any](ctx context.Context, feed models.Feed[T], out chan<- update, wrap func([]T) update) error {
	defer feed.Stop()
	for {
		snap, err := feed.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, iterator.Done) {
				return nil
			}
			return fmt.Errorf("live feed: %w", err)
		}
		select {
		case out <- wrap(snap):
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Session) reduce(ctx context.Context, updates <-chan update) {
	var (
		docs, gotDocs         = []models.StatusRecord{}, false
		policies, gotPolicies = []models.PolicyRecord{}, false
	)
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			if u.isDocs {
				docs, gotDocs = u.docs, true
			} else {
				policies, gotPolicies = SortPolicies(u.policies), true
			}
			s.mu.Lock()
			if u.isDocs {
				for _, d := range docs {
					delete(s.opened, d.Key)
				}
			}
			s.current = View{
				Documents: docs,
				Policies:  policies,
				Benefits:  DedupPerks(policies),
				Quota:     s.quotaLocked(docs),
				Loaded:    gotDocs && gotPolicies,
			}
			s.publishLocked()
			s.mu.Unlock()
		}
	}
}

// quotaLocked counts docs plus every opened record the feed has not delivered yet.
func (s *Session) quotaLocked(docs []models.StatusRecord) QuotaDecision {
	if len(s.opened) == 0 {
		return CheckQuota(s.identity, docs)
	}
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		seen[d.Key] = true
	}
	counted := append([]models.StatusRecord{}, docs...)
	for key, rec := range s.opened {
		if !seen[key] {
			counted = append(counted, rec)
		}
	}
	return CheckQuota(s.identity, counted)
}

// publishLocked replaces any unread view so a slow reader only ever sees the latest one.
func (s *Session) publishLocked() {
	if s.closed {
		return
	}
	select {
	case <-s.views:
	default:
	}
	s.views <- s.current
}

// Views delivers the latest view after every change. It is closed by Close.
func (s *Session) Views() <-chan View {
	return s.views
}

// Current returns the most recent view.
func (s *Session) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Identity returns the identity the session belongs to.
func (s *Session) Identity() models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Upgrade switches a guest session to its permanent identity. Records stay in place, only the quota changes.
func (s *Session) Upgrade() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = s.identity.Upgrade()
	s.current.Quota = s.quotaLocked(s.current.Documents)
	s.publishLocked()
}

// Gate checks the quota against the current view.
func (s *Session) Gate() (QuotaDecision, error) {
	v := s.Current()
	if !v.Loaded {
		return v.Quota, ErrNotReady
	}
	if !v.Quota.Allowed {
		return v.Quota, &QuotaError{Decision: v.Quota}
	}
	return v.Quota, nil
}

// Upload runs the quota gate and, if it passes, hands f to u. Uploads through one session are
// serialized, and a record opened here counts against the quota before the feed reports it.
func (s *Session) Upload(ctx context.Context, u *Uploader, f File) (models.StatusRecord, error) {
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	if _, err := s.Gate(); err != nil {
		return models.StatusRecord{}, err
	}
	rec, err := u.Upload(ctx, s.Identity(), f)
	if rec.Key != "" {
		s.mu.Lock()
		s.opened[rec.Key] = rec
		s.current.Quota = s.quotaLocked(s.current.Documents)
		s.publishLocked()
		s.mu.Unlock()
	}
	return rec, err
}

// Done is closed once both subscriptions have ended, either through Close or a feed error.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close cancels both subscriptions and waits for them to be stopped. It returns the first feed error, if any.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		s.closeErr = s.err
		s.mu.Lock()
		s.closed = true
		close(s.views)
		s.mu.Unlock()
		if s.closeErr != nil {
			slog.Warn("Dashboard session ended with a feed error.", "error", s.closeErr)
		}
	})
	return s.closeErr
}
