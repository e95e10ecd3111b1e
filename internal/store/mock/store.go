// Package mock provides an in-memory Store for unit tests. It mirrors the
// Postgres semantics the engine depends on: one-decimal balance rounding,
// no-op settlements against closed batches, and oldest-first selection.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wordforge/wordforge/internal/store"
	"github.com/wordforge/wordforge/pkg/models"
)

// Store is a mutex-guarded in-memory implementation of store.Store.
type Store struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	keys     map[uuid.UUID]*models.APIKey
	batches  map[uuid.UUID]*models.Batch
	units    map[uuid.UUID]*models.GenerationUnit
	trackers map[uuid.UUID]*models.DispatchTracker
}

// New creates an empty mock store.
func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]*models.User),
		keys:     make(map[uuid.UUID]*models.APIKey),
		batches:  make(map[uuid.UUID]*models.Batch),
		units:    make(map[uuid.UUID]*models.GenerationUnit),
		trackers: make(map[uuid.UUID]*models.DispatchTracker),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// --- Users & ledger ---

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return store.ErrDuplicateKey
	}
	u := *user
	s.users[user.ID] = &u
	return nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) AdjustBalance(_ context.Context, userID uuid.UUID, bucket models.CreditBucket, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustBalanceLocked(userID, bucket, delta)
}

func (s *Store) adjustBalanceLocked(userID uuid.UUID, bucket models.CreditBucket, delta decimal.Decimal) (decimal.Decimal, error) {
	u, ok := s.users[userID]
	if !ok {
		return decimal.Zero, store.ErrNotFound
	}
	next := u.Balance(bucket).Add(delta).Round(1)
	if next.IsNegative() {
		return decimal.Zero, store.ErrInsufficientFunds
	}
	switch bucket {
	case models.BucketRecurring:
		u.RecurringBalance = next
	case models.BucketOneTime:
		u.OneTimeBalance = next
	default:
		u.FreeBalance = next
	}
	return next, nil
}

// --- API keys ---

func (s *Store) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := *key
	s.keys[key.ID] = &k
	return nil
}

func (s *Store) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[id]; ok {
		now := time.Now().UTC()
		k.LastUsedAt = &now
	}
	return nil
}

func (s *Store) ListAPIKeys(_ context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.UserID == userID && k.DeletedAt == nil {
			cp := *k
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) RevokeAPIKey(_ context.Context, id uuid.UUID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok || k.UserID != userID || k.DeletedAt != nil {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	k.DeletedAt = &now
	return nil
}

// --- Batches ---

func (s *Store) CreateBatch(_ context.Context, creation store.BatchCreation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := creation.Debit; d != nil {
		if _, err := s.adjustBalanceLocked(d.UserID, d.Bucket, d.Amount.Neg()); err != nil {
			return err
		}
	}
	b := *creation.Batch
	s.batches[b.ID] = &b
	for _, u := range creation.Units {
		cp := *u
		s.units[u.ID] = &cp
	}
	for _, t := range creation.Trackers {
		cp := *t
		s.trackers[t.ID] = &cp
	}
	return nil
}

func (s *Store) GetBatch(_ context.Context, id uuid.UUID) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) ListBatchesByUser(_ context.Context, userID uuid.UUID) ([]*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Batch
	for _, b := range s.batches {
		if b.UserID == userID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) OldestStaleBatch(_ context.Context, before time.Time) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *models.Batch
	for _, b := range s.batches {
		if b.Status != models.BatchStatusOpen || !b.StartProcess || !b.UpdatedAt.Before(before) {
			continue
		}
		if oldest == nil || b.UpdatedAt.Before(oldest.UpdatedAt) {
			oldest = b
		}
	}
	if oldest == nil {
		return nil, store.ErrNotFound
	}
	cp := *oldest
	return &cp, nil
}

func (s *Store) ListStartedBatches(context.Context) ([]*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Batch
	for _, b := range s.batches {
		if b.Status == models.BatchStatusOpen && b.StartProcess {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkBatchStarted(_ context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return store.ErrNotFound
	}
	b.StartProcess = true
	b.UpdatedAt = now
	return nil
}

// --- Generation units ---

func (s *Store) GetUnit(_ context.Context, id uuid.UUID) (*models.GenerationUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) ListUnitsByBatch(_ context.Context, batchID uuid.UUID) ([]*models.GenerationUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.GenerationUnit
	for _, u := range s.units {
		if u.BatchID == batchID {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SelectUndispatchedUnits(_ context.Context, limit int) ([]*models.GenerationUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.GenerationUnit
	for _, u := range s.units {
		if !u.RequestProcess && u.Status == models.UnitStatusPending {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountUndispatchedUnits(_ context.Context, batchID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.units {
		if u.BatchID == batchID && !u.RequestProcess && u.Status == models.UnitStatusPending {
			n++
		}
	}
	return n, nil
}

func (s *Store) SetUnitDispatched(_ context.Context, id uuid.UUID, dispatched bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[id]
	if !ok || u.RequestProcess == dispatched {
		return false, nil
	}
	u.RequestProcess = dispatched
	return true, nil
}

func (s *Store) SetUnitContent(_ context.Context, id uuid.UUID, content store.UnitContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[id]
	if !ok {
		return store.ErrNotFound
	}
	c := content.Content
	u.Content = &c
	u.MetaTitle = content.MetaTitle
	u.MetaDescription = content.MetaDescription
	u.ImageURL = content.ImageURL
	return nil
}

// --- Trackers / settlement ---

func (s *Store) BatchWorkset(_ context.Context, batchID uuid.UUID) ([]models.TrackedUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TrackedUnit
	for _, t := range s.trackers {
		if t.BatchID != batchID {
			continue
		}
		u, ok := s.units[t.UnitID]
		if !ok {
			continue
		}
		out = append(out, models.TrackedUnit{Unit: *u, Tracker: *t})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Tracker.CreatedAt.Before(out[j].Tracker.CreatedAt)
	})
	return out, nil
}

func (s *Store) CountTrackers(_ context.Context, batchID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.trackers {
		if t.BatchID == batchID {
			n++
		}
	}
	return n, nil
}

func (s *Store) ApplySettlement(_ context.Context, st store.Settlement) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[st.BatchID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if b.Status == models.BatchStatusClosed {
		return nil, nil
	}

	for _, id := range st.CompleteUnitIDs {
		if u, ok := s.units[id]; ok {
			u.Status = models.UnitStatusComplete
			u.UpdatedAt = st.Now
		}
	}
	for _, id := range st.FailUnitIDs {
		if u, ok := s.units[id]; ok {
			u.Status = models.UnitStatusFailed
			u.UpdatedAt = st.Now
		}
	}
	for _, id := range st.DeleteTrackerIDs {
		delete(s.trackers, id)
	}
	var escalated []uuid.UUID
	for _, id := range st.EscalateTrackerIDs {
		if t, ok := s.trackers[id]; ok && !t.RetryAttempted {
			t.RetryAttempted = true
			escalated = append(escalated, id)
		}
	}

	if r := st.Refund; r != nil && r.Amount.IsPositive() {
		u, ok := s.users[r.UserID]
		if !ok {
			return nil, store.ErrNotFound
		}
		if _, err := s.adjustBalanceLocked(r.UserID, u.PriorityBucket(), r.Amount); err != nil {
			return nil, err
		}
	}

	b.CompletedCount = st.CompletedCount
	b.PendingCount = st.PendingCount
	b.FailedCount = st.FailedCount
	if st.Close {
		b.Status = models.BatchStatusClosed
	}
	if st.Touch {
		b.UpdatedAt = st.Now
	}
	return escalated, nil
}

var _ store.Store = (*Store)(nil)
