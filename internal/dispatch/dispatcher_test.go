package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wordforge/wordforge/internal/dispatch"
	"github.com/wordforge/wordforge/internal/store"
	"github.com/wordforge/wordforge/internal/store/mock"
	"github.com/wordforge/wordforge/internal/worker"
	"github.com/wordforge/wordforge/pkg/models"
)

// recordingWorker captures each request along with the unit's dispatch flag
// at call time, to verify the write-then-call ordering.
type recordingWorker struct {
	mu           sync.Mutex
	store        *mock.Store
	requests     []worker.Request
	flagsAtCall  []bool
	rejectUnitID uuid.UUID
}

func (w *recordingWorker) Dispatch(ctx context.Context, req worker.Request) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	u, err := w.store.GetUnit(ctx, req.UnitID)
	if err != nil {
		return err
	}
	w.flagsAtCall = append(w.flagsAtCall, u.RequestProcess)
	if req.UnitID == w.rejectUnitID {
		return worker.ErrWorkerRejected
	}
	w.requests = append(w.requests, req)
	return nil
}

// staleSelectionStore replays a fixed selection, modeling an invocation
// whose select query ran before another invocation wrote any claims.
type staleSelectionStore struct {
	store.Store
	selection []*models.GenerationUnit
}

func (s *staleSelectionStore) SelectUndispatchedUnits(context.Context, int) ([]*models.GenerationUnit, error) {
	return s.selection, nil
}

// failingBatchStore fails every batch load.
type failingBatchStore struct {
	store.Store
}

func (s *failingBatchStore) GetBatch(context.Context, uuid.UUID) (*models.Batch, error) {
	return nil, errors.New("connection reset")
}

// recordingCompleter records which batches were handed to the fast path.
type recordingCompleter struct {
	batchIDs []uuid.UUID
}

func (c *recordingCompleter) CheckCompletion(_ context.Context, batchID uuid.UUID) error {
	c.batchIDs = append(c.batchIDs, batchID)
	return nil
}

func seedBatch(t *testing.T, st *mock.Store, n int) (*models.Batch, []*models.GenerationUnit) {
	t.Helper()
	userID := uuid.New()
	now := time.Now().UTC()
	batch := &models.Batch{
		ID:           uuid.New(),
		UserID:       userID,
		Tier:         models.TierCore,
		TotalUnits:   n,
		PendingCount: n,
		Status:       models.BatchStatusOpen,
		WordLimit:    800,
		Instructions: "friendly tone",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var units []*models.GenerationUnit
	var trackers []*models.DispatchTracker
	for i := 0; i < n; i++ {
		u := &models.GenerationUnit{
			ID:        uuid.New(),
			BatchID:   batch.ID,
			UserID:    userID,
			Keyword:   "kw",
			Tier:      batch.Tier,
			Status:    models.UnitStatusPending,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		units = append(units, u)
		trackers = append(trackers, &models.DispatchTracker{
			ID: uuid.New(), BatchID: batch.ID, UserID: userID, UnitID: u.ID,
			Keyword: u.Keyword, CreatedAt: u.CreatedAt,
		})
	}
	require.NoError(t, st.CreateBatch(context.Background(), store.BatchCreation{
		Batch: batch, Units: units, Trackers: trackers,
	}))
	return batch, units
}

func TestDispatcher_FlagWrittenBeforeCall(t *testing.T) {
	ctx := context.Background()
	st := mock.New()
	seedBatch(t, st, 3)
	wk := &recordingWorker{store: st}
	completer := &recordingCompleter{}

	d := dispatch.New(st, wk, completer, 5)
	require.NoError(t, d.Run(ctx))

	require.Len(t, wk.flagsAtCall, 3)
	for _, flag := range wk.flagsAtCall {
		assert.True(t, flag, "dispatch flag must be durable before the worker call")
	}
}

func TestDispatcher_RespectsBatchSizeCap(t *testing.T) {
	ctx := context.Background()
	st := mock.New()
	batch, _ := seedBatch(t, st, 7)
	wk := &recordingWorker{store: st}
	completer := &recordingCompleter{}

	d := dispatch.New(st, wk, completer, 5)
	require.NoError(t, d.Run(ctx))
	assert.Len(t, wk.requests, 5)

	// The batch is not started until every unit is on its way.
	got, err := st.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.False(t, got.StartProcess)

	// The next invocation picks up the remainder and starts the batch.
	require.NoError(t, d.Run(ctx))
	assert.Len(t, wk.requests, 7)

	got, err = st.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.True(t, got.StartProcess)
}

func TestDispatcher_CarriesBatchOptionsToWorker(t *testing.T) {
	ctx := context.Background()
	st := mock.New()
	batch, units := seedBatch(t, st, 1)
	wk := &recordingWorker{store: st}

	d := dispatch.New(st, wk, &recordingCompleter{}, 5)
	require.NoError(t, d.Run(ctx))

	require.Len(t, wk.requests, 1)
	req := wk.requests[0]
	assert.Equal(t, units[0].ID, req.UnitID)
	assert.Equal(t, batch.ID, req.BatchID)
	assert.Equal(t, models.TierCore, req.Tier)
	assert.Equal(t, 800, req.WordLimit)
	assert.Equal(t, "friendly tone", req.Instructions)
}

func TestDispatcher_OverlappingRunsDispatchUnitOnce(t *testing.T) {
	ctx := context.Background()
	st := mock.New()
	_, units := seedBatch(t, st, 1)

	// Both invocations complete their selection before either writes a
	// claim; the second run works from the first run's snapshot.
	snapshot, err := st.SelectUndispatchedUnits(ctx, 5)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)

	wk := &recordingWorker{store: st}
	first := dispatch.New(st, wk, &recordingCompleter{}, 5)
	second := dispatch.New(&staleSelectionStore{Store: st, selection: snapshot}, wk, &recordingCompleter{}, 5)

	require.NoError(t, first.Run(ctx))
	require.NoError(t, second.Run(ctx))

	assert.Len(t, wk.requests, 1, "the unit's first dispatch must be sent at most once")

	// The losing invocation must not have released the winner's claim.
	u, err := st.GetUnit(ctx, units[0].ID)
	require.NoError(t, err)
	assert.True(t, u.RequestProcess)
}

func TestDispatcher_BatchLoadFailureReleasesUnit(t *testing.T) {
	ctx := context.Background()
	st := mock.New()
	batch, units := seedBatch(t, st, 1)
	wk := &recordingWorker{store: st}

	d := dispatch.New(&failingBatchStore{Store: st}, wk, &recordingCompleter{}, 5)
	require.NoError(t, d.Run(ctx))

	// No request was sent without the batch options, and the unit is back
	// in the undispatched pool.
	assert.Empty(t, wk.requests)
	u, err := st.GetUnit(ctx, units[0].ID)
	require.NoError(t, err)
	assert.False(t, u.RequestProcess)

	// A healthy pass then sends the full request.
	d = dispatch.New(st, wk, &recordingCompleter{}, 5)
	require.NoError(t, d.Run(ctx))
	require.Len(t, wk.requests, 1)
	assert.Equal(t, batch.WordLimit, wk.requests[0].WordLimit)
	assert.Equal(t, batch.Instructions, wk.requests[0].Instructions)
}

func TestDispatcher_RejectionReleasesUnit(t *testing.T) {
	ctx := context.Background()
	st := mock.New()
	batch, units := seedBatch(t, st, 2)
	wk := &recordingWorker{store: st, rejectUnitID: units[0].ID}

	d := dispatch.New(st, wk, &recordingCompleter{}, 5)
	require.NoError(t, d.Run(ctx))

	// The rejected unit is released for a later run.
	rejected, err := st.GetUnit(ctx, units[0].ID)
	require.NoError(t, err)
	assert.False(t, rejected.RequestProcess)

	accepted, err := st.GetUnit(ctx, units[1].ID)
	require.NoError(t, err)
	assert.True(t, accepted.RequestProcess)

	// One unit still undispatched, so the batch has not started.
	got, err := st.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.False(t, got.StartProcess)

	remaining, err := st.CountUndispatchedUnits(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestDispatcher_RunsCompletionCheckPerTouchedBatch(t *testing.T) {
	ctx := context.Background()
	st := mock.New()
	first, _ := seedBatch(t, st, 1)
	second, _ := seedBatch(t, st, 1)
	wk := &recordingWorker{store: st}
	completer := &recordingCompleter{}

	d := dispatch.New(st, wk, completer, 5)
	require.NoError(t, d.Run(ctx))

	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, completer.batchIDs)
}

func TestDispatcher_EmptyRunIsNoop(t *testing.T) {
	st := mock.New()
	wk := &recordingWorker{store: st}
	completer := &recordingCompleter{}

	d := dispatch.New(st, wk, completer, 5)
	require.NoError(t, d.Run(context.Background()))
	assert.Empty(t, wk.requests)
	assert.Empty(t, completer.batchIDs)
}
