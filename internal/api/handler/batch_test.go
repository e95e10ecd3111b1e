package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wordforge/wordforge/internal/api/handler"
	"github.com/wordforge/wordforge/internal/api/middleware"
	"github.com/wordforge/wordforge/internal/batchsvc"
	"github.com/wordforge/wordforge/internal/store"
	"github.com/wordforge/wordforge/internal/store/mock"
	"github.com/wordforge/wordforge/pkg/models"
)

// fakeCreator returns a canned batch or error.
type fakeCreator struct {
	batch  *models.Batch
	err    error
	params batchsvc.CreateParams
}

func (f *fakeCreator) Create(_ context.Context, params batchsvc.CreateParams) (*models.Batch, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.batch, nil
}

// memCache is an in-memory cache.Cache for handler tests.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Ping(context.Context) error { return nil }

func (c *memCache) SetBatchStatus(ctx context.Context, batchID uuid.UUID, payload []byte, ttl time.Duration) error {
	return c.Set(ctx, "batch:status:"+batchID.String(), payload, ttl)
}

func (c *memCache) GetBatchStatus(ctx context.Context, batchID uuid.UUID) ([]byte, bool, error) {
	return c.Get(ctx, "batch:status:"+batchID.String())
}

func (c *memCache) InvalidateBatchStatus(ctx context.Context, batchID uuid.UUID) error {
	return c.Delete(ctx, "batch:status:"+batchID.String())
}

func (c *memCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

func authedRequest(method, target string, body []byte, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(middleware.SetUserID(req.Context(), userID))
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)["code"].(string)
}

func TestCreateBatch_Success(t *testing.T) {
	userID := uuid.New()
	created := &models.Batch{ID: uuid.New(), UserID: userID, TotalUnits: 2}
	fc := &fakeCreator{batch: created}
	h := handler.NewCreateBatchHandler(fc)

	body, _ := json.Marshal(map[string]any{
		"keywords": []string{"go testing", "chi routing"},
		"tier":     "core",
	})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("POST", "/api/v1/batches", body, userID))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, userID, fc.params.UserID)
	assert.Equal(t, models.TierCore, fc.params.Tier)
	assert.Len(t, fc.params.Keywords, 2)
}

func TestCreateBatch_Unauthenticated(t *testing.T) {
	h := handler.NewCreateBatchHandler(&fakeCreator{})
	req := httptest.NewRequest("POST", "/api/v1/batches", bytes.NewReader([]byte("{}")))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateBatch_InvalidJSON(t *testing.T) {
	h := handler.NewCreateBatchHandler(&fakeCreator{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("POST", "/api/v1/batches", []byte("{not json"), uuid.New()))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errCode(t, w))
}

func TestCreateBatch_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"no keywords", batchsvc.ErrNoKeywords},
		{"too many", batchsvc.ErrTooManyKeywords},
		{"bad tier", batchsvc.ErrInvalidTier},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := handler.NewCreateBatchHandler(&fakeCreator{err: tc.err})
			w := httptest.NewRecorder()
			h.ServeHTTP(w, authedRequest("POST", "/api/v1/batches", []byte("{}"), uuid.New()))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateBatch_InsufficientCredits(t *testing.T) {
	h := handler.NewCreateBatchHandler(&fakeCreator{err: batchsvc.ErrInsufficientFunds})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("POST", "/api/v1/batches", []byte("{}"), uuid.New()))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "INSUFFICIENT_CREDITS", errCode(t, w))
}

func seedStoredBatch(t *testing.T, st *mock.Store, userID uuid.UUID) *models.Batch {
	t.Helper()
	batch := &models.Batch{
		ID:         uuid.New(),
		UserID:     userID,
		Tier:       models.TierCore,
		TotalUnits: 1,
		Status:     models.BatchStatusOpen,
	}
	require.NoError(t, st.CreateBatch(context.Background(), store.BatchCreation{Batch: batch}))
	return batch
}

func getBatchVia(h http.HandlerFunc, batchID uuid.UUID, userID uuid.UUID) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/api/v1/batches/{batchID}", h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest("GET", "/api/v1/batches/"+batchID.String(), nil, userID))
	return w
}

func TestGetBatch_Success(t *testing.T) {
	st := mock.New()
	userID := uuid.New()
	batch := seedStoredBatch(t, st, userID)
	ca := newMemCache()

	h := handler.NewGetBatchHandler(st, ca)
	w := getBatchVia(h, batch.ID, userID)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data models.Batch `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, batch.ID, body.Data.ID)

	// The response is now cached for subsequent polls.
	_, hit, err := ca.GetBatchStatus(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestGetBatch_ServedFromCache(t *testing.T) {
	st := mock.New()
	userID := uuid.New()
	batch := seedStoredBatch(t, st, userID)
	ca := newMemCache()

	payload, _ := json.Marshal(batch)
	require.NoError(t, ca.SetBatchStatus(context.Background(), batch.ID, payload, time.Minute))

	h := handler.NewGetBatchHandler(st, ca)
	w := getBatchVia(h, batch.ID, userID)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetBatch_OtherUsersBatchIsHidden(t *testing.T) {
	st := mock.New()
	owner := uuid.New()
	batch := seedStoredBatch(t, st, owner)

	h := handler.NewGetBatchHandler(st, newMemCache())
	w := getBatchVia(h, batch.ID, uuid.New())

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errCode(t, w))
}

func TestGetBatch_NotFound(t *testing.T) {
	h := handler.NewGetBatchHandler(mock.New(), newMemCache())
	w := getBatchVia(h, uuid.New(), uuid.New())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBatch_InvalidID(t *testing.T) {
	h := handler.NewGetBatchHandler(mock.New(), newMemCache())
	r := chi.NewRouter()
	r.Get("/api/v1/batches/{batchID}", h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest("GET", "/api/v1/batches/not-a-uuid", nil, uuid.New()))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListBatches_ReturnsOwnOnly(t *testing.T) {
	st := mock.New()
	userID := uuid.New()
	seedStoredBatch(t, st, userID)
	seedStoredBatch(t, st, userID)
	seedStoredBatch(t, st, uuid.New())

	h := handler.NewListBatchesHandler(st)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("GET", "/api/v1/batches", nil, userID))

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []models.Batch `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 2)
}

func TestListBatches_EmptyIsArray(t *testing.T) {
	h := handler.NewListBatchesHandler(mock.New())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("GET", "/api/v1/batches", nil, uuid.New()))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}
