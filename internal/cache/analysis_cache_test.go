package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
)

type fakeBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
	gets int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: map[string][]byte{}}
}

func (b *fakeBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	if b.err != nil {
		return nil, b.err
	}
	v, ok := b.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (b *fakeBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.data[key] = value
	return nil
}

func (b *fakeBackend) Del(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.data, k)
	}
	return nil
}

type countingStore struct {
	repository.AnalysisStore
	docs  map[models.AnalysisKey]models.AnalysisDocument
	reads int
}

func (s *countingStore) GetAnalysisDocument(ctx context.Context, key models.AnalysisKey) (*models.AnalysisDocument, error) {
	s.reads++
	doc, ok := s.docs[key]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *countingStore) UpsertAnalysisDocument(ctx context.Context, doc *models.AnalysisDocument) error {
	s.docs[doc.Key()] = *doc
	return nil
}

func (s *countingStore) UpdateAnchor(ctx context.Context, key models.AnalysisKey, anchor time.Time) (bool, error) {
	doc, ok := s.docs[key]
	if !ok {
		return false, nil
	}
	doc.StartDateAnchor = &anchor
	s.docs[key] = doc
	return true, nil
}

var key = models.AnalysisKey{Scope: models.RoleAdmin, OwnerID: "a1"}

func seeded() *countingStore {
	return &countingStore{docs: map[models.AnalysisKey]models.AnalysisDocument{
		key: {Scope: key.Scope, OwnerID: key.OwnerID, TotalTrades: 4, TotalVolume: decimal.RequireFromString("1250.50")},
	}}
}

func TestReadThrough(t *testing.T) {
	store := seeded()
	c := NewAnalysisCache(store, newFakeBackend(), time.Minute, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		doc, err := c.GetAnalysisDocument(ctx, key)
		if err != nil || doc == nil {
			t.Fatalf("doc=%v err=%v", doc, err)
		}
		if doc.TotalTrades != 4 || !doc.TotalVolume.Equal(decimal.RequireFromString("1250.5")) {
			t.Fatalf("doc=%+v", doc)
		}
	}
	if store.reads != 1 {
		t.Fatalf("store reads=%d want=1", store.reads)
	}
}

func TestMissingDocumentIsNotCached(t *testing.T) {
	store := seeded()
	backend := newFakeBackend()
	c := NewAnalysisCache(store, backend, time.Minute, nil, nil)
	other := models.AnalysisKey{Scope: models.RoleMaster, OwnerID: "m9"}
	for i := 0; i < 2; i++ {
		if doc, err := c.GetAnalysisDocument(context.Background(), other); err != nil || doc != nil {
			t.Fatalf("doc=%v err=%v", doc, err)
		}
	}
	if store.reads != 2 || len(backend.data) != 0 {
		t.Fatalf("reads=%d cached=%d", store.reads, len(backend.data))
	}
}

func TestWritesInvalidate(t *testing.T) {
	store := seeded()
	c := NewAnalysisCache(store, newFakeBackend(), time.Minute, nil, nil)
	ctx := context.Background()
	if _, err := c.GetAnalysisDocument(ctx, key); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := c.UpsertAnalysisDocument(ctx, &models.AnalysisDocument{Scope: key.Scope, OwnerID: key.OwnerID, TotalTrades: 9}); err != nil {
		t.Fatalf("err=%v", err)
	}
	doc, _ := c.GetAnalysisDocument(ctx, key)
	if doc.TotalTrades != 9 {
		t.Fatalf("stale cache: trades=%d", doc.TotalTrades)
	}

	anchor := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	if ok, err := c.UpdateAnchor(ctx, key, anchor); err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	doc, _ = c.GetAnalysisDocument(ctx, key)
	if doc.StartDateAnchor == nil || !doc.StartDateAnchor.Equal(anchor) {
		t.Fatalf("stale anchor: %v", doc.StartDateAnchor)
	}
}

func TestBackendFailureFallsThrough(t *testing.T) {
	store := seeded()
	backend := newFakeBackend()
	backend.err = errors.New("connection refused")
	c := NewAnalysisCache(store, backend, time.Minute, nil, nil)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		doc, err := c.GetAnalysisDocument(ctx, key)
		if err != nil || doc == nil || doc.TotalTrades != 4 {
			t.Fatalf("doc=%v err=%v", doc, err)
		}
	}
	// the breaker opens after ten failed calls and stops calling the backend
	if backend.gets >= 20 {
		t.Fatalf("backend gets=%d, breaker never opened", backend.gets)
	}
}
