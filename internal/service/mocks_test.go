package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pavelzhurbin/shorturl/internal/models"
)

type MockURLRepository struct {
	mock.Mock
}

func (r *MockURLRepository) Create(ctx context.Context, url *models.URL) (*models.URL, error) {
	args := r.Called(ctx, url)
	created, _ := args.Get(0).(*models.URL)
	return created, args.Error(1)
}

func (r *MockURLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	args := r.Called(ctx, shortCode)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (r *MockURLRepository) Update(ctx context.Context, shortCode, originalURL string, features models.FeatureSnapshot) (*models.URL, error) {
	args := r.Called(ctx, shortCode, originalURL, features)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (r *MockURLRepository) List(ctx context.Context) ([]*models.URL, error) {
	args := r.Called(ctx)
	urls, _ := args.Get(0).([]*models.URL)
	return urls, args.Error(1)
}

func (r *MockURLRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := r.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// stubExtractor returns a fixed snapshot without touching the network.
type stubExtractor struct {
	snapshot models.FeatureSnapshot
}

func (e *stubExtractor) Extract(_ context.Context, originalURL string) models.FeatureSnapshot {
	snapshot := e.snapshot
	snapshot.URLLength = int64(len(originalURL))
	return snapshot
}

// stubGate admits or rejects everything.
type stubGate struct {
	admit bool
}

func (g *stubGate) Evaluate(_ models.FeatureSnapshot) bool {
	return g.admit
}

type MockLookupCache struct {
	mock.Mock
}

func (c *MockLookupCache) Get(ctx context.Context, shortCode string) (string, bool) {
	args := c.Called(ctx, shortCode)
	return args.String(0), args.Bool(1)
}

func (c *MockLookupCache) Set(ctx context.Context, url *models.URL) {
	c.Called(ctx, url)
}

func (c *MockLookupCache) Invalidate(ctx context.Context, shortCode string) {
	c.Called(ctx, shortCode)
}
