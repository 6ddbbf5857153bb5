package http

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pavelzhurbin/shorturl/internal/models"
	"github.com/pavelzhurbin/shorturl/internal/service"
)

type MockURLService struct {
	mock.Mock
}

func (s *MockURLService) ShortenURL(ctx context.Context, params service.ShortenParams) (*models.URL, error) {
	args := s.Called(ctx, params)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (s *MockURLService) Resolve(ctx context.Context, shortCode string) (string, error) {
	args := s.Called(ctx, shortCode)
	return args.String(0), args.Error(1)
}

func (s *MockURLService) GetURL(ctx context.Context, shortCode string) (*models.URL, error) {
	args := s.Called(ctx, shortCode)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (s *MockURLService) ModifyURL(ctx context.Context, shortCode, originalURL string) (*models.URL, error) {
	args := s.Called(ctx, shortCode, originalURL)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (s *MockURLService) ListURLs(ctx context.Context) ([]*models.URL, error) {
	args := s.Called(ctx)
	urls, _ := args.Get(0).([]*models.URL)
	return urls, args.Error(1)
}
