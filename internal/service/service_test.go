package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/pavelzhurbin/shorturl/internal/database"
	"github.com/pavelzhurbin/shorturl/internal/models"
)

type URLServiceTestSuite struct {
	suite.Suite
	errUnknown  error
	logger      *slog.Logger
	urlRepoMock *MockURLRepository
	gate        *stubGate
	svc         *URLService
}

func (suite *URLServiceTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
	suite.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (suite *URLServiceTestSuite) SetupSubTest() {
	suite.urlRepoMock = new(MockURLRepository)
	suite.gate = &stubGate{admit: true}
	suite.svc = NewURLService(suite.logger, suite.urlRepoMock, &stubExtractor{}, suite.gate, nil, 8)
}

func (suite *URLServiceTestSuite) TearDownSubTest() {
	suite.urlRepoMock.AssertExpectations(suite.T())
}

func (suite *URLServiceTestSuite) TestShortenURL() {
	suite.Run("invalid url", func() {
		url, err := suite.svc.ShortenURL(context.Background(), ShortenParams{
			OriginalURL: "not a url",
		})

		suite.Error(err)
		suite.ErrorIs(err, ErrInvalidURL)
		suite.Nil(url)
	})

	suite.Run("expiry in the past", func() {
		expireAt := time.Now().Add(-time.Hour)

		url, err := suite.svc.ShortenURL(context.Background(), ShortenParams{
			OriginalURL: "https://example.com",
			ExpireAt:    &expireAt,
		})

		suite.Error(err)
		suite.ErrorIs(err, ErrInvalidExpiry)
		suite.Nil(url)
		suite.urlRepoMock.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
	})

	suite.Run("gate rejects before any write", func() {
		suite.gate.admit = false

		url, err := suite.svc.ShortenURL(context.Background(), ShortenParams{
			OriginalURL: "https://example.com",
		})

		suite.Error(err)
		suite.ErrorIs(err, ErrGateRejected)
		suite.Nil(url)
		suite.urlRepoMock.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
	})

	suite.Run("custom code taken", func() {
		suite.urlRepoMock.
			On("Create", context.Background(), mock.MatchedBy(func(url *models.URL) bool {
				return url.ShortCode == "custom1"
			})).
			Once().
			Return(nil, database.ErrShortCodeExists)

		url, err := suite.svc.ShortenURL(context.Background(), ShortenParams{
			OriginalURL:     "https://example.com",
			CustomShortCode: "custom1",
		})

		suite.Error(err)
		suite.ErrorIs(err, database.ErrShortCodeExists)
		suite.Nil(url)
	})

	suite.Run("custom code success", func() {
		suite.urlRepoMock.
			On("Create", context.Background(), mock.MatchedBy(func(url *models.URL) bool {
				return url.ShortCode == "custom1" && url.ID != "" && url.CreationNonce != ""
			})).
			Once().
			Return(&models.URL{
				ShortCode:   "custom1",
				OriginalURL: "https://example.com",
			}, nil)

		url, err := suite.svc.ShortenURL(context.Background(), ShortenParams{
			OriginalURL:     "https://example.com",
			CustomShortCode: "custom1",
		})

		suite.NoError(err)
		suite.NotNil(url)
		suite.Equal("custom1", url.ShortCode)
		suite.Equal("https://example.com", url.OriginalURL)
	})

	suite.Run("generated code retries on collision", func() {
		suite.urlRepoMock.
			On("Create", context.Background(), mock.Anything).
			Once().
			Return(nil, database.ErrShortCodeExists)
		suite.urlRepoMock.
			On("Create", context.Background(), mock.Anything).
			Once().
			Return(&models.URL{
				ShortCode:   "abc12345",
				OriginalURL: "https://example.com",
			}, nil)

		url, err := suite.svc.ShortenURL(context.Background(), ShortenParams{
			OriginalURL: "https://example.com",
		})

		suite.NoError(err)
		suite.NotNil(url)
		suite.Equal("abc12345", url.ShortCode)
	})

	suite.Run("allocation exhausted", func() {
		suite.urlRepoMock.
			On("Create", context.Background(), mock.Anything).
			Times(maxAllocationRetries).
			Return(nil, database.ErrShortCodeExists)

		url, err := suite.svc.ShortenURL(context.Background(), ShortenParams{
			OriginalURL: "https://example.com",
		})

		suite.Error(err)
		suite.ErrorIs(err, ErrAllocationExhausted)
		suite.Nil(url)
	})

	suite.Run("unknown error", func() {
		suite.urlRepoMock.
			On("Create", context.Background(), mock.Anything).
			Once().
			Return(nil, suite.errUnknown)

		url, err := suite.svc.ShortenURL(context.Background(), ShortenParams{
			OriginalURL: "https://example.com",
		})

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("expiry is passed through", func() {
		expireAt := time.Now().Add(time.Hour).Truncate(time.Second)

		suite.urlRepoMock.
			On("Create", context.Background(), mock.MatchedBy(func(url *models.URL) bool {
				return url.ExpireAt != nil && url.ExpireAt.Equal(expireAt)
			})).
			Once().
			Return(&models.URL{
				ShortCode:   "abc12345",
				OriginalURL: "https://example.com",
				ExpireAt:    &expireAt,
			}, nil)

		url, err := suite.svc.ShortenURL(context.Background(), ShortenParams{
			OriginalURL: "https://example.com",
			ExpireAt:    &expireAt,
		})

		suite.NoError(err)
		suite.NotNil(url)
		suite.NotNil(url.ExpireAt)
	})
}

func (suite *URLServiceTestSuite) TestResolve() {
	suite.Run("url not found", func() {
		suite.urlRepoMock.
			On("GetByShortCode", context.Background(), "missing").
			Once().
			Return(nil, database.ErrURLNotFound)

		originalURL, err := suite.svc.Resolve(context.Background(), "missing")

		suite.Error(err)
		suite.ErrorIs(err, database.ErrURLNotFound)
		suite.Empty(originalURL)
	})

	suite.Run("success without cache", func() {
		suite.urlRepoMock.
			On("GetByShortCode", context.Background(), "abc12345").
			Once().
			Return(&models.URL{
				ShortCode:   "abc12345",
				OriginalURL: "https://example.com",
			}, nil)

		originalURL, err := suite.svc.Resolve(context.Background(), "abc12345")

		suite.NoError(err)
		suite.Equal("https://example.com", originalURL)
	})

	suite.Run("cache hit skips the repository", func() {
		cacheMock := new(MockLookupCache)
		cacheMock.
			On("Get", context.Background(), "abc12345").
			Once().
			Return("https://example.com", true)
		suite.svc.cache = cacheMock

		originalURL, err := suite.svc.Resolve(context.Background(), "abc12345")

		suite.NoError(err)
		suite.Equal("https://example.com", originalURL)
		suite.urlRepoMock.AssertNotCalled(suite.T(), "GetByShortCode", mock.Anything, mock.Anything)
		cacheMock.AssertExpectations(suite.T())
	})

	suite.Run("cache miss populates the cache", func() {
		url := &models.URL{
			ShortCode:   "abc12345",
			OriginalURL: "https://example.com",
		}

		cacheMock := new(MockLookupCache)
		cacheMock.
			On("Get", context.Background(), "abc12345").
			Once().
			Return("", false)
		cacheMock.
			On("Set", context.Background(), url).
			Once().
			Return()
		suite.svc.cache = cacheMock

		suite.urlRepoMock.
			On("GetByShortCode", context.Background(), "abc12345").
			Once().
			Return(url, nil)

		originalURL, err := suite.svc.Resolve(context.Background(), "abc12345")

		suite.NoError(err)
		suite.Equal("https://example.com", originalURL)
		cacheMock.AssertExpectations(suite.T())
	})
}

func (suite *URLServiceTestSuite) TestGetURL() {
	suite.Run("url not found", func() {
		suite.urlRepoMock.
			On("GetByShortCode", context.Background(), "missing").
			Once().
			Return(nil, database.ErrURLNotFound)

		url, err := suite.svc.GetURL(context.Background(), "missing")

		suite.Error(err)
		suite.ErrorIs(err, database.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("GetByShortCode", context.Background(), "abc12345").
			Once().
			Return(&models.URL{
				ShortCode:   "abc12345",
				OriginalURL: "https://example.com",
			}, nil)

		url, err := suite.svc.GetURL(context.Background(), "abc12345")

		suite.NoError(err)
		suite.NotNil(url)
		suite.Equal("abc12345", url.ShortCode)
	})
}

func (suite *URLServiceTestSuite) TestModifyURL() {
	suite.Run("invalid url", func() {
		url, err := suite.svc.ModifyURL(context.Background(), "abc12345", "not a url")

		suite.Error(err)
		suite.ErrorIs(err, ErrInvalidURL)
		suite.Nil(url)
		suite.urlRepoMock.AssertNotCalled(suite.T(), "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	suite.Run("updated target is re-screened", func() {
		suite.gate.admit = false

		url, err := suite.svc.ModifyURL(context.Background(), "abc12345", "https://new-example.com")

		suite.Error(err)
		suite.ErrorIs(err, ErrGateRejected)
		suite.Nil(url)
		suite.urlRepoMock.AssertNotCalled(suite.T(), "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	suite.Run("url not found", func() {
		suite.urlRepoMock.
			On("Update", context.Background(), "missing", "https://new-example.com", mock.Anything).
			Once().
			Return(nil, database.ErrURLNotFound)

		url, err := suite.svc.ModifyURL(context.Background(), "missing", "https://new-example.com")

		suite.Error(err)
		suite.ErrorIs(err, database.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("success invalidates the cache", func() {
		cacheMock := new(MockLookupCache)
		cacheMock.
			On("Invalidate", context.Background(), "abc12345").
			Once().
			Return()
		suite.svc.cache = cacheMock

		suite.urlRepoMock.
			On("Update", context.Background(), "abc12345", "https://new-example.com", mock.Anything).
			Once().
			Return(&models.URL{
				ShortCode:   "abc12345",
				OriginalURL: "https://new-example.com",
			}, nil)

		url, err := suite.svc.ModifyURL(context.Background(), "abc12345", "https://new-example.com")

		suite.NoError(err)
		suite.NotNil(url)
		suite.Equal("https://new-example.com", url.OriginalURL)
		cacheMock.AssertExpectations(suite.T())
	})
}

func (suite *URLServiceTestSuite) TestListURLs() {
	suite.Run("unknown error", func() {
		suite.urlRepoMock.
			On("List", context.Background()).
			Once().
			Return(nil, suite.errUnknown)

		urls, err := suite.svc.ListURLs(context.Background())

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(urls)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("List", context.Background()).
			Once().
			Return([]*models.URL{
				{ShortCode: "abc12345", OriginalURL: "https://example.com"},
				{ShortCode: "custom1", OriginalURL: "https://example.org"},
			}, nil)

		urls, err := suite.svc.ListURLs(context.Background())

		suite.NoError(err)
		suite.Len(urls, 2)
	})
}

func TestURLService(t *testing.T) {
	suite.Run(t, new(URLServiceTestSuite))
}
