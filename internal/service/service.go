package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pavelzhurbin/shorturl/internal/database"
	"github.com/pavelzhurbin/shorturl/internal/models"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	// ErrAllocationExhausted is returned when the retry budget for generating
	// a free short code is exhausted. The request is safe to retry later.
	ErrAllocationExhausted = errors.New("short code allocation exhausted")
	// ErrGateRejected is returned when the anomaly gate declines the target
	// URL. The mapping is never persisted.
	ErrGateRejected = errors.New("url rejected")
	// ErrInvalidURL is returned for a target that is not an absolute URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidExpiry is returned when the requested expiry is not in the future.
	ErrInvalidExpiry = errors.New("expiry must be in the future")
)

// maxAllocationRetries bounds the generated-code collision loop. Sustained
// collisions at nanoid entropy indicate something badly wrong upstream, so
// the request fails instead of spinning.
const maxAllocationRetries = 32

// URLRepository defines the interface for the durable short code directory.
type URLRepository interface {
	// Create persists a new record, atomically claiming its short code.
	// Returns database.ErrShortCodeExists if the code is held by a live record.
	Create(ctx context.Context, url *models.URL) (*models.URL, error)

	// GetByShortCode retrieves the live record for a short code.
	// Returns database.ErrURLNotFound if there is none.
	GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error)

	// Update replaces the destination and feature snapshot of a live record.
	Update(ctx context.Context, shortCode, originalURL string, features models.FeatureSnapshot) (*models.URL, error)

	// List enumerates all live records.
	List(ctx context.Context) ([]*models.URL, error)

	// DeleteExpired removes dead records and reports how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}

// FeatureExtractor derives the risk features for a target URL. Extraction
// degrades to absent fields instead of failing.
type FeatureExtractor interface {
	Extract(ctx context.Context, originalURL string) models.FeatureSnapshot
}

// AnomalyGate decides whether a feature snapshot may be admitted.
type AnomalyGate interface {
	Evaluate(features models.FeatureSnapshot) bool
}

// LookupCache fronts short code resolution. Implementations must degrade to
// misses on failure; nil disables caching.
type LookupCache interface {
	Get(ctx context.Context, shortCode string) (string, bool)
	Set(ctx context.Context, url *models.URL)
	Invalidate(ctx context.Context, shortCode string)
}

// ShortenParams describes a creation request.
type ShortenParams struct {
	OriginalURL     string
	CustomShortCode string
	ExpireAt        *time.Time
}

// URLService orchestrates the admission pipeline: extract features, gate,
// allocate a short code and persist. The directory write is the single
// commit point; nothing is stored before the gate admits the target and a
// free code is claimed.
type URLService struct {
	logger          *slog.Logger
	repo            URLRepository
	extractor       FeatureExtractor
	gate            AnomalyGate
	cache           LookupCache
	shortCodeLength int
}

func NewURLService(logger *slog.Logger, repo URLRepository, extractor FeatureExtractor, gate AnomalyGate, cache LookupCache, shortCodeLength int) *URLService {
	return &URLService{
		logger:          logger,
		repo:            repo,
		extractor:       extractor,
		gate:            gate,
		cache:           cache,
		shortCodeLength: shortCodeLength,
	}
}

// ShortenURL screens the target and stores a new mapping under either the
// caller's short code or a generated one.
//
// With a custom code, a live holder of that code fails the request with
// database.ErrShortCodeExists and no retry. Without one, candidates are
// generated and submitted until the directory accepts one; the conditional
// insert is what claims the code, so two racing requests can never both
// persist the same live code.
func (s *URLService) ShortenURL(ctx context.Context, params ShortenParams) (*models.URL, error) {
	const op = "service.URLService.ShortenURL"

	if err := validateOriginalURL(params.OriginalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if params.ExpireAt != nil && !params.ExpireAt.After(time.Now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidExpiry)
	}

	features := s.extractor.Extract(ctx, params.OriginalURL)
	if features.DomainAgeDays == nil || features.ContentWordCount == nil {
		s.logger.Warn("feature extraction degraded",
			slog.String("url", params.OriginalURL),
			slog.Bool("domain_age", features.DomainAgeDays != nil),
			slog.Bool("content", features.ContentWordCount != nil),
		)
	}

	if !s.gate.Evaluate(features) {
		return nil, fmt.Errorf("%s: %w", op, ErrGateRejected)
	}

	if params.CustomShortCode != "" {
		url, err := s.persist(ctx, params.CustomShortCode, params, features)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return url, nil
	}

	for i := 0; i < maxAllocationRetries; i++ {
		shortCode, err := gonanoid.New(s.shortCodeLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		url, err := s.persist(ctx, shortCode, params, features)
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrAllocationExhausted)
}

func (s *URLService) persist(ctx context.Context, shortCode string, params ShortenParams, features models.FeatureSnapshot) (*models.URL, error) {
	return s.repo.Create(ctx, &models.URL{
		ID:            uuid.NewString(),
		ShortCode:     shortCode,
		OriginalURL:   params.OriginalURL,
		CreationNonce: uuid.NewString(),
		ExpireAt:      params.ExpireAt,
		Features:      features,
	})
}

// Resolve returns the destination for a short code, consulting the cache
// before the directory. This is the redirect hot path.
func (s *URLService) Resolve(ctx context.Context, shortCode string) (string, error) {
	const op = "service.URLService.Resolve"

	if s.cache != nil {
		if originalURL, ok := s.cache.Get(ctx, shortCode); ok {
			return originalURL, nil
		}
	}

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return "", fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, url)
	}

	return url.OriginalURL, nil
}

// GetURL retrieves the full record for a short code.
func (s *URLService) GetURL(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.GetURL"

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url: %w", op, err)
	}

	return url, nil
}

// ModifyURL replaces the destination of an existing mapping. The new target
// goes through the same extraction and gating as a creation; a mapping never
// silently starts pointing at an unscreened URL.
func (s *URLService) ModifyURL(ctx context.Context, shortCode, originalURL string) (*models.URL, error) {
	const op = "service.URLService.ModifyURL"

	if err := validateOriginalURL(originalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	features := s.extractor.Extract(ctx, originalURL)
	if !s.gate.Evaluate(features) {
		return nil, fmt.Errorf("%s: %w", op, ErrGateRejected)
	}

	url, err := s.repo.Update(ctx, shortCode, originalURL, features)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to modify url: %w", op, err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, shortCode)
	}

	return url, nil
}

// ListURLs enumerates all live mappings.
func (s *URLService) ListURLs(ctx context.Context) ([]*models.URL, error) {
	const op = "service.URLService.ListURLs"

	urls, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, nil
}

func validateOriginalURL(originalURL string) error {
	u, err := url.ParseRequestURI(originalURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidURL
	}

	return nil
}
