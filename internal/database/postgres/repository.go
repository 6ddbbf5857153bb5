package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pavelzhurbin/shorturl/internal/database"
	"github.com/pavelzhurbin/shorturl/internal/models"
)

type urlRecord struct {
	ID                      string        `db:"id"`
	ShortCode               string        `db:"short_code"`
	OriginalURL             string        `db:"original_url"`
	CreationNonce           string        `db:"creation_nonce"`
	ExpireAt                sql.NullTime  `db:"expire_at"`
	URLLength               int64         `db:"url_length"`
	SpecialCharCount        int64         `db:"special_char_count"`
	DomainAgeDays           sql.NullInt64 `db:"domain_age_days"`
	ContentWordCount        sql.NullInt64 `db:"content_word_count"`
	ContentSpecialCharCount sql.NullInt64 `db:"content_special_char_count"`
	CreatedAt               time.Time     `db:"created_at"`
	UpdatedAt               time.Time     `db:"updated_at"`
}

func (r *urlRecord) ToURL() *models.URL {
	url := &models.URL{
		ID:            r.ID,
		ShortCode:     r.ShortCode,
		OriginalURL:   r.OriginalURL,
		CreationNonce: r.CreationNonce,
		Features: models.FeatureSnapshot{
			URLLength:        r.URLLength,
			SpecialCharCount: r.SpecialCharCount,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if r.ExpireAt.Valid {
		t := r.ExpireAt.Time
		url.ExpireAt = &t
	}
	if r.DomainAgeDays.Valid {
		v := r.DomainAgeDays.Int64
		url.Features.DomainAgeDays = &v
	}
	if r.ContentWordCount.Valid {
		v := r.ContentWordCount.Int64
		url.Features.ContentWordCount = &v
	}
	if r.ContentSpecialCharCount.Valid {
		v := r.ContentSpecialCharCount.Int64
		url.Features.ContentSpecialCharCount = &v
	}

	return url
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// URLRepository stores URL records in Postgres. Short code uniqueness is
// enforced by the unique index on short_code; the insert takes over a row
// only when its previous holder has expired.
type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

// Create inserts the record, claiming its short code atomically. If the code
// is held by a live record, it returns database.ErrShortCodeExists. An
// expired holder is overwritten in the same statement, so freed codes are
// reallocatable without a separate cleanup step.
func (r *URLRepository) Create(ctx context.Context, url *models.URL) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Create"

	rec := new(urlRecord)
	query := `INSERT INTO urls(id, short_code, original_url, creation_nonce, expire_at,
			url_length, special_char_count, domain_age_days, content_word_count, content_special_char_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (short_code) DO UPDATE
		SET id = EXCLUDED.id,
			original_url = EXCLUDED.original_url,
			creation_nonce = EXCLUDED.creation_nonce,
			expire_at = EXCLUDED.expire_at,
			url_length = EXCLUDED.url_length,
			special_char_count = EXCLUDED.special_char_count,
			domain_age_days = EXCLUDED.domain_age_days,
			content_word_count = EXCLUDED.content_word_count,
			content_special_char_count = EXCLUDED.content_special_char_count,
			created_at = now(),
			updated_at = now()
		WHERE urls.expire_at IS NOT NULL AND urls.expire_at <= now()
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query,
		url.ID, url.ShortCode, url.OriginalURL, url.CreationNonce, nullTime(url.ExpireAt),
		url.Features.URLLength, url.Features.SpecialCharCount,
		nullInt64(url.Features.DomainAgeDays),
		nullInt64(url.Features.ContentWordCount),
		nullInt64(url.Features.ContentSpecialCharCount),
	)
	if err != nil {
		// No row back means the conflicting holder is still live.
		if err == sql.ErrNoRows || isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// GetByShortCode retrieves the live record for the given short code.
func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByShortCode"

	rec := new(urlRecord)
	query := `SELECT * FROM urls
		WHERE short_code = $1 AND (expire_at IS NULL OR expire_at > now())`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// Update replaces the destination of a live record, refreshing its feature
// snapshot to match the newly screened target.
func (r *URLRepository) Update(ctx context.Context, shortCode, originalURL string, features models.FeatureSnapshot) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Update"

	rec := new(urlRecord)
	query := `UPDATE urls
		SET original_url = $1,
			url_length = $2,
			special_char_count = $3,
			domain_age_days = $4,
			content_word_count = $5,
			content_special_char_count = $6,
			updated_at = now()
		WHERE short_code = $7 AND (expire_at IS NULL OR expire_at > now())
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query,
		originalURL,
		features.URLLength, features.SpecialCharCount,
		nullInt64(features.DomainAgeDays),
		nullInt64(features.ContentWordCount),
		nullInt64(features.ContentSpecialCharCount),
		shortCode,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// List enumerates all live records, oldest first.
func (r *URLRepository) List(ctx context.Context) ([]*models.URL, error) {
	const op = "database.postgres.URLRepository.List"

	var recs []urlRecord
	query := `SELECT * FROM urls
		WHERE expire_at IS NULL OR expire_at > now()
		ORDER BY created_at`

	err := r.db.SelectContext(ctx, &recs, query)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list url records: %w", op, err)
	}

	urls := make([]*models.URL, 0, len(recs))
	for i := range recs {
		urls = append(urls, recs[i].ToURL())
	}

	return urls, nil
}

// DeleteExpired physically removes dead rows and reports how many were removed.
func (r *URLRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const op = "database.postgres.URLRepository.DeleteExpired"

	query := `DELETE FROM urls
		WHERE expire_at IS NOT NULL AND expire_at <= now()`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to delete expired url records: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}

	return n, nil
}
