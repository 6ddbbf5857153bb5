package models

import "time"

// URL represents a shortened URL mapping and the metadata captured when it
// was admitted.
type URL struct {
	// ID is the unique identifier of the record, generated at creation and
	// never reused.
	ID string
	// ShortCode is the code used to look the mapping up.
	ShortCode string
	// OriginalURL is the destination the short code resolves to.
	OriginalURL string
	// CreationNonce is a secondary unique token recorded for write ordering
	// and tracing. It is never used for lookups.
	CreationNonce string
	// ExpireAt, when set, is the instant after which the record is dead and
	// its short code becomes available again.
	ExpireAt *time.Time
	// Features is the snapshot the anomaly gate scored at creation time.
	// It is never recomputed on read.
	Features FeatureSnapshot
	// CreatedAt is the timestamp indicating when the record was created.
	CreatedAt time.Time
	// UpdatedAt is the timestamp indicating when the record was last updated.
	UpdatedAt time.Time
}

// FeatureSnapshot holds the risk features derived from the original URL at
// creation time. The lexical fields are always present; the rest are nil
// when extraction degraded.
type FeatureSnapshot struct {
	URLLength               int64
	SpecialCharCount        int64
	DomainAgeDays           *int64
	ContentWordCount        *int64
	ContentSpecialCharCount *int64
}

// Expired reports whether the record is past its expiry at the given instant.
func (u *URL) Expired(now time.Time) bool {
	return u.ExpireAt != nil && !u.ExpireAt.After(now)
}
