package repository

import (
	"context"
	"time"

	"github.com/bokzor/revenue-boost/internal/domain"
)

// CampaignRepository defines read access to the campaign store.
type CampaignRepository interface {
	// GetByID retrieves a campaign by its unique identifier. Returns
	// apperrors.ErrNotFound when no campaign exists.
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
}

// IssuanceCache stores the code issued per (session, campaign) pair for the
// idempotency window.
type IssuanceCache interface {
	// Get returns the cached issuance record for the pair, or
	// apperrors.ErrNotFound on a miss.
	Get(ctx context.Context, sessionID, campaignID string) (*domain.IssuanceRecord, error)

	// Put records an issued code for the pair with the given TTL.
	Put(ctx context.Context, sessionID, campaignID string, record *domain.IssuanceRecord, ttl time.Duration) error
}

// RateLimiter bounds how often an identifier may perform an operation.
type RateLimiter interface {
	// Allow consumes one attempt and reports whether the identifier is
	// still within the limit for the operation's window.
	Allow(ctx context.Context, identifier, operation string, limit domain.RateLimit) (bool, error)
}
