package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bokzor/revenue-boost/internal/domain"
	apperrors "github.com/bokzor/revenue-boost/pkg/errors"
)

const issuanceKeyPrefix = "rb:issue:"

// IssuanceCache implements repository.IssuanceCache using Redis. One record
// per (session, campaign) pair, expired by Redis itself; no sweeper needed.
type IssuanceCache struct {
	client *redis.Client
}

// NewIssuanceCache creates a new Redis-backed issuance cache.
func NewIssuanceCache(client *redis.Client) *IssuanceCache {
	return &IssuanceCache{client: client}
}

func issuanceKey(sessionID, campaignID string) string {
	return issuanceKeyPrefix + sessionID + ":" + campaignID
}

// Get retrieves the cached issuance record for the pair.
func (c *IssuanceCache) Get(ctx context.Context, sessionID, campaignID string) (*domain.IssuanceRecord, error) {
	data, err := c.client.Get(ctx, issuanceKey(sessionID, campaignID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("redis get issuance: %w", err)
	}

	var record domain.IssuanceRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal issuance record: %w", err)
	}

	return &record, nil
}

// Put records an issued code for the pair. SetNX keeps the first writer's
// record when two in-flight requests both provisioned; the TTL is fixed from
// that first write, not refreshed on reads.
func (c *IssuanceCache) Put(ctx context.Context, sessionID, campaignID string, record *domain.IssuanceRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal issuance record: %w", err)
	}

	if err := c.client.SetNX(ctx, issuanceKey(sessionID, campaignID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set issuance: %w", err)
	}

	return nil
}
