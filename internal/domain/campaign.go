package domain

import (
	"encoding/json"
	"time"
)

// Campaign status constants.
const (
	CampaignStatusDraft    = "draft"
	CampaignStatusActive   = "active"
	CampaignStatusPaused   = "paused"
	CampaignStatusArchived = "archived"
)

// Campaign is the merchant-authored popup campaign as read from the campaign
// store. DiscountConfig holds the raw, loosely-typed configuration exactly as
// the admin application saved it; it is normalized on every issuance request.
type Campaign struct {
	ID             string          `json:"id"`
	StoreID        string          `json:"store_id"`
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	DiscountConfig json.RawMessage `json:"discount_config"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsActive reports whether the campaign can currently issue discounts.
func (c *Campaign) IsActive() bool {
	return c.Status == CampaignStatusActive
}

// RawConfig decodes the stored discount configuration into a loosely-typed
// map for normalization. A missing or malformed config yields an empty map,
// which normalizes to a disabled discount.
func (c *Campaign) RawConfig() map[string]any {
	if len(c.DiscountConfig) == 0 {
		return map[string]any{}
	}
	var raw map[string]any
	if err := json.Unmarshal(c.DiscountConfig, &raw); err != nil {
		return map[string]any{}
	}
	return raw
}

// ValidStatuses returns the set of valid campaign statuses.
func ValidStatuses() []string {
	return []string{
		CampaignStatusDraft,
		CampaignStatusActive,
		CampaignStatusPaused,
		CampaignStatusArchived,
	}
}

// IsValidStatus checks whether the given status string is a valid campaign status.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}
