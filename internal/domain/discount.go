package domain

import "time"

// Strategy identifies the shape of discount logic a campaign uses. It is
// resolved exactly once, during normalization, and never re-derived
// downstream.
type Strategy string

const (
	StrategyBasic    Strategy = "basic"
	StrategyTiered   Strategy = "tiered"
	StrategyBogo     Strategy = "bogo"
	StrategyFreeGift Strategy = "free_gift"
	StrategyBundle   Strategy = "bundle"
)

// ValueType identifies how a discount value is interpreted.
type ValueType string

const (
	ValuePercentage  ValueType = "percentage"
	ValueFixedAmount ValueType = "fixed_amount"
)

// Scope identifies which part of the catalog a discount code applies to.
type Scope string

const (
	ScopeAll         Scope = "all"
	ScopeProducts    Scope = "products"
	ScopeCollections Scope = "collections"
	// ScopeCart is declarative intent: "whatever is in the cart right now".
	// The commerce platform has no such native scope, so it must be
	// materialized into concrete product IDs at issuance time.
	ScopeCart Scope = "cart"
)

// Behavior controls how the storefront popup presents an issued code.
type Behavior string

const (
	BehaviorShowCodeAndAutoApply Behavior = "show_code_and_auto_apply"
	BehaviorShowCodeOnly         Behavior = "show_code_only"
	BehaviorAutoApplyOnly        Behavior = "auto_apply_only"
)

// Tier pairs a cart-subtotal threshold with a discount value override.
type Tier struct {
	ThresholdCents int64     `json:"threshold_cents"`
	Value          float64   `json:"value"`
	ValueType      ValueType `json:"value_type"`
	Label          string    `json:"label,omitempty"`
}

// Applicability restricts which products or collections a code applies to.
type Applicability struct {
	Scope         Scope    `json:"scope"`
	ProductIDs    []string `json:"product_ids,omitempty"`
	CollectionIDs []string `json:"collection_ids,omitempty"`
}

// BogoConfig holds the buy/get selections for a buy-one-get-one discount.
type BogoConfig struct {
	BuyQuantity        int      `json:"buy_quantity"`
	BuyProductIDs      []string `json:"buy_product_ids,omitempty"`
	GetQuantity        int      `json:"get_quantity"`
	GetProductIDs      []string `json:"get_product_ids,omitempty"`
	GetDiscountPercent float64  `json:"get_discount_percent"`
}

// FreeGiftConfig holds the gift selection for a free-gift discount.
type FreeGiftConfig struct {
	ProductID        string `json:"product_id"`
	VariantID        string `json:"variant_id,omitempty"`
	MinSubtotalCents int64  `json:"min_subtotal_cents"`
}

// DiscountConfig is the canonical, strategy-tagged discount configuration a
// campaign carries after normalization. Invariants: Tiers, when present, is
// non-empty and sorted ascending by ThresholdCents; Strategy matches the
// populated sub-objects (Tiers => tiered, Bogo => bogo, FreeGift =>
// free_gift).
type DiscountConfig struct {
	Enabled       bool            `json:"enabled"`
	Strategy      Strategy        `json:"strategy"`
	ValueType     ValueType       `json:"value_type"`
	Value         float64         `json:"value"`
	Tiers         []Tier          `json:"tiers,omitempty"`
	Bogo          *BogoConfig     `json:"bogo,omitempty"`
	FreeGift      *FreeGiftConfig `json:"free_gift,omitempty"`
	Applicability Applicability   `json:"applicability"`
	Behavior      Behavior        `json:"behavior"`
	ExpiryDays    *int            `json:"expiry_days,omitempty"`
	UsageLimit    *int            `json:"usage_limit,omitempty"`
}

// IssuanceRecord is the idempotency unit: the code previously issued for a
// (session, campaign) pair within the idempotency window.
type IssuanceRecord struct {
	CampaignID string    `json:"campaign_id"`
	Code       string    `json:"code"`
	IssuedAt   time.Time `json:"issued_at"`
}

// RateLimit bounds the number of attempts per identifier per window.
type RateLimit struct {
	Max    int
	Window time.Duration
}
