package domain

import (
	"sort"
)

// NormalizeDiscountConfig converts a merchant-authored, loosely-typed
// discount configuration into the canonical DiscountConfig. It never fails:
// unparseable or partially-invalid input normalizes to a disabled config so
// the caller can report "discount not enabled" instead of a server error.
//
// Strategy is resolved here, exactly once. An explicit strategy field wins;
// otherwise it is inferred from which sub-objects are populated: non-empty
// tiers imply tiered, BOGO buy/get selections imply bogo, a free-gift
// product implies free_gift, anything else is basic. Historical configs
// often omit the strategy field, so the inference path is the common one.
func NormalizeDiscountConfig(raw map[string]any) DiscountConfig {
	cfg := DiscountConfig{
		Enabled:   false,
		Strategy:  StrategyBasic,
		ValueType: ValuePercentage,
		Behavior:  BehaviorShowCodeAndAutoApply,
		Applicability: Applicability{
			Scope: ScopeAll,
		},
	}
	if len(raw) == 0 {
		return cfg
	}

	cfg.Enabled = toBool(lookup(raw, "enabled"))

	if v, ok := toFloat(lookup(raw, "value", "discount_value", "discountValue")); ok {
		cfg.Value = v
	}
	if vt, ok := toString(lookup(raw, "value_type", "valueType", "discount_type", "discountType")); ok {
		switch ValueType(vt) {
		case ValuePercentage, ValueFixedAmount:
			cfg.ValueType = ValueType(vt)
		}
	}

	cfg.Tiers = normalizeTiers(lookup(raw, "tiers"))
	cfg.Bogo = normalizeBogo(raw)
	cfg.FreeGift = normalizeFreeGift(raw)
	cfg.Applicability = normalizeApplicability(raw)

	if b, ok := toString(lookup(raw, "behavior", "discount_behavior", "discountBehavior")); ok {
		switch Behavior(b) {
		case BehaviorShowCodeAndAutoApply, BehaviorShowCodeOnly, BehaviorAutoApplyOnly:
			cfg.Behavior = Behavior(b)
		}
	}

	if d, ok := toInt(lookup(raw, "expiry_days", "expiryDays")); ok && d > 0 {
		cfg.ExpiryDays = &d
	}
	if l, ok := toInt(lookup(raw, "usage_limit", "usageLimit")); ok && l > 0 {
		cfg.UsageLimit = &l
	}

	cfg.Strategy = resolveStrategy(raw, cfg)
	return cfg
}

// resolveStrategy picks the canonical strategy. An explicit, known strategy
// field takes precedence; otherwise the strategy is inferred from the
// populated sub-objects.
func resolveStrategy(raw map[string]any, cfg DiscountConfig) Strategy {
	if s, ok := toString(lookup(raw, "strategy", "discount_strategy", "discountStrategy")); ok {
		switch Strategy(s) {
		case StrategyBasic, StrategyTiered, StrategyBogo, StrategyFreeGift, StrategyBundle:
			return Strategy(s)
		}
	}
	switch {
	case len(cfg.Tiers) > 0:
		return StrategyTiered
	case cfg.Bogo != nil:
		return StrategyBogo
	case cfg.FreeGift != nil:
		return StrategyFreeGift
	default:
		return StrategyBasic
	}
}

// normalizeTiers parses the tier list, dropping entries without a usable
// threshold, and sorts the result ascending by threshold. An empty or
// invalid list yields nil so the tiered strategy is never inferred from
// garbage input.
func normalizeTiers(v any) []Tier {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil
	}

	tiers := make([]Tier, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		threshold, ok := toInt64(lookup(m, "threshold_cents", "thresholdCents", "min_subtotal_cents", "minSubtotalCents"))
		if !ok || threshold < 0 {
			continue
		}
		t := Tier{
			ThresholdCents: threshold,
			ValueType:      ValuePercentage,
		}
		if val, ok := toFloat(lookup(m, "value", "discount_value", "discountValue")); ok {
			t.Value = val
		}
		if vt, ok := toString(lookup(m, "value_type", "valueType")); ok {
			switch ValueType(vt) {
			case ValuePercentage, ValueFixedAmount:
				t.ValueType = ValueType(vt)
			}
		}
		if label, ok := toString(lookup(m, "label")); ok {
			t.Label = label
		}
		tiers = append(tiers, t)
	}
	if len(tiers) == 0 {
		return nil
	}

	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].ThresholdCents < tiers[j].ThresholdCents
	})
	return tiers
}

// normalizeBogo extracts BOGO buy/get selections. Nil when no BOGO fields
// are present, which is what strategy inference keys off.
func normalizeBogo(raw map[string]any) *BogoConfig {
	v := lookup(raw, "bogo", "bogo_config", "bogoConfig")
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	b := &BogoConfig{BuyQuantity: 1, GetQuantity: 1, GetDiscountPercent: 100}
	if q, ok := toInt(lookup(m, "buy_quantity", "buyQuantity")); ok && q > 0 {
		b.BuyQuantity = q
	}
	if q, ok := toInt(lookup(m, "get_quantity", "getQuantity")); ok && q > 0 {
		b.GetQuantity = q
	}
	if p, ok := toFloat(lookup(m, "get_discount_percent", "getDiscountPercent")); ok && p > 0 {
		b.GetDiscountPercent = p
	}
	b.BuyProductIDs = toStringSlice(lookup(m, "buy_product_ids", "buyProductIds"))
	b.GetProductIDs = toStringSlice(lookup(m, "get_product_ids", "getProductIds"))
	return b
}

// normalizeFreeGift extracts the free-gift selection. Nil when absent or when
// no gift product is named.
func normalizeFreeGift(raw map[string]any) *FreeGiftConfig {
	v := lookup(raw, "free_gift", "freeGift", "free_gift_config", "freeGiftConfig")
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	productID, ok := toString(lookup(m, "product_id", "productId"))
	if !ok || productID == "" {
		return nil
	}
	g := &FreeGiftConfig{ProductID: productID}
	if variantID, ok := toString(lookup(m, "variant_id", "variantId")); ok {
		g.VariantID = variantID
	}
	if min, ok := toInt64(lookup(m, "min_subtotal_cents", "minSubtotalCents")); ok && min > 0 {
		g.MinSubtotalCents = min
	}
	return g
}

func normalizeApplicability(raw map[string]any) Applicability {
	a := Applicability{Scope: ScopeAll}

	v := lookup(raw, "applicability", "applies_to", "appliesTo")
	m, ok := v.(map[string]any)
	if !ok {
		// Flat legacy form: scope and ID lists at the top level.
		m = raw
	}

	if s, ok := toString(lookup(m, "scope", "applies_to_scope", "appliesToScope")); ok {
		switch Scope(s) {
		case ScopeAll, ScopeProducts, ScopeCollections, ScopeCart:
			a.Scope = Scope(s)
		}
	}
	a.ProductIDs = toStringSlice(lookup(m, "product_ids", "productIds"))
	a.CollectionIDs = toStringSlice(lookup(m, "collection_ids", "collectionIds"))
	return a
}

// lookup returns the first present key from the candidates. Merchant configs
// arrive in both snake_case and camelCase depending on which admin client
// saved them.
func lookup(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "1"
	case float64:
		return b != 0
	default:
		return false
	}
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func toInt64(v any) (int64, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func toStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
