package domain

// ApplyScopeOverrides layers request-time scope overrides on top of a
// normalized config and returns the resolved copy. Precedence:
//
//  1. A non-empty selectedProductIDs forces strategy=bundle and scopes the
//     discount to exactly those products, overriding any merchant-configured
//     scope. This is the runtime-selected subset path (user- or
//     recommendation-chosen items).
//  2. Otherwise, a cart-scoped config with non-empty cartProductIDs has its
//     applicability rewritten to the concrete product IDs currently in the
//     cart. The commerce platform has no native "current cart contents"
//     scope, so the intent is materialized here, at issuance time.
//
// Only case 1 touches strategy; case 2 rewrites applicability alone.
func ApplyScopeOverrides(cfg DiscountConfig, selectedProductIDs, cartProductIDs []string) DiscountConfig {
	if len(selectedProductIDs) > 0 {
		cfg.Strategy = StrategyBundle
		cfg.Applicability = Applicability{
			Scope:      ScopeProducts,
			ProductIDs: selectedProductIDs,
		}
		return cfg
	}

	if cfg.Applicability.Scope == ScopeCart && len(cartProductIDs) > 0 {
		cfg.Applicability = Applicability{
			Scope:      ScopeProducts,
			ProductIDs: cartProductIDs,
		}
	}
	return cfg
}
