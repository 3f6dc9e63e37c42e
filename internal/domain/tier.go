package domain

// NoTier is returned by SelectTier when the cart qualifies for no tier and
// the base (non-tiered) value applies.
const NoTier = -1

// SelectTier returns the index of the highest tier whose threshold the cart
// subtotal meets, assuming tiers are sorted ascending by threshold (the
// normalizer guarantees this). A nil subtotal or one below every threshold
// returns NoTier.
//
// Known limitation: the subtotal is only checked at issuance time. The
// platform re-enforces the tier's minimum at checkout through its own
// minimum-purchase rule, so a code issued for a higher tier fails there if
// the cart shrinks before redemption. This engine does not re-validate the
// subtotal at redemption.
func SelectTier(tiers []Tier, cartSubtotalCents *int64) int {
	if len(tiers) == 0 || cartSubtotalCents == nil {
		return NoTier
	}

	selected := NoTier
	for i, t := range tiers {
		if t.ThresholdCents <= *cartSubtotalCents {
			selected = i
		}
	}
	return selected
}
