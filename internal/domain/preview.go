package domain

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// PreviewIDPrefix marks a synthetic campaign identifier carrying an inline,
// not-yet-saved configuration. The admin editor uses these to exercise the
// issuance path without touching the campaign store, the idempotency cache,
// the rate limiter, or the provisioning gateway.
const PreviewIDPrefix = "preview:"

// IsPreviewID reports whether a campaign identifier is a preview token.
func IsPreviewID(campaignID string) bool {
	return strings.HasPrefix(campaignID, PreviewIDPrefix)
}

// ParsePreviewID decodes the inline configuration from a preview token. The
// payload after the prefix is base64 (standard or URL-safe, padded or raw)
// of a JSON object in the same loose shape the campaign store holds.
func ParsePreviewID(campaignID string) (map[string]any, error) {
	payload := strings.TrimPrefix(campaignID, PreviewIDPrefix)
	if payload == "" {
		return nil, fmt.Errorf("preview token has no payload")
	}

	decoded, err := decodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("decode preview payload: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(decoded, &raw); err != nil {
		return nil, fmt.Errorf("parse preview config: %w", err)
	}
	return raw, nil
}

// PreviewCode derives a deterministic mock discount code from a resolved
// preview configuration. The same configuration and tier always produce the
// same code, so editor refreshes are stable.
func PreviewCode(cfg DiscountConfig, tierIndex int) string {
	data, _ := json.Marshal(struct {
		Config DiscountConfig `json:"config"`
		Tier   int            `json:"tier"`
	}{cfg, tierIndex})

	sum := sha256.Sum256(data)
	return "PREVIEW-" + strings.ToUpper(base64.RawURLEncoding.EncodeToString(sum[:])[:6])
}

func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if decoded, err := enc.DecodeString(s); err == nil {
			return decoded, nil
		}
	}
	return nil, fmt.Errorf("not valid base64")
}
