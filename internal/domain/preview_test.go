package domain

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func previewToken(t *testing.T, raw map[string]any) string {
	t.Helper()
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	return PreviewIDPrefix + base64.StdEncoding.EncodeToString(data)
}

func TestIsPreviewID(t *testing.T) {
	assert.True(t, IsPreviewID("preview:eyJ9"))
	assert.False(t, IsPreviewID("8b5c2a40-1f7d-4f11-9a8e-000000000001"))
	assert.False(t, IsPreviewID(""))
}

func TestParsePreviewID(t *testing.T) {
	token := previewToken(t, map[string]any{
		"enabled": true,
		"value":   12.5,
	})

	raw, err := ParsePreviewID(token)
	require.NoError(t, err)
	assert.Equal(t, true, raw["enabled"])
	assert.Equal(t, 12.5, raw["value"])
}

func TestParsePreviewID_RawURLEncoding(t *testing.T) {
	data, err := json.Marshal(map[string]any{"enabled": true})
	require.NoError(t, err)

	token := PreviewIDPrefix + base64.RawURLEncoding.EncodeToString(data)
	raw, err := ParsePreviewID(token)
	require.NoError(t, err)
	assert.Equal(t, true, raw["enabled"])
}

func TestParsePreviewID_Invalid(t *testing.T) {
	for _, token := range []string{
		"preview:",
		"preview:!!!not-base64!!!",
		PreviewIDPrefix + base64.StdEncoding.EncodeToString([]byte("not json")),
	} {
		_, err := ParsePreviewID(token)
		assert.Error(t, err, token)
	}
}

func TestPreviewCode_Deterministic(t *testing.T) {
	cfg := NormalizeDiscountConfig(map[string]any{
		"enabled": true,
		"value":   10.0,
	})

	first := PreviewCode(cfg, NoTier)
	second := PreviewCode(cfg, NoTier)

	assert.Equal(t, first, second)
	assert.Regexp(t, `^PREVIEW-[A-Z0-9_-]{6}$`, first)
}

func TestPreviewCode_VariesWithConfig(t *testing.T) {
	a := NormalizeDiscountConfig(map[string]any{"enabled": true, "value": 10.0})
	b := NormalizeDiscountConfig(map[string]any{"enabled": true, "value": 20.0})

	assert.NotEqual(t, PreviewCode(a, NoTier), PreviewCode(b, NoTier))
	assert.NotEqual(t, PreviewCode(a, 0), PreviewCode(a, 1))
}
