package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bokzor/revenue-boost/internal/domain"
	apperrors "github.com/bokzor/revenue-boost/pkg/errors"
	"github.com/bokzor/revenue-boost/pkg/httpclient"
)

func noRetryClient() *httpclient.Client {
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cfg.Timeout = 3 * time.Second
	return httpclient.New(cfg)
}

func resolvedConfig() domain.DiscountConfig {
	return domain.NormalizeDiscountConfig(map[string]any{
		"enabled":    true,
		"value":      15.0,
		"value_type": "percentage",
	})
}

func TestHTTPProvisioner_Success(t *testing.T) {
	var captured provisionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/discount-codes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ProvisionResult{
			Success:       true,
			DiscountCode:  "SPRING15-X7K2",
			TierUsed:      "tier_1",
			IsNewDiscount: true,
		})
	}))
	defer srv.Close()

	p := NewHTTPProvisioner(noRetryClient(), srv.URL)
	subtotal := int64(5000)

	result, err := p.GetOrCreateDiscountCode(context.Background(), "store-1", "camp-1", resolvedConfig(), &subtotal)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "SPRING15-X7K2", result.DiscountCode)
	assert.Equal(t, "tier_1", result.TierUsed)

	assert.Equal(t, "store-1", captured.StoreID)
	assert.Equal(t, "camp-1", captured.CampaignID)
	require.NotNil(t, captured.CartSubtotalCents)
	assert.Equal(t, int64(5000), *captured.CartSubtotalCents)
}

func TestHTTPProvisioner_DownstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "discount function not installed"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvisioner(noRetryClient(), srv.URL)

	_, err := p.GetOrCreateDiscountCode(context.Background(), "store-1", "camp-1", resolvedConfig(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "discount function not installed")
}

func TestHTTPProvisioner_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	p := NewHTTPProvisioner(noRetryClient(), srv.URL)

	_, err := p.GetOrCreateDiscountCode(context.Background(), "store-1", "camp-1", resolvedConfig(), nil)
	assert.Error(t, err)
}

func TestHTTPProvisioner_ConnectionRefused(t *testing.T) {
	p := NewHTTPProvisioner(noRetryClient(), "http://127.0.0.1:1")

	_, err := p.GetOrCreateDiscountCode(context.Background(), "store-1", "camp-1", resolvedConfig(), nil)
	assert.Error(t, err)
}
