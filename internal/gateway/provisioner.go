package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bokzor/revenue-boost/internal/domain"
	"github.com/bokzor/revenue-boost/pkg/httpclient"
)

// ProvisionResult is the gateway's answer for a discount code request.
type ProvisionResult struct {
	Success       bool     `json:"success"`
	DiscountCode  string   `json:"discount_code"`
	TierUsed      string   `json:"tier_used,omitempty"`
	IsNewDiscount bool     `json:"is_new_discount"`
	Errors        []string `json:"errors,omitempty"`
}

// Provisioner creates or reuses discount codes on the commerce platform. How
// codes are generated and kept unique is the platform's concern; this is
// only the contract the issuance pipeline depends on.
type Provisioner interface {
	GetOrCreateDiscountCode(ctx context.Context, storeID, campaignID string, cfg domain.DiscountConfig, cartSubtotalCents *int64) (*ProvisionResult, error)
}

// HTTPDoer is the subset of the HTTP client the provisioner needs. Satisfied
// by httpclient.Client and httpclient.CircuitBreakerClient.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type provisionRequest struct {
	StoreID           string                `json:"store_id"`
	CampaignID        string                `json:"campaign_id"`
	Config            domain.DiscountConfig `json:"config"`
	CartSubtotalCents *int64                `json:"cart_subtotal_cents,omitempty"`
}

// HTTPProvisioner implements Provisioner against the platform-facing
// provisioning service over HTTP.
type HTTPProvisioner struct {
	client  HTTPDoer
	baseURL string
}

// NewHTTPProvisioner creates a provisioner targeting the given base URL.
func NewHTTPProvisioner(client HTTPDoer, baseURL string) *HTTPProvisioner {
	return &HTTPProvisioner{client: client, baseURL: baseURL}
}

// GetOrCreateDiscountCode asks the provisioning service for a code matching
// the resolved configuration. Non-2xx responses are translated into typed
// errors; the caller decides how to surface them.
func (p *HTTPProvisioner) GetOrCreateDiscountCode(ctx context.Context, storeID, campaignID string, cfg domain.DiscountConfig, cartSubtotalCents *int64) (*ProvisionResult, error) {
	body, err := json.Marshal(provisionRequest{
		StoreID:           storeID,
		CampaignID:        campaignID,
		Config:            cfg,
		CartSubtotalCents: cartSubtotalCents,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal provision request: %w", err)
	}

	url := p.baseURL + "/v1/discount-codes"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build provision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call provisioning service: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpclient.ParseResponseError(resp, "provisioning service")
	}
	defer func() { _ = resp.Body.Close() }()

	var result ProvisionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode provision response: %w", err)
	}

	return &result, nil
}
