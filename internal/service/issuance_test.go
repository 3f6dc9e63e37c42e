package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bokzor/revenue-boost/internal/domain"
	"github.com/bokzor/revenue-boost/internal/event"
	"github.com/bokzor/revenue-boost/internal/gateway"
	apperrors "github.com/bokzor/revenue-boost/pkg/errors"
)

// --- Mocks ---

type mockCampaignRepository struct {
	mock.Mock
}

func (m *mockCampaignRepository) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Campaign), args.Error(1)
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) GetOrCreateDiscountCode(ctx context.Context, storeID, campaignID string, cfg domain.DiscountConfig, cartSubtotalCents *int64) (*gateway.ProvisionResult, error) {
	args := m.Called(ctx, storeID, campaignID, cfg, cartSubtotalCents)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ProvisionResult), args.Error(1)
}

type mockIssuanceCache struct {
	mock.Mock
}

func (m *mockIssuanceCache) Get(ctx context.Context, sessionID, campaignID string) (*domain.IssuanceRecord, error) {
	args := m.Called(ctx, sessionID, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IssuanceRecord), args.Error(1)
}

func (m *mockIssuanceCache) Put(ctx context.Context, sessionID, campaignID string, record *domain.IssuanceRecord, ttl time.Duration) error {
	args := m.Called(ctx, sessionID, campaignID, record, ttl)
	return args.Error(0)
}

type mockRateLimiter struct {
	mock.Mock
}

func (m *mockRateLimiter) Allow(ctx context.Context, identifier, operation string, limit domain.RateLimit) (bool, error) {
	args := m.Called(ctx, identifier, operation, limit)
	return args.Bool(0), args.Error(1)
}

type mockAnalytics struct {
	mock.Mock
}

func (m *mockAnalytics) PublishDiscountIssued(ctx context.Context, data event.DiscountIssuedData) {
	m.Called(ctx, data)
}

// --- In-memory fakes for multi-request property tests ---

type fakeCache struct {
	records map[string]*domain.IssuanceRecord
}

func newFakeCache() *fakeCache {
	return &fakeCache{records: make(map[string]*domain.IssuanceRecord)}
}

func (f *fakeCache) Get(_ context.Context, sessionID, campaignID string) (*domain.IssuanceRecord, error) {
	if r, ok := f.records[sessionID+":"+campaignID]; ok {
		return r, nil
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeCache) Put(_ context.Context, sessionID, campaignID string, record *domain.IssuanceRecord, _ time.Duration) error {
	key := sessionID + ":" + campaignID
	if _, ok := f.records[key]; !ok {
		f.records[key] = record
	}
	return nil
}

type fakeLimiter struct {
	counts map[string]int
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: make(map[string]int)}
}

func (f *fakeLimiter) Allow(_ context.Context, identifier, operation string, limit domain.RateLimit) (bool, error) {
	key := operation + ":" + identifier
	f.counts[key]++
	return f.counts[key] <= limit.Max, nil
}

// --- Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func activeCampaign(config map[string]any) *domain.Campaign {
	data, _ := json.Marshal(config)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Campaign{
		ID:             "camp-001",
		StoreID:        "store-001",
		Name:           "Exit Intent Spring",
		Status:         domain.CampaignStatusActive,
		DiscountConfig: data,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func enabledConfig() map[string]any {
	return map[string]any{
		"enabled":    true,
		"value":      15,
		"value_type": "percentage",
	}
}

func issuanceInput() IssueDiscountInput {
	return IssueDiscountInput{
		StoreID:    "store-001",
		CampaignID: "camp-001",
		SessionID:  "sess-001",
	}
}

func provisioned(code string) *gateway.ProvisionResult {
	return &gateway.ProvisionResult{
		Success:       true,
		DiscountCode:  code,
		IsNewDiscount: true,
	}
}

func subtotal(v int64) *int64 { return &v }

// --- Tests ---

func TestIssueDiscount_Success(t *testing.T) {
	repo := new(mockCampaignRepository)
	prov := new(mockProvisioner)
	cache := new(mockIssuanceCache)
	limiter := new(mockRateLimiter)
	analytics := new(mockAnalytics)

	repo.On("GetByID", mock.Anything, "camp-001").Return(activeCampaign(enabledConfig()), nil)
	cache.On("Get", mock.Anything, "sess-001", "camp-001").Return(nil, apperrors.ErrNotFound)
	limiter.On("Allow", mock.Anything, "sess-001", OperationDiscountIssue, mock.Anything).Return(true, nil)
	prov.On("GetOrCreateDiscountCode", mock.Anything, "store-001", "camp-001", mock.Anything, mock.Anything).
		Return(provisioned("SPRING15-X7K2"), nil)
	cache.On("Put", mock.Anything, "sess-001", "camp-001", mock.Anything, 30*time.Minute).Return(nil)
	analytics.On("PublishDiscountIssued", mock.Anything, mock.Anything).Return()

	svc := NewIssuanceService(repo, cache, limiter, prov, analytics, testLogger(), DefaultSettings())

	result, err := svc.IssueDiscount(context.Background(), issuanceInput())
	require.NoError(t, err)
	assert.Equal(t, "SPRING15-X7K2", result.Code)
	assert.Equal(t, domain.StrategyBasic, result.Strategy)
	assert.False(t, result.Cached)
	assert.False(t, result.Preview)

	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
	limiter.AssertExpectations(t)
	prov.AssertExpectations(t)
	analytics.AssertExpectations(t)
}

func TestIssueDiscount_IdempotentAcrossDuplicates(t *testing.T) {
	repo := new(mockCampaignRepository)
	prov := new(mockProvisioner)
	analytics := new(mockAnalytics)

	repo.On("GetByID", mock.Anything, "camp-001").Return(activeCampaign(enabledConfig()), nil)
	prov.On("GetOrCreateDiscountCode", mock.Anything, "store-001", "camp-001", mock.Anything, mock.Anything).
		Return(provisioned("SPRING15-X7K2"), nil).Once()
	analytics.On("PublishDiscountIssued", mock.Anything, mock.Anything).Return().Once()

	svc := NewIssuanceService(repo, newFakeCache(), newFakeLimiter(), prov, analytics, testLogger(), DefaultSettings())
	ctx := context.Background()

	first, err := svc.IssueDiscount(ctx, issuanceInput())
	require.NoError(t, err)

	second, err := svc.IssueDiscount(ctx, issuanceInput())
	require.NoError(t, err)

	assert.Equal(t, first.Code, second.Code)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)

	// One provisioning call total.
	prov.AssertExpectations(t)
}

func TestIssueDiscount_RateLimitRejectsSixthAttempt(t *testing.T) {
	repo := new(mockCampaignRepository)
	prov := new(mockProvisioner)
	analytics := new(mockAnalytics)

	repo.On("GetByID", mock.Anything, "camp-001").Return(activeCampaign(enabledConfig()), nil)
	prov.On("GetOrCreateDiscountCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(provisioned("SPRING15-X7K2"), nil)
	analytics.On("PublishDiscountIssued", mock.Anything, mock.Anything).Return()

	// Fresh cache per attempt so every request reaches the limiter.
	limiter := newFakeLimiter()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		svc := NewIssuanceService(repo, newFakeCache(), limiter, prov, analytics, testLogger(), DefaultSettings())
		_, err := svc.IssueDiscount(ctx, issuanceInput())
		require.NoError(t, err, "attempt %d should pass", i+1)
	}

	svc := NewIssuanceService(repo, newFakeCache(), limiter, prov, analytics, testLogger(), DefaultSettings())
	_, err := svc.IssueDiscount(ctx, issuanceInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
	assert.Equal(t, 429, apperrors.HTTPStatus(err))
}

func TestIssueDiscount_RateLimitBypass(t *testing.T) {
	repo := new(mockCampaignRepository)
	prov := new(mockProvisioner)
	limiter := new(mockRateLimiter)
	analytics := new(mockAnalytics)

	repo.On("GetByID", mock.Anything, "camp-001").Return(activeCampaign(enabledConfig()), nil)
	prov.On("GetOrCreateDiscountCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(provisioned("SPRING15-X7K2"), nil)
	analytics.On("PublishDiscountIssued", mock.Anything, mock.Anything).Return()

	settings := DefaultSettings()
	settings.RateLimitBypass = true
	svc := NewIssuanceService(repo, newFakeCache(), limiter, prov, analytics, testLogger(), settings)

	_, err := svc.IssueDiscount(context.Background(), issuanceInput())
	require.NoError(t, err)

	limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIssueDiscount_CampaignNotFound(t *testing.T) {
	repo := new(mockCampaignRepository)
	repo.On("GetByID", mock.Anything, "camp-001").Return(nil, apperrors.ErrNotFound)

	svc := NewIssuanceService(repo, newFakeCache(), newFakeLimiter(), new(mockProvisioner), new(mockAnalytics), testLogger(), DefaultSettings())

	_, err := svc.IssueDiscount(context.Background(), issuanceInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCampaignUnavailable)
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
}

func TestIssueDiscount_InactiveCampaign(t *testing.T) {
	c := activeCampaign(enabledConfig())
	c.Status = domain.CampaignStatusPaused

	repo := new(mockCampaignRepository)
	repo.On("GetByID", mock.Anything, "camp-001").Return(c, nil)

	svc := NewIssuanceService(repo, newFakeCache(), newFakeLimiter(), new(mockProvisioner), new(mockAnalytics), testLogger(), DefaultSettings())

	_, err := svc.IssueDiscount(context.Background(), issuanceInput())
	assert.ErrorIs(t, err, apperrors.ErrCampaignUnavailable)
}

func TestIssueDiscount_DisabledDiscount(t *testing.T) {
	repo := new(mockCampaignRepository)
	repo.On("GetByID", mock.Anything, "camp-001").Return(activeCampaign(map[string]any{
		"enabled": false,
		"value":   15,
	}), nil)

	svc := NewIssuanceService(repo, newFakeCache(), newFakeLimiter(), new(mockProvisioner), new(mockAnalytics), testLogger(), DefaultSettings())

	for _, sub := range []*int64{nil, subtotal(100000)} {
		input := issuanceInput()
		input.CartSubtotalCents = sub
		_, err := svc.IssueDiscount(context.Background(), input)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrDiscountDisabled)
		assert.Equal(t, 400, apperrors.HTTPStatus(err))
	}
}

func TestIssueDiscount_ProvisioningFailureNotCached(t *testing.T) {
	repo := new(mockCampaignRepository)
	prov := new(mockProvisioner)
	cache := newFakeCache()

	repo.On("GetByID", mock.Anything, "camp-001").Return(activeCampaign(enabledConfig()), nil)
	prov.On("GetOrCreateDiscountCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))

	svc := NewIssuanceService(repo, cache, newFakeLimiter(), prov, new(mockAnalytics), testLogger(), DefaultSettings())

	_, err := svc.IssueDiscount(context.Background(), issuanceInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrProvisioningFailed)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
	assert.Empty(t, cache.records, "failed provisioning must not be cached")
}

func TestIssueDiscount_ProvisioningRejected(t *testing.T) {
	repo := new(mockCampaignRepository)
	prov := new(mockProvisioner)

	repo.On("GetByID", mock.Anything, "camp-001").Return(activeCampaign(enabledConfig()), nil)
	prov.On("GetOrCreateDiscountCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.ProvisionResult{
			Success: false,
			Errors:  []string{"discount function not installed"},
		}, nil)

	svc := NewIssuanceService(repo, newFakeCache(), newFakeLimiter(), prov, new(mockAnalytics), testLogger(), DefaultSettings())

	_, err := svc.IssueDiscount(context.Background(), issuanceInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrProvisioningFailed)
	assert.Contains(t, err.Error(), "discount function not installed")
}

func TestIssueDiscount_CacheBackendDownDegradesToMiss(t *testing.T) {
	repo := new(mockCampaignRepository)
	prov := new(mockProvisioner)
	cache := new(mockIssuanceCache)
	analytics := new(mockAnalytics)

	repo.On("GetByID", mock.Anything, "camp-001").Return(activeCampaign(enabledConfig()), nil)
	cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
	cache.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))
	prov.On("GetOrCreateDiscountCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(provisioned("SPRING15-X7K2"), nil)
	analytics.On("PublishDiscountIssued", mock.Anything, mock.Anything).Return()

	svc := NewIssuanceService(repo, cache, newFakeLimiter(), prov, analytics, testLogger(), DefaultSettings())

	result, err := svc.IssueDiscount(context.Background(), issuanceInput())
	require.NoError(t, err)
	assert.Equal(t, "SPRING15-X7K2", result.Code)
}

func TestIssueDiscount_LimiterBackendDownAllowsRequest(t *testing.T) {
	repo := new(mockCampaignRepository)
	prov := new(mockProvisioner)
	limiter := new(mockRateLimiter)
	analytics := new(mockAnalytics)

	repo.On("GetByID", mock.Anything, "camp-001").Return(activeCampaign(enabledConfig()), nil)
	limiter.On("Allow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
	prov.On("GetOrCreateDiscountCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(provisioned("SPRING15-X7K2"), nil)
	analytics.On("PublishDiscountIssued", mock.Anything, mock.Anything).Return()

	svc := NewIssuanceService(repo, newFakeCache(), limiter, prov, analytics, testLogger(), DefaultSettings())

	_, err := svc.IssueDiscount(context.Background(), issuanceInput())
	assert.NoError(t, err)
}

func TestIssueDiscount_TierSelection(t *testing.T) {
	repo := new(mockCampaignRepository)
	prov := new(mockProvisioner)
	analytics := new(mockAnalytics)

	repo.On("GetByID", mock.Anything, "camp-001").Return(activeCampaign(map[string]any{
		"enabled": true,
		"tiers": []any{
			map[string]any{"threshold_cents": 1000, "value": 5},
			map[string]any{"threshold_cents": 5000, "value": 10},
			map[string]any{"threshold_cents": 10000, "value": 20},
		},
	}), nil)
	prov.On("GetOrCreateDiscountCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(provisioned("TIERED-ABC"), nil)

	var published event.DiscountIssuedData
	analytics.On("PublishDiscountIssued", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(1).(event.DiscountIssuedData)
		}).Return()

	svc := NewIssuanceService(repo, newFakeCache(), newFakeLimiter(), prov, analytics, testLogger(), DefaultSettings())

	input := issuanceInput()
	input.CartSubtotalCents = subtotal(5000)

	result, err := svc.IssueDiscount(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyTiered, result.Strategy)
	assert.Equal(t, "tier_1", result.TierUsed)
	assert.Equal(t, "tier_1", published.TierUsed)
}

func TestIssueDiscount_PreviewIsolation(t *testing.T) {
	// No expectations registered: any call on these mocks fails the test.
	repo := new(mockCampaignRepository)
	prov := new(mockProvisioner)
	cache := new(mockIssuanceCache)
	limiter := new(mockRateLimiter)
	analytics := new(mockAnalytics)

	svc := NewIssuanceService(repo, cache, limiter, prov, analytics, testLogger(), DefaultSettings())

	config, _ := json.Marshal(map[string]any{"enabled": true, "value": 10})
	input := issuanceInput()
	input.CampaignID = domain.PreviewIDPrefix + base64.StdEncoding.EncodeToString(config)

	ctx := context.Background()
	first, err := svc.IssueDiscount(ctx, input)
	require.NoError(t, err)
	assert.True(t, first.Preview)
	assert.Regexp(t, `^PREVIEW-`, first.Code)

	second, err := svc.IssueDiscount(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first.Code, second.Code, "preview codes are deterministic")

	cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	prov.AssertNotCalled(t, "GetOrCreateDiscountCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestIssueDiscount_PreviewInvalidToken(t *testing.T) {
	svc := NewIssuanceService(new(mockCampaignRepository), new(mockIssuanceCache), new(mockRateLimiter), new(mockProvisioner), new(mockAnalytics), testLogger(), DefaultSettings())

	input := issuanceInput()
	input.CampaignID = "preview:!!!not-base64!!!"

	_, err := svc.IssueDiscount(context.Background(), input)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestIssueDiscount_ExpiryAndUsageLimit(t *testing.T) {
	repo := new(mockCampaignRepository)
	prov := new(mockProvisioner)
	analytics := new(mockAnalytics)

	cfg := enabledConfig()
	cfg["expiry_days"] = 7
	cfg["usage_limit"] = 1
	repo.On("GetByID", mock.Anything, "camp-001").Return(activeCampaign(cfg), nil)
	prov.On("GetOrCreateDiscountCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(provisioned("SPRING15-X7K2"), nil)
	analytics.On("PublishDiscountIssued", mock.Anything, mock.Anything).Return()

	svc := NewIssuanceService(repo, newFakeCache(), newFakeLimiter(), prov, analytics, testLogger(), DefaultSettings())

	result, err := svc.IssueDiscount(context.Background(), issuanceInput())
	require.NoError(t, err)
	require.NotNil(t, result.ExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), *result.ExpiresAt, time.Minute)
	require.NotNil(t, result.UsageRemaining)
	assert.Equal(t, 1, *result.UsageRemaining)
}
