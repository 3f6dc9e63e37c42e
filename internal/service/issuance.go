package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bokzor/revenue-boost/internal/domain"
	"github.com/bokzor/revenue-boost/internal/event"
	"github.com/bokzor/revenue-boost/internal/gateway"
	"github.com/bokzor/revenue-boost/internal/repository"
	apperrors "github.com/bokzor/revenue-boost/pkg/errors"
)

// OperationDiscountIssue is the rate limiter bucket for issuance attempts.
const OperationDiscountIssue = "discount_issue"

// AnalyticsPublisher receives fire-and-forget issuance events.
type AnalyticsPublisher interface {
	PublishDiscountIssued(ctx context.Context, data event.DiscountIssuedData)
}

// Settings tunes the issuance pipeline.
type Settings struct {
	// IdempotencyTTL is how long an issued code is replayed for the same
	// (session, campaign) pair.
	IdempotencyTTL time.Duration

	// RateLimit bounds issuance attempts per session identifier.
	RateLimit domain.RateLimit

	// RateLimitBypass disables the rate limiter. Operator-controlled, for
	// non-production environments only.
	RateLimitBypass bool
}

// DefaultSettings returns the production pipeline settings.
func DefaultSettings() Settings {
	return Settings{
		IdempotencyTTL: 30 * time.Minute,
		RateLimit:      domain.RateLimit{Max: 5, Window: time.Hour},
	}
}

// IssueDiscountInput carries one issuance request through the pipeline. It is
// built from the inbound call and discarded with the response.
type IssueDiscountInput struct {
	StoreID            string
	CampaignID         string
	SessionID          string
	CartSubtotalCents  *int64
	SelectedProductIDs []string
	CartProductIDs     []string
}

// IssueDiscountResult is the externally visible outcome of an issuance.
type IssueDiscountResult struct {
	Code           string
	Strategy       domain.Strategy
	TierUsed       string
	ExpiresAt      *time.Time
	UsageRemaining *int
	Applicability  domain.Applicability
	Behavior       domain.Behavior
	Cached         bool
	Preview        bool
}

// IssuanceService orchestrates discount issuance: validation, idempotency,
// rate limiting, config resolution, provisioning, recording, and the
// analytics event. One call per inbound request; all state lives in the
// injected stores.
type IssuanceService struct {
	campaigns   repository.CampaignRepository
	cache       repository.IssuanceCache
	limiter     repository.RateLimiter
	provisioner gateway.Provisioner
	analytics   AnalyticsPublisher
	logger      *slog.Logger
	settings    Settings
}

// NewIssuanceService creates the issuance orchestrator.
func NewIssuanceService(
	campaigns repository.CampaignRepository,
	cache repository.IssuanceCache,
	limiter repository.RateLimiter,
	provisioner gateway.Provisioner,
	analytics AnalyticsPublisher,
	logger *slog.Logger,
	settings Settings,
) *IssuanceService {
	return &IssuanceService{
		campaigns:   campaigns,
		cache:       cache,
		limiter:     limiter,
		provisioner: provisioner,
		analytics:   analytics,
		logger:      logger,
		settings:    settings,
	}
}

// IssueDiscount runs the issuance pipeline for one request.
//
// Preview identifiers take a separate path that touches neither the cache,
// the limiter, nor the provisioning gateway, so a preview can never fail
// because one of those is down.
func (s *IssuanceService) IssueDiscount(ctx context.Context, input IssueDiscountInput) (*IssueDiscountResult, error) {
	if domain.IsPreviewID(input.CampaignID) {
		return s.issuePreview(ctx, input)
	}

	// Validating
	campaign, err := s.campaigns.GetByID(ctx, input.CampaignID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			recordOutcome(outcomeNotFound)
			return nil, apperrors.CampaignUnavailable(input.CampaignID)
		}
		recordOutcome(outcomeError)
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if !campaign.IsActive() {
		recordOutcome(outcomeNotFound)
		return nil, apperrors.CampaignUnavailable(input.CampaignID)
	}

	cfg := domain.NormalizeDiscountConfig(campaign.RawConfig())
	if !cfg.Enabled {
		recordOutcome(outcomeDisabled)
		return nil, apperrors.DiscountDisabled(input.CampaignID)
	}

	// IdempotencyCheck. A broken cache degrades to a miss: a duplicate
	// code beats a failed request.
	if record, err := s.cache.Get(ctx, input.SessionID, input.CampaignID); err == nil {
		recordOutcome(outcomeCached)
		s.logger.InfoContext(ctx, "issuance replayed from cache",
			slog.String("campaign_id", input.CampaignID),
		)
		return s.buildResult(cfg, record.Code, "", true, false), nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		s.logger.WarnContext(ctx, "idempotency cache unavailable, treating as miss",
			slog.String("campaign_id", input.CampaignID),
			slog.String("error", err.Error()),
		)
	}

	// RateLimitCheck. Same degradation stance as the cache.
	if !s.settings.RateLimitBypass {
		allowed, err := s.limiter.Allow(ctx, input.SessionID, OperationDiscountIssue, s.settings.RateLimit)
		if err != nil {
			s.logger.WarnContext(ctx, "rate limiter unavailable, allowing request",
				slog.String("campaign_id", input.CampaignID),
				slog.String("error", err.Error()),
			)
		} else if !allowed {
			recordOutcome(outcomeRateLimited)
			return nil, apperrors.RateLimited("")
		}
	}

	// Resolving
	resolved := domain.ApplyScopeOverrides(cfg, input.SelectedProductIDs, input.CartProductIDs)
	tierIdx := domain.SelectTier(resolved.Tiers, input.CartSubtotalCents)

	// Provisioning
	provisionStart := time.Now()
	result, err := s.provisioner.GetOrCreateDiscountCode(ctx, campaign.StoreID, campaign.ID, resolved, input.CartSubtotalCents)
	observeProvisioning(time.Since(provisionStart).Seconds())
	if err != nil {
		recordOutcome(outcomeProvisioningFailed)
		s.logger.ErrorContext(ctx, "provisioning call failed",
			slog.String("campaign_id", input.CampaignID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.ProvisioningFailed("")
	}
	if !result.Success || result.DiscountCode == "" {
		recordOutcome(outcomeProvisioningFailed)
		msg := ""
		if len(result.Errors) > 0 {
			msg = result.Errors[0]
		}
		s.logger.ErrorContext(ctx, "provisioning rejected request",
			slog.String("campaign_id", input.CampaignID),
			slog.String("reason", msg),
		)
		return nil, apperrors.ProvisioningFailed(msg)
	}

	// Recording. Only successful provisioning is cached; a failed attempt
	// must stay retryable.
	record := &domain.IssuanceRecord{
		CampaignID: campaign.ID,
		Code:       result.DiscountCode,
		IssuedAt:   time.Now().UTC(),
	}
	if err := s.cache.Put(ctx, input.SessionID, input.CampaignID, record, s.settings.IdempotencyTTL); err != nil {
		s.logger.WarnContext(ctx, "failed to record issuance in cache",
			slog.String("campaign_id", input.CampaignID),
			slog.String("error", err.Error()),
		)
	}

	tierUsed := tierLabel(result.TierUsed, tierIdx)
	s.analytics.PublishDiscountIssued(ctx, event.DiscountIssuedData{
		StoreID:           campaign.StoreID,
		CampaignID:        campaign.ID,
		SessionID:         input.SessionID,
		Code:              result.DiscountCode,
		TierUsed:          tierUsed,
		CartSubtotalCents: input.CartSubtotalCents,
	})

	recordOutcome(outcomeIssued)
	s.logger.InfoContext(ctx, "discount issued",
		slog.String("campaign_id", campaign.ID),
		slog.String("strategy", string(resolved.Strategy)),
		slog.String("tier_used", tierUsed),
		slog.Bool("new_discount", result.IsNewDiscount),
	)

	return s.buildResult(resolved, result.DiscountCode, tierUsed, false, false), nil
}

// CampaignDiscount returns the normalized discount configuration of an
// active campaign, for the storefront widget to render before any code is
// issued.
func (s *IssuanceService) CampaignDiscount(ctx context.Context, campaignID string) (*domain.DiscountConfig, error) {
	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.CampaignUnavailable(campaignID)
		}
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if !campaign.IsActive() {
		return nil, apperrors.CampaignUnavailable(campaignID)
	}

	cfg := domain.NormalizeDiscountConfig(campaign.RawConfig())
	return &cfg, nil
}

// issuePreview resolves an inline preview configuration and derives a
// deterministic mock code.
func (s *IssuanceService) issuePreview(ctx context.Context, input IssueDiscountInput) (*IssueDiscountResult, error) {
	raw, err := domain.ParsePreviewID(input.CampaignID)
	if err != nil {
		recordOutcome(outcomeError)
		return nil, apperrors.InvalidInput("invalid preview token")
	}

	cfg := domain.NormalizeDiscountConfig(raw)
	resolved := domain.ApplyScopeOverrides(cfg, input.SelectedProductIDs, input.CartProductIDs)
	tierIdx := domain.SelectTier(resolved.Tiers, input.CartSubtotalCents)

	code := domain.PreviewCode(resolved, tierIdx)

	recordOutcome(outcomePreview)
	s.logger.InfoContext(ctx, "preview code derived",
		slog.String("strategy", string(resolved.Strategy)),
	)

	return s.buildResult(resolved, code, tierLabel("", tierIdx), false, true), nil
}

func (s *IssuanceService) buildResult(cfg domain.DiscountConfig, code, tierUsed string, cached, preview bool) *IssueDiscountResult {
	r := &IssueDiscountResult{
		Code:          code,
		Strategy:      cfg.Strategy,
		TierUsed:      tierUsed,
		Applicability: cfg.Applicability,
		Behavior:      cfg.Behavior,
		Cached:        cached,
		Preview:       preview,
	}
	if cfg.ExpiryDays != nil {
		expires := time.Now().UTC().Add(time.Duration(*cfg.ExpiryDays) * 24 * time.Hour)
		r.ExpiresAt = &expires
	}
	if cfg.UsageLimit != nil {
		remaining := *cfg.UsageLimit
		r.UsageRemaining = &remaining
	}
	return r
}

// tierLabel prefers the gateway's reported tier, falling back to the locally
// selected index.
func tierLabel(fromGateway string, tierIdx int) string {
	if fromGateway != "" {
		return fromGateway
	}
	if tierIdx == domain.NoTier {
		return ""
	}
	return fmt.Sprintf("tier_%d", tierIdx)
}
