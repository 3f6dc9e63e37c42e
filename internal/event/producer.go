package event

import (
	"context"
	"log/slog"

	"github.com/bokzor/revenue-boost/pkg/kafka"
	"github.com/bokzor/revenue-boost/pkg/logger"
)

// Kafka topics and event types for issuance analytics.
const (
	TopicDiscountIssued = "revenue-boost.discounts.issued"

	EventTypeDiscountIssued = "discount.issued"

	aggregateTypeCampaign = "campaign"
	sourceService         = "issuance-service"
)

// DiscountIssuedData is the payload of a discount.issued event.
type DiscountIssuedData struct {
	StoreID           string `json:"store_id"`
	CampaignID        string `json:"campaign_id"`
	SessionID         string `json:"session_id"`
	Code              string `json:"code"`
	TierUsed          string `json:"tier_used,omitempty"`
	CartSubtotalCents *int64 `json:"cart_subtotal_cents,omitempty"`
}

// Publisher sends an event envelope to a topic. Satisfied by kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// Producer publishes issuance analytics events. It is strictly
// fire-and-forget: publish failures are logged and swallowed so analytics
// can never fail an issuance response.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates an analytics event producer.
func NewProducer(publisher Publisher, log *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: log}
}

// PublishDiscountIssued emits a discount.issued event for a successful
// issuance. Always returns without error.
func (p *Producer) PublishDiscountIssued(ctx context.Context, data DiscountIssuedData) {
	evt, err := kafka.NewEvent(EventTypeDiscountIssued, data.CampaignID, aggregateTypeCampaign, sourceService, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build discount issued event",
			slog.String("campaign_id", data.CampaignID),
			slog.String("error", err.Error()),
		)
		return
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.publisher.Publish(ctx, TopicDiscountIssued, evt); err != nil {
		p.logger.WarnContext(ctx, "failed to publish discount issued event",
			slog.String("campaign_id", data.CampaignID),
			slog.String("error", err.Error()),
		)
	}
}
