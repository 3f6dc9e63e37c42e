package event

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bokzor/revenue-boost/pkg/kafka"
)

type capturingPublisher struct {
	topic string
	event *kafka.Event
	err   error
}

func (c *capturingPublisher) Publish(_ context.Context, topic string, event *kafka.Event) error {
	c.topic = topic
	c.event = event
	return c.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestProducer_PublishDiscountIssued(t *testing.T) {
	pub := &capturingPublisher{}
	p := NewProducer(pub, discardLogger())

	subtotal := int64(5000)
	p.PublishDiscountIssued(context.Background(), DiscountIssuedData{
		StoreID:           "store-1",
		CampaignID:        "camp-1",
		SessionID:         "sess-1",
		Code:              "SPRING15-X7K2",
		TierUsed:          "tier_1",
		CartSubtotalCents: &subtotal,
	})

	require.NotNil(t, pub.event)
	assert.Equal(t, TopicDiscountIssued, pub.topic)
	assert.Equal(t, EventTypeDiscountIssued, pub.event.EventType)
	assert.Equal(t, "camp-1", pub.event.AggregateID)

	var data DiscountIssuedData
	require.NoError(t, pub.event.UnmarshalData(&data))
	assert.Equal(t, "SPRING15-X7K2", data.Code)
	assert.Equal(t, "sess-1", data.SessionID)
}

func TestProducer_PublishFailureIsSwallowed(t *testing.T) {
	pub := &capturingPublisher{err: errors.New("broker unreachable")}
	p := NewProducer(pub, discardLogger())

	assert.NotPanics(t, func() {
		p.PublishDiscountIssued(context.Background(), DiscountIssuedData{
			StoreID:    "store-1",
			CampaignID: "camp-1",
			SessionID:  "sess-1",
			Code:       "X",
		})
	})
}
