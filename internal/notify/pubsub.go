package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/mailproxy/internal/intake"
	"github.com/JakeFAU/mailproxy/internal/metrics"
)

// PubSub publishes events as JSON messages to a Pub/Sub topic.
type PubSub struct {
	topic   *pubsub.Topic
	timeout time.Duration
	logger  *zap.Logger
}

// NewPubSub wraps an existing topic handle. The caller owns the client; Stop
// flushes the topic's publish buffer.
func NewPubSub(topic *pubsub.Topic, timeout time.Duration, logger *zap.Logger) (*PubSub, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PubSub{topic: topic, timeout: timeout, logger: logger}, nil
}

// Notify publishes the event and waits for the server ack within the timeout.
func (p *PubSub) Notify(ctx context.Context, evt intake.NotificationEvent) {
	id, err := p.publish(ctx, evt)
	if err != nil {
		p.logger.Warn("pubsub notification failed",
			zap.String("kind", string(evt.Kind)),
			zap.String("stage", evt.Stage),
			zap.Error(err),
		)
		metrics.ObserveNotification(string(evt.Kind), metrics.ResultFailed)
		return
	}
	p.logger.Debug("pubsub notification published", zap.String("message_id", id))
	metrics.ObserveNotification(string(evt.Kind), metrics.ResultDelivered)
}

func (p *PubSub) publish(ctx context.Context, evt intake.NotificationEvent) (string, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"kind": string(evt.Kind)},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Stop flushes pending publishes.
func (p *PubSub) Stop() {
	p.topic.Stop()
}
