package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/mailproxy/internal/intake"
)

// Supported notification drivers.
const (
	DriverWebhook = "webhook"
	DriverPubSub  = "pubsub"
	DriverLog     = "log"
	DriverNone    = "none"
)

// Config selects and configures a notification sink.
type Config struct {
	Driver     string
	WebhookURL string
	Username   string
	ProjectID  string
	Topic      string
	Timeout    time.Duration
}

// Sink is a Notifier that may hold resources released on shutdown.
type Sink struct {
	intake.Notifier
	closeFn func() error
}

// Close releases the sink's resources.
func (s *Sink) Close() error {
	if s == nil || s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// Open builds the sink named by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverWebhook:
		n := NewWebhook(WebhookConfig{URL: cfg.WebhookURL, Username: cfg.Username, Timeout: cfg.Timeout}, &http.Client{}, logger)
		if _, ok := n.(Noop); ok {
			logger.Info("webhook url not set; notifications disabled")
		}
		return &Sink{Notifier: n}, nil
	case DriverPubSub:
		if cfg.ProjectID == "" || cfg.Topic == "" {
			return nil, fmt.Errorf("notify driver is %q but notify.project_id or notify.topic is not set", DriverPubSub)
		}
		client, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		topic := client.Topic(cfg.Topic)
		ok, err := topic.Exists(ctx)
		if err == nil && !ok {
			err = fmt.Errorf("topic %q does not exist in project %q", cfg.Topic, cfg.ProjectID)
		}
		if err != nil {
			if cerr := client.Close(); cerr != nil {
				logger.Warn("close pubsub client", zap.Error(cerr))
			}
			return nil, fmt.Errorf("check pubsub topic: %w", err)
		}
		ps, err := NewPubSub(topic, cfg.Timeout, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		logger.Info("publishing notifications to pubsub", zap.String("topic", cfg.Topic))
		return &Sink{Notifier: ps, closeFn: func() error {
			ps.Stop()
			return client.Close()
		}}, nil
	case DriverLog:
		return &Sink{Notifier: NewLog(logger)}, nil
	case DriverNone:
		return &Sink{Notifier: Noop{}}, nil
	default:
		return nil, fmt.Errorf("unknown notify driver: %s", cfg.Driver)
	}
}
