package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/mailproxy/internal/intake"
	"github.com/JakeFAU/mailproxy/internal/metrics"
)

const (
	defaultUsername = "MailProxy"
	defaultTimeout  = 5 * time.Second
	maxContentRunes = 2000
)

// WebhookConfig configures a Discord-style webhook sink.
type WebhookConfig struct {
	URL      string
	Username string
	Timeout  time.Duration
}

// Webhook posts {username, content} to a fixed URL.
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
	logger *zap.Logger
}

type webhookPayload struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// NewWebhook builds a Webhook sink. An empty URL yields Noop: an unconfigured
// channel silently disables notifications.
func NewWebhook(cfg WebhookConfig, client *http.Client, logger *zap.Logger) intake.Notifier {
	if strings.TrimSpace(cfg.URL) == "" {
		return Noop{}
	}
	if cfg.Username == "" {
		cfg.Username = defaultUsername
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{cfg: cfg, client: client, logger: logger}
}

// Notify sends the event once. Failures are logged and counted only.
func (w *Webhook) Notify(ctx context.Context, evt intake.NotificationEvent) {
	if err := w.send(ctx, evt); err != nil {
		w.logger.Warn("webhook notification failed",
			zap.String("kind", string(evt.Kind)),
			zap.String("stage", evt.Stage),
			zap.Error(err),
		)
		metrics.ObserveNotification(string(evt.Kind), metrics.ResultFailed)
		return
	}
	metrics.ObserveNotification(string(evt.Kind), metrics.ResultDelivered)
}

func (w *Webhook) send(ctx context.Context, evt intake.NotificationEvent) error {
	body, err := json.Marshal(webhookPayload{Username: w.cfg.Username, Content: formatContent(evt)})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// formatContent renders the chat message. Discord caps content at 2000 chars.
func formatContent(evt intake.NotificationEvent) string {
	msg := evt.Message
	if evt.Kind == intake.EventError && evt.Stage != "" {
		msg = fmt.Sprintf("[%s] %s", evt.Stage, msg)
	}
	if runes := []rune(msg); len(runes) > maxContentRunes {
		msg = string(runes[:maxContentRunes-1]) + "…"
	}
	return msg
}
