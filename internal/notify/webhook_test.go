package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/mailproxy/internal/intake"
)

func TestWebhookPostsPayload(t *testing.T) {
	t.Parallel()

	got := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var p webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		got <- p
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhook(WebhookConfig{URL: srv.URL}, nil, zap.NewNop())
	n.Notify(context.Background(), intake.NotificationEvent{Kind: intake.EventSuccess, Message: "New subscriber: ann"})

	p := <-got
	require.Equal(t, "MailProxy", p.Username)
	require.Equal(t, "New subscriber: ann", p.Content)
}

func TestWebhookPrefixesErrorStage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "[backup] disk full", formatContent(intake.NotificationEvent{
		Kind: intake.EventError, Stage: intake.StageBackup, Message: "disk full",
	}))
	long := formatContent(intake.NotificationEvent{Kind: intake.EventSuccess, Message: strings.Repeat("x", 3000)})
	require.Len(t, []rune(long), maxContentRunes)
}

func TestWebhookEmptyURLIsNoop(t *testing.T) {
	t.Parallel()

	n := NewWebhook(WebhookConfig{URL: "  "}, nil, nil)
	require.IsType(t, Noop{}, n)
	n.Notify(context.Background(), intake.NotificationEvent{Kind: intake.EventSuccess})
}

func TestWebhookSwallowsFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	n := NewWebhook(WebhookConfig{URL: srv.URL}, nil, zap.New(core))
	n.Notify(context.Background(), intake.NotificationEvent{Kind: intake.EventError, Stage: intake.StageForward, Message: "boom"})

	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, 1, logs.FilterMessage("webhook notification failed").Len())
}

func TestWebhookRespectsTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	n := NewWebhook(WebhookConfig{URL: srv.URL, Timeout: 50 * time.Millisecond}, nil, nil)
	start := time.Now()
	n.Notify(context.Background(), intake.NotificationEvent{Kind: intake.EventSuccess, Message: "x"})
	require.Less(t, time.Since(start), 2*time.Second)
}
