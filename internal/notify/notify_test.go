package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/mailproxy/internal/intake"
)

func TestLogNotifierLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	n := NewLog(zap.New(core))
	n.Notify(context.Background(), intake.NotificationEvent{Kind: intake.EventSuccess, Message: "New subscriber: ann"})
	n.Notify(context.Background(), intake.NotificationEvent{Kind: intake.EventError, Stage: intake.StageForward, Message: "boom"})

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, "forward", entries[1].ContextMap()["stage"])
}

func TestOpenSelectsDriver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	sink, err := Open(ctx, Config{Driver: "none"}, nil)
	require.NoError(t, err)
	require.IsType(t, Noop{}, sink.Notifier)
	require.NoError(t, sink.Close())

	sink, err = Open(ctx, Config{Driver: "log"}, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &Log{}, sink.Notifier)

	sink, err = Open(ctx, Config{}, nil)
	require.NoError(t, err)
	require.IsType(t, Noop{}, sink.Notifier)

	sink, err = Open(ctx, Config{Driver: "webhook", WebhookURL: "http://127.0.0.1:1/hook"}, nil)
	require.NoError(t, err)
	require.IsType(t, &Webhook{}, sink.Notifier)

	_, err = Open(ctx, Config{Driver: "pubsub"}, nil)
	require.ErrorContains(t, err, "notify.topic")

	_, err = Open(ctx, Config{Driver: "carrier-pigeon"}, nil)
	require.ErrorContains(t, err, "unknown notify driver")
}
