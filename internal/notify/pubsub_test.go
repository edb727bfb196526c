package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/mailproxy/internal/intake"
)

func newTestTopic(t *testing.T) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "signups")
	require.NoError(t, err)
	t.Cleanup(topic.Stop)
	return srv, topic
}

func TestPubSubPublishesEvent(t *testing.T) {
	t.Parallel()

	srv, topic := newTestTopic(t)
	n, err := NewPubSub(topic, time.Second, zap.NewNop())
	require.NoError(t, err)

	n.Notify(context.Background(), intake.NotificationEvent{Kind: intake.EventSuccess, Message: "New subscriber: ann"})

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "success", msgs[0].Attributes["kind"])
	var evt intake.NotificationEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &evt))
	require.Equal(t, "New subscriber: ann", evt.Message)
}

func TestPubSubSwallowsPublishFailure(t *testing.T) {
	t.Parallel()

	_, topic := newTestTopic(t)
	topic.Stop()

	core, logs := observer.New(zap.WarnLevel)
	n, err := NewPubSub(topic, time.Second, zap.New(core))
	require.NoError(t, err)

	n.Notify(context.Background(), intake.NotificationEvent{Kind: intake.EventError, Stage: intake.StageBackup, Message: "x"})
	require.Equal(t, 1, logs.FilterMessage("pubsub notification failed").Len())
}

func TestNewPubSubRequiresTopic(t *testing.T) {
	t.Parallel()

	_, err := NewPubSub(nil, 0, nil)
	require.Error(t, err)
}
