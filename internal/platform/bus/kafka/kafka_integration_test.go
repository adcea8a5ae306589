//go:build integration

package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actiongate/internal/platform/bus"
	"actiongate/pkg/testutil/containers"
)

func TestKafkaBus_PublishSubscribe(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rp := containers.GetManager().GetRedpanda(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	b, err := New(Config{
		Brokers:       []string{rp.Broker},
		ConsumerGroup: "test-" + uuid.NewString(),
	}, logger)
	require.NoError(t, err)
	defer b.Close()

	topic := bus.IntegrationTopic("erp-" + uuid.NewString()[:8])
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, b.EnsureTopics(ctx, 1, 1, topic))
	require.NoError(t, b.EnsureTopics(ctx, 1, 1, topic), "existing topics are tolerated")

	received := make(chan *bus.Message, 1)
	subCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = b.Subscribe(subCtx, []string{topic}, bus.HandlerFunc(func(_ context.Context, msg *bus.Message) error {
			received <- msg
			return nil
		}))
	}()

	require.NoError(t, b.Publish(ctx, &bus.Message{
		Topic:   topic,
		Key:     []byte("action-1"),
		Value:   []byte(`{"status":"EXECUTED"}`),
		Headers: map[string]string{"event_type": "ACTION_EXECUTED"},
	}))

	select {
	case msg := <-received:
		assert.Equal(t, "action-1", string(msg.Key))
		assert.JSONEq(t, `{"status":"EXECUTED"}`, string(msg.Value))
		assert.Equal(t, "ACTION_EXECUTED", msg.Headers["event_type"])
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}
