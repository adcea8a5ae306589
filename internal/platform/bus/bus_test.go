package bus

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Handle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("dispatches by topic", func(t *testing.T) {
		var got []string
		r := NewRouter(logger, nil)
		r.Register(TopicPolicyChanged, HandlerFunc(func(_ context.Context, msg *Message) error {
			got = append(got, string(msg.Key))
			return nil
		}))

		require.NoError(t, r.Handle(context.Background(), &Message{Topic: TopicPolicyChanged, Key: []byte("t1")}))
		assert.Equal(t, []string{"t1"}, got)
		assert.ElementsMatch(t, []string{TopicPolicyChanged}, r.Topics())
	})

	t.Run("unknown topic without fallback is skipped", func(t *testing.T) {
		r := NewRouter(logger, nil)
		assert.NoError(t, r.Handle(context.Background(), &Message{Topic: "unknown"}))
	})

	t.Run("unknown topic goes to fallback", func(t *testing.T) {
		called := false
		r := NewRouter(logger, HandlerFunc(func(context.Context, *Message) error {
			called = true
			return nil
		}))
		require.NoError(t, r.Handle(context.Background(), &Message{Topic: "unknown"}))
		assert.True(t, called)
	})
}

func TestIntegrationTopic(t *testing.T) {
	assert.Equal(t, "integration.ERP", IntegrationTopic("ERP"))
}
