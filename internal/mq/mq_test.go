package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekyc/apiserver/config"
	"github.com/dekyc/apiserver/types"
)

func TestOpen_Disabled(t *testing.T) {
	m, err := Open(context.Background(), config.MQConfig{Backend: config.MQNone})
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	// The memory backend is in-process only and cannot be selected by config.
	_, err = Open(context.Background(), config.MQConfig{Backend: "memory"})
	assert.Error(t, err)
}

func TestMemoryBackend_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m := New(NewMemoryBackend(4))
	t.Cleanup(func() { _ = m.Close() })

	want := StatusChanged{
		UserID:    "U-1001",
		Name:      "Aditi Sharma",
		Email:     "aditi@example.com",
		Previous:  types.StatusPending,
		Status:    types.StatusApproved,
		ChangedAt: time.Date(2025, 8, 3, 10, 0, 0, 0, time.UTC),
	}
	id, err := m.PublishJSON(ctx, ChannelStatusChanged, want)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got := make(chan StatusChanged, 1)
	subCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- m.Subscribe(subCtx, ChannelStatusChanged, func(_ context.Context, msg Message) error {
			assert.Equal(t, "application/json", msg.Attributes[AttrContentType])
			assert.Equal(t, "U-1001", msg.Attributes[AttrOrderingKey])
			ev, err := Decode[StatusChanged](msg)
			if err != nil {
				return err
			}
			got <- ev
			return nil
		})
	}()

	select {
	case ev := <-got:
		assert.Equal(t, want, ev)
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
	stop()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMemoryBackend_RequeuesOnError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b := NewMemoryBackend(4)
	_, err := b.Publish(ctx, ChannelDocumentUploaded, []byte(`{}`), nil)
	require.NoError(t, err)

	attempts := 0
	delivered := make(chan struct{})
	subCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = b.Subscribe(subCtx, ChannelDocumentUploaded, func(context.Context, Message) error {
			attempts++
			if attempts < 3 {
				return errors.New("try again")
			}
			close(delivered)
			return nil
		})
	}()

	select {
	case <-delivered:
		assert.Equal(t, 3, attempts)
	case <-ctx.Done():
		t.Fatal("message was not redelivered")
	}
}

func TestMemoryBackend_Closed(t *testing.T) {
	b := NewMemoryBackend(1)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.Publish(context.Background(), ChannelStatusChanged, nil, nil)
	assert.Error(t, err)
	assert.Error(t, b.Subscribe(context.Background(), ChannelStatusChanged, nil))
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode[DocumentUploaded](Message{ID: "m1", Data: []byte("not json")})
	assert.ErrorContains(t, err, "m1")
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))
	attrs := headersToAttributes(amqp.Table{
		"user_id": "U-1001",
		"raw":     []byte("abc"),
		"count":   int32(3),
	})
	assert.Equal(t, map[string]string{"user_id": "U-1001", "raw": "abc", "count": "3"}, attrs)
}

func TestPubSubMessage_OrderingKey(t *testing.T) {
	attrs := map[string]string{AttrContentType: "application/json", AttrOrderingKey: "U-1004"}

	msg := toPubSubMessage([]byte(`{}`), attrs, true)
	assert.Equal(t, "U-1004", msg.OrderingKey)
	assert.Equal(t, map[string]string{AttrContentType: "application/json"}, msg.Attributes)
	assert.Equal(t, "U-1004", attrs[AttrOrderingKey], "caller attributes must not change")

	unordered := toPubSubMessage([]byte(`{}`), attrs, false)
	assert.Empty(t, unordered.OrderingKey)
	assert.Equal(t, attrs, unordered.Attributes)

	assert.Nil(t, toPubSubMessage([]byte(`{}`), nil, true).Attributes)
}

func TestFromPubSubMessage(t *testing.T) {
	got := fromPubSubMessage(&pubsub.Message{
		ID:          "42",
		Data:        []byte(`{"user_id":"U-1004"}`),
		Attributes:  map[string]string{AttrContentType: "application/json"},
		OrderingKey: "U-1004",
	})
	assert.Equal(t, "42", got.ID)
	assert.Equal(t, "U-1004", got.Attributes[AttrOrderingKey])
	assert.Equal(t, "application/json", got.Attributes[AttrContentType])

	ev, err := Decode[StatusChanged](got)
	require.NoError(t, err)
	assert.Equal(t, "U-1004", ev.UserID)

	bare := fromPubSubMessage(&pubsub.Message{ID: "43"})
	assert.Nil(t, bare.Attributes)
}

func TestPublishJSON_UnkeyedEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b := NewMemoryBackend(1)
	m := New(b)
	t.Cleanup(func() { _ = m.Close() })

	_, err := m.PublishJSON(ctx, "audit", map[string]string{"k": "v"})
	require.NoError(t, err)

	subCtx, stop := context.WithCancel(ctx)
	defer stop()
	got := make(chan Message, 1)
	go func() {
		_ = m.Subscribe(subCtx, "audit", func(_ context.Context, msg Message) error {
			got <- msg
			return nil
		})
	}()
	select {
	case msg := <-got:
		_, ok := msg.Attributes[AttrOrderingKey]
		assert.False(t, ok)
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}
