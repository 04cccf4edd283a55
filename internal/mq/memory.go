package mq

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var errMemoryClosed = errors.New("memory mq closed")

// MemoryBackend is an in-process broker. Each channel is a buffered queue;
// concurrent subscribers on the same channel compete for messages. Failed
// messages are requeued like a RabbitMQ nack.
type MemoryBackend struct {
	mu     sync.Mutex
	queues map[string]chan Message
	closed chan struct{}
	once   sync.Once
	size   int
}

func NewMemoryBackend(size int) *MemoryBackend {
	if size <= 0 {
		size = 64
	}
	return &MemoryBackend{
		queues: make(map[string]chan Message),
		closed: make(chan struct{}),
		size:   size,
	}
}

func (b *MemoryBackend) queue(channel string) chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan Message, b.size)
		b.queues[channel] = q
	}
	return q
}

func (b *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}
	select {
	case <-b.closed:
		return "", errMemoryClosed
	default:
	}
	msg := Message{
		ID:         uuid.NewString(),
		Data:       append([]byte(nil), data...),
		Attributes: maps.Clone(attrs),
	}
	select {
	case <-b.closed:
		return "", errMemoryClosed
	case <-ctx.Done():
		return "", ctx.Err()
	case b.queue(channel) <- msg:
		return msg.ID, nil
	}
}

func (b *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}
	q := b.queue(channel)
	for {
		select {
		case <-b.closed:
			return errMemoryClosed
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				select {
				case q <- msg:
				default:
				}
			}
		}
	}
}

func (b *MemoryBackend) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}
