package bus

import (
	"context"
	"errors"
	"sync"
)

// MemoryBus keeps one buffered channel per topic. It is used in tests and
// single process deployments.
type MemoryBus struct {
	inbound string
	size    int

	mu     sync.Mutex
	topics map[string]chan Message
	closed bool
}

// NewMemoryBus creates a bus consuming from inbound.
func NewMemoryBus(inbound string, size int) *MemoryBus {
	if size <= 0 {
		size = 64
	}
	if inbound == "" {
		inbound = TopicCommands
	}
	return &MemoryBus{inbound: inbound, size: size, topics: make(map[string]chan Message)}
}

func (b *MemoryBus) topic(name string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("memory bus closed")
	}
	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan Message, b.size)
		b.topics[name] = ch
	}
	return ch, nil
}

// Publish queues msg on topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	ch, err := b.topic(topic)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- msg:
		return nil
	}
}

// Consume reads the inbound topic until ctx is done, then waits for
// in-flight handlers.
func (b *MemoryBus) Consume(ctx context.Context, workerCount int, handler Handler) error {
	ch, err := b.topic(b.inbound)
	if err != nil {
		return err
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					_ = handler(ctx, msg)
				}
			}
		}()
	}
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Next returns the next queued message on topic, waiting until ctx is done.
func (b *MemoryBus) Next(ctx context.Context, topic string) (Message, error) {
	ch, err := b.topic(topic)
	if err != nil {
		return Message{}, err
	}
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case msg := <-ch:
		return msg, nil
	}
}

// Close stops accepting messages.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

var _ Bus = (*MemoryBus)(nil)
