package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	msg := NewMessage(TypeMsg, "/activate_stellar_account S 10 XLM")
	msg.Headers = map[string]string{"chat": "42"}

	payload, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(payload)
	require.NoError(t, err)
	require.Equal(t, msg.ID, got.ID)
	require.Equal(t, msg.Msg, got.Msg)
	require.Equal(t, "42", got.Headers["chat"])

	_, err = Decode([]byte("{not json"))
	require.Error(t, err)
}

func TestEncodeFillsIdentity(t *testing.T) {
	payload, err := Encode(Message{Type: TypeMsg, Msg: "hi"})
	require.NoError(t, err)
	got, err := Decode(payload)
	require.NoError(t, err)
	require.NotEmpty(t, got.ID)
	require.False(t, got.CreatedAt.IsZero())
}

func TestReplyCopiesHeaders(t *testing.T) {
	orig := NewMessage(TypeMsg, "hello")
	orig.Headers = map[string]string{"chat": "7"}

	reply := orig.Reply("world")
	require.Equal(t, TypeReply, reply.Type)
	require.Equal(t, orig.ID, reply.ReplyTo)
	require.Equal(t, "world", reply.Msg)
	require.NotEqual(t, orig.ID, reply.ID)

	reply.Headers["chat"] = "changed"
	require.Equal(t, "7", orig.Headers["chat"])
}

func TestMemoryBusDeliversInbound(t *testing.T) {
	b := NewMemoryBus(TopicCommands, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []string
	)
	done := make(chan error, 1)
	go func() {
		done <- b.Consume(ctx, 2, func(_ context.Context, msg Message) error {
			mu.Lock()
			seen = append(seen, msg.Msg)
			mu.Unlock()
			return nil
		})
	}()

	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, b.Publish(ctx, TopicCommands, NewMessage(TypeMsg, text)))
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consume did not stop")
	}
}

func TestMemoryBusNextAndClose(t *testing.T) {
	b := NewMemoryBus("", 0)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, TopicReplies, NewMessage(TypeReply, "ok")))
	msg, err := b.Next(ctx, TopicReplies)
	require.NoError(t, err)
	require.Equal(t, "ok", msg.Msg)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = b.Next(short, TopicReplies)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, b.Close())
	require.Error(t, b.Publish(ctx, TopicReplies, NewMessage(TypeReply, "late")))
}

func TestReplierPublishesReply(t *testing.T) {
	b := NewMemoryBus(TopicCommands, 4)
	ctx := context.Background()
	orig := NewMessage(TypeMsg, "/activate_stellar_account S 10 XLM")

	r := NewReplier(b, "", orig)
	require.NoError(t, r.Notify(ctx, "Please wait..."))

	got, err := b.Next(ctx, TopicReplies)
	require.NoError(t, err)
	require.Equal(t, "Please wait...", got.Msg)
	require.Equal(t, orig.ID, got.ReplyTo)
	require.Equal(t, TypeReply, got.Type)
}

func TestRedisBusDefaults(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	b := newRedisBus(client, RedisConfig{KeyPrefix: "transferd:"})
	defer b.Close()

	require.Equal(t, TopicCommands, b.inbound)
	require.Equal(t, 5*time.Second, b.wait)
	require.Equal(t, "transferd:"+TopicReplies, b.key(TopicReplies))
}

func TestTransportsRequireAddress(t *testing.T) {
	_, err := NewRedisBus(context.Background(), RedisConfig{})
	require.Error(t, err)
	_, err = NewRabbitMQBus(RabbitMQConfig{})
	require.Error(t, err)
	_, err = NewNATSBus(NATSConfig{})
	require.Error(t, err)
}
