package bus

import "context"

// Replier answers one inbound message on the replies topic. It satisfies
// funding.Notifier.
type Replier struct {
	pub    Publisher
	topic  string
	origin Message
}

// NewReplier returns a replier for origin. An empty topic means TopicReplies.
func NewReplier(pub Publisher, topic string, origin Message) *Replier {
	if topic == "" {
		topic = TopicReplies
	}
	return &Replier{pub: pub, topic: topic, origin: origin}
}

// Notify publishes text as a reply to the originating message.
func (r *Replier) Notify(ctx context.Context, text string) error {
	return r.pub.Publish(ctx, r.topic, r.origin.Reply(text))
}
