// ABOUTME: In-memory fan-out of chat store updates to terminal views
// ABOUTME: Subscribers register per conversation id or for every conversation

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/skillchat/internal/chat"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber. A
	// streamed reply publishes one update per network read.
	subscriberBufferSize = 256

	// AllConversations is the subscription key that receives every update.
	AllConversations int64 = -1
)

// Broadcaster provides pub/sub for chat.Update values. It implements
// chat.Publisher so a chat.Store can publish into it directly.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[int64]map[string]chan chat.Update // conversationID -> subID -> ch
	closed      bool
	logger      *slog.Logger
}

var _ chat.Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[int64]map[string]chan chat.Update),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers for updates to one conversation. The subscription is
// removed and the channel closed when ctx is done.
func (b *Broadcaster) Subscribe(ctx context.Context, conversationID int64) (<-chan chat.Update, string) {
	return b.subscribe(ctx, conversationID)
}

// SubscribeAll registers for updates to every conversation.
func (b *Broadcaster) SubscribeAll(ctx context.Context) (<-chan chat.Update, string) {
	return b.subscribe(ctx, AllConversations)
}

func (b *Broadcaster) subscribe(ctx context.Context, key int64) (<-chan chat.Update, string) {
	subID := uuid.New().String()
	ch := make(chan chat.Update, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := b.subscribers[key]; !ok {
		b.subscribers[key] = make(map[string]chan chat.Update)
	}
	b.subscribers[key][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "conversation_id", key, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(key, subID)
	}()

	return ch, subID
}

// Publish delivers an update to the conversation's subscribers and to
// subscribers of every conversation. Never blocks: a subscriber whose buffer
// is full misses the update.
func (b *Broadcaster) Publish(conversationID int64, update chat.Update) {
	// Sends happen under the read lock so Unsubscribe cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, key := range []int64{conversationID, AllConversations} {
		for subID, ch := range b.subscribers[key] {
			select {
			case ch <- update:
			default:
				b.logger.Debug("dropped update for slow subscriber",
					"conversation_id", conversationID,
					"sub_id", subID,
					"kind", update.Kind)
			}
		}
	}
}

// Unsubscribe removes a subscription and closes its channel. key is the
// conversation id, or AllConversations.
func (b *Broadcaster) Unsubscribe(key int64, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[key]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, key)
	}

	b.logger.Debug("subscriber removed", "conversation_id", key, "sub_id", subID)
}

// Subscribers returns the number of subscriptions for a conversation.
func (b *Broadcaster) Subscribers(conversationID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[conversationID])
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, key)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
