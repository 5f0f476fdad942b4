// ABOUTME: Tests for Broadcaster fan-out of chat updates
// ABOUTME: Covers per-conversation isolation, all-conversation subscriptions, cleanup and concurrency

package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/skillchat/internal/chat"
)

func makeUpdate(convID int64, content string) chat.Update {
	return chat.Update{
		ConversationID: convID,
		Kind:           chat.UpdateChanged,
		Message:        chat.Message{ID: "m", ConversationID: convID, Role: chat.RoleAssistant, Content: content},
	}
}

func receive(t *testing.T, ch <-chan chat.Update) chat.Update {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
		return chat.Update{}
	}
}

func assertNothing(t *testing.T, ch <-chan chat.Update) {
	t.Helper()
	select {
	case u := <-ch:
		t.Fatalf("unexpected update %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_SubscriberReceivesUpdate(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), 1)
	b.Publish(1, makeUpdate(1, "hello"))

	assert.Equal(t, "hello", receive(t, ch).Message.Content)
}

func TestBroadcaster_ConversationsAreIsolated(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context(), 1)
	ch2, _ := b.Subscribe(t.Context(), 2)

	b.Publish(1, makeUpdate(1, "for one"))

	assert.Equal(t, "for one", receive(t, ch1).Message.Content)
	assertNothing(t, ch2)
}

func TestBroadcaster_SubscribeAll(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	all, _ := b.SubscribeAll(t.Context())
	b.Publish(1, makeUpdate(1, "a"))
	b.Publish(2, makeUpdate(2, "b"))

	assert.Equal(t, int64(1), receive(t, all).ConversationID)
	assert.Equal(t, int64(2), receive(t, all).ConversationID)
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	_, _ = b.Subscribe(t.Context(), 1)
	fast, _ := b.Subscribe(t.Context(), 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range subscriberBufferSize * 2 {
			b.Publish(1, makeUpdate(1, "x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	assert.Equal(t, "x", receive(t, fast).Message.Content)
}

func TestBroadcaster_ContextCancellationCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, 1)
	assert.Equal(t, 1, b.Subscribers(1))

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after context cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
	assert.Equal(t, 0, b.Subscribers(1))
}

func TestBroadcaster_UnsubscribeThenPublish(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(t.Context(), 1)
	b.Unsubscribe(1, subID)
	b.Unsubscribe(1, subID)

	_, ok := <-ch
	assert.False(t, ok)

	// must not panic
	b.Publish(1, makeUpdate(1, "late"))
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster(nil)

	ch1, _ := b.Subscribe(t.Context(), 1)
	ch2, _ := b.SubscribeAll(t.Context())
	b.Close()

	for _, ch := range []<-chan chat.Update{ch1, ch2} {
		_, ok := <-ch
		assert.False(t, ok)
	}

	late, _ := b.Subscribe(t.Context(), 3)
	_, ok := <-late
	assert.False(t, ok)
}

func TestBroadcaster_UniqueIDs(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	_, id1 := b.Subscribe(t.Context(), 1)
	_, id2 := b.Subscribe(t.Context(), 1)
	require.NotEqual(t, id1, id2)
}

func TestBroadcaster_WiredToChatStore(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), 5)
	s := chat.NewStore(b)

	msg := chat.NewAssistantPlaceholder(5)
	s.Append(5, msg)
	s.UpdateMessage(5, msg.ID, func(m *chat.Message) { m.Content = "streamed" })

	assert.Equal(t, chat.UpdateAppended, receive(t, ch).Kind)
	u := receive(t, ch)
	assert.Equal(t, chat.UpdateChanged, u.Kind)
	assert.Equal(t, "streamed", u.Message.Content)
}

func TestBroadcaster_ConcurrentPublishSubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			ch, _ := b.Subscribe(ctx, 9)
			for range 5 {
				select {
				case <-ch:
				case <-time.After(200 * time.Millisecond):
					return
				}
			}
		})
	}
	for range 10 {
		wg.Go(func() {
			for range 10 {
				b.Publish(9, makeUpdate(9, "c"))
			}
		})
	}
	wg.Wait()
}
