// ABOUTME: Per-conversation message store keyed by conversation id
// ABOUTME: Every mutation is a single locked read-modify-replace followed by an Update publish

package chat

import (
	"sync"
)

// UpdateKind says what changed in a conversation's message list.
type UpdateKind string

const (
	UpdateAppended UpdateKind = "appended"
	UpdateChanged  UpdateKind = "changed"
	UpdateReplaced UpdateKind = "replaced"
	UpdateCleared  UpdateKind = "cleared"
)

// Update describes a change to one conversation. Message is set for
// appended and changed updates.
type Update struct {
	ConversationID int64
	Kind           UpdateKind
	Message        Message
}

// Publisher receives store updates. conversation.Broadcaster implements it.
type Publisher interface {
	Publish(conversationID int64, update Update)
}

// Store holds message lists and status flags partitioned by conversation id.
// Callers always receive copies; the only way to change a message is through
// the Store's methods.
type Store struct {
	mu       sync.RWMutex
	messages map[int64][]Message
	loading  map[int64]bool
	sending  map[int64]bool
	pub      Publisher
}

// NewStore creates an empty store. pub may be nil.
func NewStore(pub Publisher) *Store {
	return &Store{
		messages: make(map[int64][]Message),
		loading:  make(map[int64]bool),
		sending:  make(map[int64]bool),
		pub:      pub,
	}
}

// Messages returns a copy of the conversation's messages in order.
func (s *Store) Messages(conversationID int64) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Message returns a copy of a single message.
func (s *Store) Message(conversationID int64, messageID string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages[conversationID] {
		if m.ID == messageID {
			return m, true
		}
	}
	return Message{}, false
}

// Streaming returns the assistant message currently streaming in the conversation.
func (s *Store) Streaming(conversationID int64) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages[conversationID] {
		if m.IsStreaming {
			return m, true
		}
	}
	return Message{}, false
}

// SetMessages replaces the conversation's message list.
func (s *Store) SetMessages(conversationID int64, msgs []Message) {
	replaced := make([]Message, len(msgs))
	copy(replaced, msgs)

	s.mu.Lock()
	s.messages[conversationID] = replaced
	s.mu.Unlock()

	s.publish(Update{ConversationID: conversationID, Kind: UpdateReplaced})
}

// Append adds messages to the end of the conversation.
func (s *Store) Append(conversationID int64, msgs ...Message) {
	s.mu.Lock()
	s.messages[conversationID] = append(s.messages[conversationID], msgs...)
	s.mu.Unlock()

	for _, m := range msgs {
		s.publish(Update{ConversationID: conversationID, Kind: UpdateAppended, Message: m})
	}
}

// UpdateMessage applies fn to a copy of the message and stores the result in
// place. Returns the updated message and false if it no longer exists.
func (s *Store) UpdateMessage(conversationID int64, messageID string, fn func(*Message)) (Message, bool) {
	s.mu.Lock()
	msgs := s.messages[conversationID]
	idx := -1
	for i := range msgs {
		if msgs[i].ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return Message{}, false
	}

	updated := msgs[idx]
	fn(&updated)
	msgs[idx] = updated
	s.mu.Unlock()

	s.publish(Update{ConversationID: conversationID, Kind: UpdateChanged, Message: updated})
	return updated, true
}

// Truncate keeps the first n messages of the conversation.
func (s *Store) Truncate(conversationID int64, n int) {
	s.mu.Lock()
	msgs := s.messages[conversationID]
	if n < 0 {
		n = 0
	}
	if n >= len(msgs) {
		s.mu.Unlock()
		return
	}
	kept := make([]Message, n)
	copy(kept, msgs[:n])
	s.messages[conversationID] = kept
	s.mu.Unlock()

	s.publish(Update{ConversationID: conversationID, Kind: UpdateReplaced})
}

// Delete clears a conversation's messages and flags.
func (s *Store) Delete(conversationID int64) {
	s.mu.Lock()
	delete(s.messages, conversationID)
	delete(s.loading, conversationID)
	delete(s.sending, conversationID)
	s.mu.Unlock()

	s.publish(Update{ConversationID: conversationID, Kind: UpdateCleared})
}

// SetLoading marks a history fetch in progress.
func (s *Store) SetLoading(conversationID int64, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loading {
		s.loading[conversationID] = true
	} else {
		delete(s.loading, conversationID)
	}
}

// Loading reports whether a history fetch is in progress.
func (s *Store) Loading(conversationID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[conversationID]
}

// SetSending marks a send in progress.
func (s *Store) SetSending(conversationID int64, sending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sending {
		s.sending[conversationID] = true
	} else {
		delete(s.sending, conversationID)
	}
}

// Sending reports whether a send is in progress.
func (s *Store) Sending(conversationID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sending[conversationID]
}

func (s *Store) publish(u Update) {
	if s.pub != nil {
		s.pub.Publish(u.ConversationID, u)
	}
}
