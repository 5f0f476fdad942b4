// ABOUTME: Chat message type and terminal-state transitions for streamed replies
// ABOUTME: A message is finalized exactly once when its stream completes, fails, times out or is canceled

package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// fallbackErrorPrefix prefixes the text shown when a stream fails before any content arrived.
const fallbackErrorPrefix = "Error: "

// Message is a single chat message held in the per-conversation store.
type Message struct {
	ID             string    `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`

	// Streaming state
	IsStreaming        bool   `json:"is_streaming"`
	ThinkingContent    string `json:"thinking_content,omitempty"`
	IsThinkingExpanded bool   `json:"is_thinking_expanded"`
	Incomplete         bool   `json:"incomplete,omitempty"`
}

// NewUserMessage creates the local copy of a message the user just sent.
func NewUserMessage(conversationID int64, content string) Message {
	return Message{
		ID:             newLocalID(),
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        content,
		CreatedAt:      time.Now(),
	}
}

// NewAssistantPlaceholder creates the empty assistant message that a stream fills in.
func NewAssistantPlaceholder(conversationID int64) Message {
	return Message{
		ID:             newLocalID(),
		ConversationID: conversationID,
		Role:           RoleAssistant,
		CreatedAt:      time.Now(),
		IsStreaming:    true,
	}
}

// finalize applies the terminal transition for a stream outcome.
func (m *Message) finalize(outcome Outcome, err error) {
	switch outcome {
	case OutcomeCompleted:
		m.IsThinkingExpanded = false
	case OutcomeFailed:
		if m.Content == "" {
			msg := "stream failed"
			if err != nil {
				msg = err.Error()
			}
			m.Content = fallbackErrorPrefix + msg
		}
	case OutcomeCanceled:
		m.Incomplete = true
	case OutcomeTimedOut, OutcomeUnauthorized:
		// content is left as it is
	}
	m.IsStreaming = false
}

func newLocalID() string {
	return "local-" + uuid.New().String()
}

// Outcome is how a streaming task ended.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeCompleted
	OutcomeFailed
	OutcomeTimedOut
	OutcomeCanceled
	OutcomeUnauthorized
)

// String returns the outcome name used in logs.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeUnauthorized:
		return "unauthorized"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}
