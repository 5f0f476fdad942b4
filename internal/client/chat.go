// ABOUTME: Chat history and streaming send calls; implements chat.Transport
// ABOUTME: OpenStream hands the raw response body to the session's reducer

package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/2389/skillchat/internal/chat"
)

// historyPageSize is the backend's maximum page.
const historyPageSize = 500

var _ chat.Transport = (*Client)(nil)

// HistoryPage fetches one page of persisted messages.
func (c *Client) HistoryPage(ctx context.Context, conversationID int64, skip, limit int) (*HistoryResponse, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	var hist HistoryResponse
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/v1/chat/conversations/%d/history", conversationID),
		query:  q,
	}, &hist)
	if err != nil {
		return nil, err
	}
	return &hist, nil
}

// History fetches every persisted message of a conversation as chat messages.
func (c *Client) History(ctx context.Context, conversationID int64) ([]chat.Message, error) {
	var msgs []chat.Message
	for skip := 0; ; skip += historyPageSize {
		page, err := c.HistoryPage(ctx, conversationID, skip, historyPageSize)
		if err != nil {
			return nil, err
		}
		for _, hm := range page.Messages {
			msgs = append(msgs, hm.ChatMessage())
		}
		if len(page.Messages) < historyPageSize {
			return msgs, nil
		}
	}
}

// ChatMessage converts a persisted message to the store's representation.
func (m HistoryMessage) ChatMessage() chat.Message {
	msg := chat.Message{
		ID:             strconv.FormatInt(m.ID, 10),
		ConversationID: m.ConversationID,
		Role:           chat.Role(m.Role),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt.Time,
	}
	if m.Metadata != nil {
		msg.ThinkingContent = m.Metadata.ThinkingContent
	}
	return msg
}

// OpenStream posts a chat message and returns the streaming response body.
// The body is bounded only by ctx.
func (c *Client) OpenStream(ctx context.Context, req *chat.StreamRequest) (io.ReadCloser, error) {
	resp, err := c.send(ctx, c.stream, call{
		method: http.MethodPost,
		path:   "/api/v1/chat/send",
		body:   req,
		accept: "text/event-stream",
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
