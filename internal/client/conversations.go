// ABOUTME: Conversation CRUD and pinning calls
// ABOUTME: Used by conversation.Service to keep the local list in sync

package client

import (
	"context"
	"fmt"
	"net/http"
)

func conversationPath(id int64) string {
	return fmt.Sprintf("/api/v1/conversations/%d", id)
}

// ListConversations returns the user's conversations.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/conversations"}, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// GetConversation returns one conversation.
func (c *Client) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, call{method: http.MethodGet, path: conversationPath(id)}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateConversation creates a conversation.
func (c *Client) CreateConversation(ctx context.Context, req ConversationCreate) (*Conversation, error) {
	var conv Conversation
	err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/conversations", body: req}, &conv)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// UpdateConversation changes the title, pin state or model of a conversation.
func (c *Client) UpdateConversation(ctx context.Context, id int64, req ConversationUpdate) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, call{method: http.MethodPut, path: conversationPath(id), body: req}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// DeleteConversation deletes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	return c.do(ctx, call{method: http.MethodDelete, path: conversationPath(id)}, nil)
}

// PinConversation pins a conversation to the top of the list.
func (c *Client) PinConversation(ctx context.Context, id int64) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, call{method: http.MethodPost, path: conversationPath(id) + "/pin"}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// UnpinConversation removes the pin.
func (c *Client) UnpinConversation(ctx context.Context, id int64) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, call{method: http.MethodPost, path: conversationPath(id) + "/unpin"}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}
