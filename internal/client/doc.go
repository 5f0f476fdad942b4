// Package client is the HTTP client for the assistant backend.
//
// # Overview
//
// Client wraps the backend's REST API under /api/v1: authentication,
// conversation management, chat history, the streaming send endpoint and the
// direct skill endpoints. It implements chat.Transport, so a chat.Session can
// stream replies through it.
//
// # Authentication
//
// Every call except login and register carries the bearer token held by an
// auth.Credentials. When the backend answers 401 the client invalidates the
// exact token it sent and returns an error matching auth.ErrUnauthorized:
//
//	if errors.Is(err, auth.ErrUnauthorized) {
//	    // prompt for login
//	}
//
// Invalidation is compare-and-clear, so several requests failing together
// with the same stale token clear it once, and a token obtained by a login
// in the meantime is left alone.
//
// # Errors
//
// Non-2xx responses become *APIError carrying the status code and the
// backend's "detail" message. Use StatusCode(err) to read the status.
//
// # Pacing
//
// Requests are paced by a token bucket (golang.org/x/time/rate). Streaming
// requests count once, when they are opened.
package client
