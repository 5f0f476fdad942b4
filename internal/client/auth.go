// ABOUTME: Login, registration and identity calls
// ABOUTME: A successful login stores the access token in the credential holder

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Login exchanges a username and password for a token and stores it.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	var tok TokenResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   LoginRequest{Username: username, Password: password},
		public: true,
	}, &tok)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("logging in: server returned no access token")
	}

	if err := c.creds.SetToken(ctx, tok.AccessToken); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var user User
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/v1/auth/register",
		body:   req,
		public: true,
	}, &user)
	if err != nil {
		return nil, fmt.Errorf("registering: %w", err)
	}
	return &user, nil
}

// Me returns the logged-in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/auth/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout forgets the stored token. The backend keeps no session to end.
func (c *Client) Logout(ctx context.Context) error {
	return c.creds.Clear(ctx)
}
