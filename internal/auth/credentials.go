// ABOUTME: Persisted bearer credential shared by the REST client and the chat session
// ABOUTME: Invalidate clears a rejected token once, even when several requests fail together

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/skillchat/internal/store"
)

// PreferenceStore is the persistence needed to keep the token across runs.
type PreferenceStore interface {
	GetPreference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
}

// Credentials holds the current bearer token. The token is cached in memory
// and mirrored to the preference store under store.KeyToken.
type Credentials struct {
	// persistMu orders writes to prefs; it is taken before mu.
	persistMu sync.Mutex

	mu     sync.RWMutex
	token  string
	prefs  PreferenceStore
	logger *slog.Logger
}

// NewCredentials creates a credential holder. Pass nil prefs for a memory-only
// holder and nil logger for the default.
func NewCredentials(prefs PreferenceStore, logger *slog.Logger) *Credentials {
	if logger == nil {
		logger = slog.Default()
	}
	return &Credentials{
		prefs:  prefs,
		logger: logger.With("component", "credentials"),
	}
}

// Load reads the persisted token into memory. A missing token is not an error.
func (c *Credentials) Load(ctx context.Context) error {
	if c.prefs == nil {
		return nil
	}
	token, err := c.prefs.GetPreference(ctx, store.KeyToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("loading token: %w", err)
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return nil
}

// Token returns the current bearer token, or "" when logged out.
func (c *Credentials) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// LoggedIn reports whether a token is present.
func (c *Credentials) LoggedIn() bool {
	return c.Token() != ""
}

// SetToken stores a new token after a successful login.
func (c *Credentials) SetToken(ctx context.Context, token string) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	if c.prefs != nil {
		if err := c.prefs.SetPreference(ctx, store.KeyToken, token); err != nil {
			return fmt.Errorf("saving token: %w", err)
		}
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return nil
}

// UseToken replaces the in-memory token without persisting it.
// Used for tokens supplied through the environment.
func (c *Credentials) UseToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Invalidate clears the stored token if it is still the given token.
// Returns true only for the call that actually cleared it, so a burst of 401
// responses for the same stale token clears the credential exactly once.
func (c *Credentials) Invalidate(token string) bool {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	if token == "" || c.token != token {
		c.mu.Unlock()
		return false
	}
	c.token = ""
	c.mu.Unlock()

	c.logger.Warn("bearer token rejected, credential cleared")
	c.deletePersisted(context.Background())
	return true
}

// Clear logs out unconditionally.
func (c *Credentials) Clear(ctx context.Context) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()

	if c.prefs == nil {
		return nil
	}
	if err := c.prefs.DeletePreference(ctx, store.KeyToken); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

func (c *Credentials) deletePersisted(ctx context.Context) {
	if c.prefs == nil {
		return
	}
	if err := c.prefs.DeletePreference(ctx, store.KeyToken); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.logger.Error("failed to delete persisted token", "error", err)
	}
}
