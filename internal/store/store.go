// ABOUTME: Store interface and keys for client-side persisted state
// ABOUTME: Stands in for the browser's local storage: bearer token, theme, last conversation

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested preference does not exist
var ErrNotFound = errors.New("not found")

// Well-known preference keys
const (
	KeyToken            = "token"
	KeyThemeMode        = "theme-mode"
	KeyLastConversation = "last-conversation"
)

// Preference is a single persisted key/value pair
type Preference struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Store defines the persistence operations used by the client
type Store interface {
	GetPreference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
	ListPreferences(ctx context.Context) ([]Preference, error)
	Close() error
}
