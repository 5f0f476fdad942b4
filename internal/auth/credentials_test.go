// ABOUTME: Tests for the persisted bearer credential
// ABOUTME: Covers load, login, logout and the single-clear behavior of Invalidate

package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2389/skillchat/internal/store"
)

func TestCredentials_LoadMissing(t *testing.T) {
	creds := NewCredentials(store.NewMockStore(), nil)
	if err := creds.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if creds.LoggedIn() {
		t.Error("LoggedIn() = true with nothing persisted")
	}
}

func TestCredentials_SetTokenPersists(t *testing.T) {
	ctx := context.Background()
	prefs := store.NewMockStore()

	if err := NewCredentials(prefs, nil).SetToken(ctx, "tok-1"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}

	reloaded := NewCredentials(prefs, nil)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := reloaded.Token(); got != "tok-1" {
		t.Errorf("Token() = %q, want %q", got, "tok-1")
	}
}

func TestCredentials_UseTokenDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	prefs := store.NewMockStore()
	creds := NewCredentials(prefs, nil)

	creds.UseToken("env-token")
	if got := creds.Token(); got != "env-token" {
		t.Errorf("Token() = %q, want %q", got, "env-token")
	}
	if _, err := prefs.GetPreference(ctx, store.KeyToken); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetPreference() error = %v, want ErrNotFound", err)
	}
}

func TestCredentials_Clear(t *testing.T) {
	ctx := context.Background()
	prefs := store.NewMockStore()
	creds := NewCredentials(prefs, nil)
	_ = creds.SetToken(ctx, "tok-1")

	if err := creds.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if creds.LoggedIn() {
		t.Error("LoggedIn() = true after Clear")
	}
	if _, err := prefs.GetPreference(ctx, store.KeyToken); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("persisted token survived Clear: %v", err)
	}

	// clearing twice is fine
	if err := creds.Clear(ctx); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestCredentials_InvalidateStaleToken(t *testing.T) {
	ctx := context.Background()
	creds := NewCredentials(store.NewMockStore(), nil)
	_ = creds.SetToken(ctx, "old")
	_ = creds.SetToken(ctx, "new")

	if creds.Invalidate("old") {
		t.Error("Invalidate(old) = true, want false after a newer login")
	}
	if got := creds.Token(); got != "new" {
		t.Errorf("Token() = %q, want %q", got, "new")
	}
	if creds.Invalidate("") {
		t.Error("Invalidate(\"\") = true")
	}
}

func TestCredentials_InvalidateOnce(t *testing.T) {
	ctx := context.Background()
	prefs := store.NewMockStore()
	creds := NewCredentials(prefs, nil)
	_ = creds.SetToken(ctx, "tok")

	var cleared atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if creds.Invalidate("tok") {
				cleared.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := cleared.Load(); got != 1 {
		t.Errorf("Invalidate cleared %d times, want 1", got)
	}
	if creds.LoggedIn() {
		t.Error("LoggedIn() = true after Invalidate")
	}
	if got := prefs.DeleteCount(store.KeyToken); got != 1 {
		t.Errorf("DeleteCount = %d, want 1", got)
	}
}

func TestCredentials_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	creds := NewCredentials(nil, nil)

	if err := creds.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := creds.SetToken(ctx, "tok"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	if !creds.Invalidate("tok") {
		t.Error("Invalidate() = false")
	}
	if err := creds.Clear(ctx); err != nil {
		t.Errorf("Clear() error = %v", err)
	}
}

// slowDeletePrefs holds DeletePreference open until release is closed.
type slowDeletePrefs struct {
	*store.MockStore
	entered chan struct{}
	release chan struct{}
}

func (p *slowDeletePrefs) DeletePreference(ctx context.Context, key string) error {
	close(p.entered)
	<-p.release
	return p.MockStore.DeletePreference(ctx, key)
}

func TestCredentials_ReloginDuringInvalidateKeepsNewToken(t *testing.T) {
	ctx := context.Background()
	prefs := &slowDeletePrefs{
		MockStore: store.NewMockStore(),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	if err := prefs.MockStore.SetPreference(ctx, store.KeyToken, "stale"); err != nil {
		t.Fatalf("SetPreference() error = %v", err)
	}
	creds := NewCredentials(prefs, nil)
	creds.UseToken("stale")

	invalidated := make(chan bool)
	go func() { invalidated <- creds.Invalidate("stale") }()
	<-prefs.entered

	relogged := make(chan error)
	go func() { relogged <- creds.SetToken(ctx, "fresh") }()

	// give the login a chance to slip in ahead of the delete
	time.Sleep(20 * time.Millisecond)
	close(prefs.release)

	if !<-invalidated {
		t.Error("Invalidate() = false, want true")
	}
	if err := <-relogged; err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}

	if got := creds.Token(); got != "fresh" {
		t.Errorf("Token() = %q, want %q", got, "fresh")
	}
	got, err := prefs.GetPreference(ctx, store.KeyToken)
	if err != nil {
		t.Fatalf("persisted token lost: %v", err)
	}
	if got != "fresh" {
		t.Errorf("persisted token = %q, want %q", got, "fresh")
	}
}
