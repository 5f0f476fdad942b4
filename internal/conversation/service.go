// ABOUTME: Conversation list kept in sync with the backend, plus the current selection
// ABOUTME: Pinned conversations sort first, then most recently updated

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/2389/skillchat/internal/client"
	"github.com/2389/skillchat/internal/store"
)

// ErrUnknownConversation is returned when selecting an id that is not in the list.
var ErrUnknownConversation = errors.New("unknown conversation")

// Backend is the REST surface the service needs. client.Client implements it.
type Backend interface {
	ListConversations(ctx context.Context) ([]client.Conversation, error)
	CreateConversation(ctx context.Context, req client.ConversationCreate) (*client.Conversation, error)
	UpdateConversation(ctx context.Context, id int64, req client.ConversationUpdate) (*client.Conversation, error)
	DeleteConversation(ctx context.Context, id int64) error
	PinConversation(ctx context.Context, id int64) (*client.Conversation, error)
	UnpinConversation(ctx context.Context, id int64) (*client.Conversation, error)
}

// PreferenceStore persists the last selected conversation.
type PreferenceStore interface {
	GetPreference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
}

// Service holds the conversation list. All methods are safe for concurrent use.
type Service struct {
	backend Backend
	prefs   PreferenceStore
	logger  *slog.Logger

	mu      sync.RWMutex
	convs   []client.Conversation
	current int64
	loading bool
}

// NewService creates a service. prefs may be nil; pass nil logger for default.
func NewService(backend Backend, prefs PreferenceStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: backend,
		prefs:   prefs,
		logger:  logger.With("component", "conversation"),
	}
}

// Fetch replaces the list with the backend's.
func (s *Service) Fetch(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	convs, err := s.backend.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	s.mu.Lock()
	s.convs = convs
	s.mu.Unlock()
	return nil
}

// Create creates a conversation, puts it first and selects it.
func (s *Service) Create(ctx context.Context, title, modelName string) (*client.Conversation, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	conv, err := s.backend.CreateConversation(ctx, client.ConversationCreate{Title: title, ModelName: modelName})
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.mu.Lock()
	s.convs = append([]client.Conversation{*conv}, s.convs...)
	s.current = conv.ID
	s.mu.Unlock()

	s.persistCurrent(ctx, conv.ID)
	s.logger.Debug("conversation created", "conversation_id", conv.ID)
	return conv, nil
}

// Update applies a change and merges the backend's answer into the list.
func (s *Service) Update(ctx context.Context, id int64, req client.ConversationUpdate) (*client.Conversation, error) {
	return s.mutate(ctx, id, func(ctx context.Context) (*client.Conversation, error) {
		return s.backend.UpdateConversation(ctx, id, req)
	})
}

// Rename sets a conversation's title.
func (s *Service) Rename(ctx context.Context, id int64, title string) (*client.Conversation, error) {
	return s.Update(ctx, id, client.ConversationUpdate{Title: &title})
}

// Pin pins a conversation.
func (s *Service) Pin(ctx context.Context, id int64) (*client.Conversation, error) {
	return s.mutate(ctx, id, func(ctx context.Context) (*client.Conversation, error) {
		return s.backend.PinConversation(ctx, id)
	})
}

// Unpin removes a pin.
func (s *Service) Unpin(ctx context.Context, id int64) (*client.Conversation, error) {
	return s.mutate(ctx, id, func(ctx context.Context) (*client.Conversation, error) {
		return s.backend.UnpinConversation(ctx, id)
	})
}

func (s *Service) mutate(ctx context.Context, id int64, fn func(context.Context) (*client.Conversation, error)) (*client.Conversation, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	conv, err := fn(ctx)
	if err != nil {
		return nil, fmt.Errorf("updating conversation %d: %w", id, err)
	}

	s.mu.Lock()
	for i := range s.convs {
		if s.convs[i].ID == id {
			s.convs[i] = merge(s.convs[i], *conv)
			break
		}
	}
	s.mu.Unlock()
	return conv, nil
}

// merge overlays the fields the backend returned onto the cached conversation.
func merge(old, resp client.Conversation) client.Conversation {
	out := resp
	if out.ID == 0 {
		out.ID = old.ID
	}
	if out.UserID == 0 {
		out.UserID = old.UserID
	}
	if out.Title == "" {
		out.Title = old.Title
	}
	if out.ModelName == "" {
		out.ModelName = old.ModelName
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = old.CreatedAt
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = old.UpdatedAt
	}
	return out
}

// Delete deletes a conversation and clears the selection if it was current.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.setLoading(true)
	defer s.setLoading(false)

	if err := s.backend.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("deleting conversation %d: %w", id, err)
	}

	s.mu.Lock()
	kept := s.convs[:0:0]
	for _, c := range s.convs {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.convs = kept
	wasCurrent := s.current == id
	if wasCurrent {
		s.current = 0
	}
	s.mu.Unlock()

	if wasCurrent {
		s.persistCurrent(ctx, 0)
	}
	return nil
}

// Select makes a listed conversation current.
func (s *Service) Select(ctx context.Context, id int64) error {
	s.mu.Lock()
	found := false
	for _, c := range s.convs {
		if c.ID == id {
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownConversation, id)
	}
	s.current = id
	s.mu.Unlock()

	s.persistCurrent(ctx, id)
	return nil
}

// Restore selects the conversation that was current in a previous run, if it
// is still listed. Call after Fetch.
func (s *Service) Restore(ctx context.Context) (int64, bool) {
	if s.prefs == nil {
		return 0, false
	}
	raw, err := s.prefs.GetPreference(ctx, store.KeyLastConversation)
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	if err := s.Select(ctx, id); err != nil {
		return 0, false
	}
	return id, true
}

// Current returns the selected conversation.
func (s *Service) Current() (client.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == 0 {
		return client.Conversation{}, false
	}
	for _, c := range s.convs {
		if c.ID == s.current {
			return c, true
		}
	}
	return client.Conversation{}, false
}

// CurrentID returns the selected conversation id, or 0.
func (s *Service) CurrentID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// List returns the conversations in backend order.
func (s *Service) List() []client.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]client.Conversation, len(s.convs))
	copy(out, s.convs)
	return out
}

// Sorted returns pinned conversations first, each group newest-updated first.
func (s *Service) Sorted() []client.Conversation {
	out := s.List()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt.Time)
	})
	return out
}

// Loading reports whether a backend call is in progress.
func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Service) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Service) persistCurrent(ctx context.Context, id int64) {
	if s.prefs == nil {
		return
	}
	var err error
	if id == 0 {
		err = s.prefs.DeletePreference(ctx, store.KeyLastConversation)
		if errors.Is(err, store.ErrNotFound) {
			err = nil
		}
	} else {
		err = s.prefs.SetPreference(ctx, store.KeyLastConversation, strconv.FormatInt(id, 10))
	}
	if err != nil {
		s.logger.Warn("failed to persist current conversation", "error", err)
	}
}
