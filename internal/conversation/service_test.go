// ABOUTME: Tests for the conversation list service
// ABOUTME: Uses an in-memory backend to check ordering, selection and persistence of the current conversation

package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/skillchat/internal/client"
	"github.com/2389/skillchat/internal/store"
)

type memBackend struct {
	mu     sync.Mutex
	convs  map[int64]client.Conversation
	nextID int64
	err    error
}

func newMemBackend(convs ...client.Conversation) *memBackend {
	b := &memBackend{convs: make(map[int64]client.Conversation), nextID: 100}
	for _, c := range convs {
		b.convs[c.ID] = c
	}
	return b
}

func (b *memBackend) ListConversations(ctx context.Context) ([]client.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	out := make([]client.Conversation, 0, len(b.convs))
	for _, c := range b.convs {
		out = append(out, c)
	}
	return out, nil
}

func (b *memBackend) CreateConversation(ctx context.Context, req client.ConversationCreate) (*client.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.nextID++
	c := client.Conversation{ID: b.nextID, Title: req.Title, ModelName: req.ModelName, UpdatedAt: client.Timestamp{Time: time.Now()}}
	b.convs[c.ID] = c
	return &c, nil
}

func (b *memBackend) UpdateConversation(ctx context.Context, id int64, req client.ConversationUpdate) (*client.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.convs[id]
	if !ok {
		return nil, &client.APIError{StatusCode: 404, Detail: "Conversation not found"}
	}
	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.IsPinned != nil {
		c.IsPinned = *req.IsPinned
	}
	b.convs[id] = c
	return &c, nil
}

func (b *memBackend) DeleteConversation(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.convs[id]; !ok {
		return &client.APIError{StatusCode: 404}
	}
	delete(b.convs, id)
	return nil
}

func (b *memBackend) PinConversation(ctx context.Context, id int64) (*client.Conversation, error) {
	pinned := true
	return b.UpdateConversation(ctx, id, client.ConversationUpdate{IsPinned: &pinned})
}

func (b *memBackend) UnpinConversation(ctx context.Context, id int64) (*client.Conversation, error) {
	pinned := false
	return b.UpdateConversation(ctx, id, client.ConversationUpdate{IsPinned: &pinned})
}

func conv(id int64, title string, pinned bool, updated time.Time) client.Conversation {
	return client.Conversation{ID: id, Title: title, IsPinned: pinned, UpdatedAt: client.Timestamp{Time: updated}}
}

func TestService_SortedPinnedFirstThenNewest(t *testing.T) {
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(newMemBackend(
		conv(1, "old", false, base),
		conv(2, "new", false, base.Add(2*time.Hour)),
		conv(3, "pinned old", true, base.Add(-time.Hour)),
		conv(4, "pinned new", true, base.Add(time.Hour)),
	), nil, nil)

	require.NoError(t, svc.Fetch(context.Background()))

	var titles []string
	for _, c := range svc.Sorted() {
		titles = append(titles, c.Title)
	}
	assert.Equal(t, []string{"pinned new", "pinned old", "new", "old"}, titles)
}

func TestService_CreatePrependsAndSelects(t *testing.T) {
	prefs := store.NewMockStore()
	svc := NewService(newMemBackend(conv(1, "existing", false, time.Now())), prefs, nil)
	ctx := context.Background()
	require.NoError(t, svc.Fetch(ctx))

	created, err := svc.Create(ctx, "fresh", "")
	require.NoError(t, err)

	list := svc.List()
	require.Len(t, list, 2)
	assert.Equal(t, created.ID, list[0].ID)

	current, ok := svc.Current()
	require.True(t, ok)
	assert.Equal(t, "fresh", current.Title)

	saved, err := prefs.GetPreference(ctx, store.KeyLastConversation)
	require.NoError(t, err)
	assert.Equal(t, "101", saved)
}

func TestService_PinRenameMergeIntoList(t *testing.T) {
	svc := NewService(newMemBackend(conv(1, "a", false, time.Now())), nil, nil)
	ctx := context.Background()
	require.NoError(t, svc.Fetch(ctx))

	_, err := svc.Pin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, svc.List()[0].IsPinned)

	_, err = svc.Rename(ctx, 1, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", svc.List()[0].Title)

	_, err = svc.Unpin(ctx, 1)
	require.NoError(t, err)
	assert.False(t, svc.List()[0].IsPinned)

	_, err = svc.Pin(ctx, 99)
	assert.Equal(t, 404, client.StatusCode(err))
}

func TestService_DeleteClearsSelection(t *testing.T) {
	prefs := store.NewMockStore()
	svc := NewService(newMemBackend(conv(1, "a", false, time.Now()), conv(2, "b", false, time.Now())), prefs, nil)
	ctx := context.Background()
	require.NoError(t, svc.Fetch(ctx))
	require.NoError(t, svc.Select(ctx, 1))

	require.NoError(t, svc.Delete(ctx, 2))
	assert.Equal(t, int64(1), svc.CurrentID())

	require.NoError(t, svc.Delete(ctx, 1))
	assert.Equal(t, int64(0), svc.CurrentID())
	_, ok := svc.Current()
	assert.False(t, ok)
	assert.Empty(t, svc.List())

	_, err := prefs.GetPreference(ctx, store.KeyLastConversation)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_SelectUnknown(t *testing.T) {
	svc := NewService(newMemBackend(), nil, nil)
	err := svc.Select(context.Background(), 5)
	assert.ErrorIs(t, err, ErrUnknownConversation)
}

func TestService_Restore(t *testing.T) {
	ctx := context.Background()
	prefs := store.NewMockStore()
	require.NoError(t, prefs.SetPreference(ctx, store.KeyLastConversation, "2"))

	svc := NewService(newMemBackend(conv(2, "b", false, time.Now())), prefs, nil)
	require.NoError(t, svc.Fetch(ctx))

	id, ok := svc.Restore(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)

	// a stale id is ignored
	require.NoError(t, prefs.SetPreference(ctx, store.KeyLastConversation, "77"))
	_, ok = svc.Restore(ctx)
	assert.False(t, ok)
}

func TestService_FetchError(t *testing.T) {
	backend := newMemBackend()
	backend.err = errors.New("offline")
	svc := NewService(backend, nil, nil)

	err := svc.Fetch(context.Background())
	assert.ErrorContains(t, err, "offline")
	assert.False(t, svc.Loading())
}

func TestMerge_KeepsCachedFields(t *testing.T) {
	old := client.Conversation{ID: 1, UserID: 3, Title: "t", ModelName: "m", UpdatedAt: client.Timestamp{Time: time.Now()}}
	merged := merge(old, client.Conversation{ID: 1, IsPinned: true})

	assert.True(t, merged.IsPinned)
	assert.Equal(t, "t", merged.Title)
	assert.Equal(t, int64(3), merged.UserID)
	assert.Equal(t, "m", merged.ModelName)
	assert.False(t, merged.UpdatedAt.IsZero())
}
