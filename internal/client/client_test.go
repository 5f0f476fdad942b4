// ABOUTME: Tests for the backend HTTP client against httptest servers
// ABOUTME: Covers bearer auth, 401 invalidation, error decoding, streaming and pacing

package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/skillchat/internal/auth"
	"github.com/2389/skillchat/internal/chat"
	"github.com/2389/skillchat/internal/store"
)

func newTestClient(t *testing.T, handler http.Handler, token string) (*Client, *store.MockStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	prefs := store.NewMockStore()
	creds := auth.NewCredentials(prefs, nil)
	if token != "" {
		require.NoError(t, creds.SetToken(context.Background(), token))
	}

	c, err := New(srv.URL, creds, Options{Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	return c, prefs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", nil, Options{}, nil)
	assert.Error(t, err)

	_, err = New("://nope", nil, Options{}, nil)
	assert.Error(t, err)
}

func TestLogin_StoresToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))

		var req LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Username != "alice" || req.Password != "secret1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
			return
		}
		writeJSON(w, http.StatusOK, TokenResponse{AccessToken: "tok-1", TokenType: "bearer"})
	})
	mux.HandleFunc("GET /api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, map[string]any{
			"id": 7, "username": "alice", "is_active": true,
			"created_at": "2025-03-01T10:00:00.123456", "updated_at": "2025-03-01T10:00:00Z",
		})
	})

	c, prefs := newTestClient(t, mux, "")

	_, err := c.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Contains(t, err.Error(), "Incorrect username or password")
	assert.False(t, c.Credentials().LoggedIn())

	_, err = c.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", c.Credentials().Token())

	persisted, err := prefs.GetPreference(context.Background(), store.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", persisted)

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), me.ID)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, 2025, me.CreatedAt.Year())
}

func TestAuthenticatedCallWithoutToken(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}), "")

	_, err := c.ListConversations(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Equal(t, int32(0), hits.Load())
}

func TestUnauthorized_ClearsTokenOnce(t *testing.T) {
	c, prefs := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
	}), "stale")

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.ListConversations(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if errors.Is(err, ErrNotLoggedIn) {
			// request built after the token was cleared
			continue
		}
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
		assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	}

	assert.False(t, c.Credentials().LoggedIn())
	assert.Equal(t, 1, prefs.DeleteCount(store.KeyToken))
}

func TestUnauthorized_KeepsNewerToken(t *testing.T) {
	var c *Client
	c, _ = newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a fresh login lands while this request is in flight
		assert.NoError(t, c.Credentials().SetToken(context.Background(), "fresh"))
		w.WriteHeader(http.StatusUnauthorized)
	}), "stale")

	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	assert.Equal(t, "fresh", c.Credentials().Token())
}

func TestAPIError_Decoding(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail string", 404, `{"detail":"Conversation not found"}`, "Conversation not found"},
		{"detail list", 422, `{"detail":[{"loc":["body","title"],"msg":"field required"}]}`, `[{"loc":["body","title"],"msg":"field required"}]`},
		{"error field", 500, `{"error":"boom"}`, "boom"},
		{"plain text", 502, "bad gateway\n", "bad gateway"},
		{"empty", 503, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}), "tok")

			_, err := c.GetConversation(context.Background(), 1)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.want, apiErr.Detail)
			assert.NotErrorIs(t, err, auth.ErrUnauthorized)
		})
	}
}

func TestConversationCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/conversations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "title": "first", "is_pinned": false, "updated_at": "2025-01-01T00:00:00"},
		})
	})
	mux.HandleFunc("POST /api/v1/conversations", func(w http.ResponseWriter, r *http.Request) {
		var req ConversationCreate
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, map[string]any{"id": 2, "title": req.Title})
	})
	mux.HandleFunc("PUT /api/v1/conversations/2", func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, map[string]any{"title": "renamed"}, raw)
		writeJSON(w, http.StatusOK, map[string]any{"id": 2, "title": "renamed"})
	})
	mux.HandleFunc("POST /api/v1/conversations/2/pin", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 2, "is_pinned": true})
	})
	mux.HandleFunc("DELETE /api/v1/conversations/2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	c, _ := newTestClient(t, mux, "tok")
	ctx := context.Background()

	convs, err := c.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "first", convs[0].Title)

	created, err := c.CreateConversation(ctx, ConversationCreate{Title: "new"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ID)

	title := "renamed"
	updated, err := c.UpdateConversation(ctx, 2, ConversationUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)

	pinned, err := c.PinConversation(ctx, 2)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)

	require.NoError(t, c.DeleteConversation(ctx, 2))
}

func TestHistory_Paginates(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/v1/chat/conversations/4/history", r.URL.Path)

		skip := r.URL.Query().Get("skip")
		var msgs []map[string]any
		if skip == "0" {
			for i := 0; i < historyPageSize; i++ {
				msgs = append(msgs, map[string]any{"id": i + 1, "conversation_id": 4, "role": "user", "content": "m"})
			}
		} else {
			msgs = append(msgs, map[string]any{
				"id": 9999, "conversation_id": 4, "role": "assistant", "content": "last",
				"metadata": map[string]any{"thinking_content": "mulling"},
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "total": len(msgs)})
	}), "tok")

	msgs, err := c.History(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, msgs, historyPageSize+1)
	assert.Equal(t, int32(2), calls.Load())

	last := msgs[len(msgs)-1]
	assert.Equal(t, "9999", last.ID)
	assert.Equal(t, chat.RoleAssistant, last.Role)
	assert.Equal(t, "mulling", last.ThinkingContent)
	assert.False(t, last.IsStreaming)
}

func TestOpenStream(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/send", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		var req chat.StreamRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(3), req.ConversationID)
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: \"hi\"\n\ndata: [DONE]\n\n")
	}), "tok")

	body, err := c.OpenStream(context.Background(), &chat.StreamRequest{ConversationID: 3, Content: "x", Stream: true})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: \"hi\"\n\ndata: [DONE]\n\n", string(data))
}

func TestOpenStream_Unauthorized(t *testing.T) {
	c, prefs := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}), "tok")

	_, err := c.OpenStream(context.Background(), &chat.StreamRequest{ConversationID: 1, Content: "x"})
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	assert.False(t, c.Credentials().LoggedIn())
	assert.Equal(t, 1, prefs.DeleteCount(store.KeyToken))
}

func TestSkillCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/skills/translation", func(w http.ResponseWriter, r *http.Request) {
		var req TranslationRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, TranslationResponse{Text: "hola", TargetLang: req.TargetLang, ModelName: "mt"})
	})
	mux.HandleFunc("POST /api/v1/skills/coding", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, CodingResponse{Content: "package main", ModelName: "coder"})
	})
	mux.HandleFunc("POST /api/v1/skills/image-generation", func(w http.ResponseWriter, r *http.Request) {
		var req ImageGenerationRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		images := make([]string, req.N)
		for i := range images {
			images[i] = "https://img.example/x.png"
		}
		writeJSON(w, http.StatusOK, ImagesResponse{Images: images})
	})
	mux.HandleFunc("GET /api/v1/skills", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []Skill{{Name: "translation", Description: "translate"}})
	})
	mux.HandleFunc("GET /api/v1/models/skills", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []SkillModel{{SkillType: "coder", FastModel: "f", ExpertModel: "e"}})
	})

	c, _ := newTestClient(t, mux, "tok")
	ctx := context.Background()

	tr, err := c.Translate(ctx, TranslationRequest{Text: "hello", TargetLang: "es"})
	require.NoError(t, err)
	assert.Equal(t, "hola", tr.Text)
	assert.Equal(t, "es", tr.TargetLang)

	code, err := c.Code(ctx, CodingRequest{Prompt: "hello world"})
	require.NoError(t, err)
	assert.Equal(t, "package main", code.Content)

	imgs, err := c.GenerateImage(ctx, ImageGenerationRequest{Prompt: "cat", N: 2})
	require.NoError(t, err)
	assert.Len(t, imgs.Images, 2)

	skills, err := c.ListSkills(ctx)
	require.NoError(t, err)
	assert.Equal(t, "translation", skills[0].Name)

	models, err := c.SkillModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, "coder", models[0].SkillType)
}

func TestRateLimiterPacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []Skill{})
	}))
	defer srv.Close()

	creds := auth.NewCredentials(nil, nil)
	creds.UseToken("tok")
	c, err := New(srv.URL, creds, Options{RequestsPerSecond: 20, Burst: 1}, nil)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.ListSkills(context.Background())
		require.NoError(t, err)
	}
	// first request uses the burst, the next two wait ~50ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimiterHonorsContext(t *testing.T) {
	creds := auth.NewCredentials(nil, nil)
	creds.UseToken("tok")
	c, err := New("http://127.0.0.1:1", creds, Options{RequestsPerSecond: 0.001, Burst: 1}, nil)
	require.NoError(t, err)

	// drain the burst without sending
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListSkills(ctx)
	assert.ErrorContains(t, err, "rate limiter")
}

func TestTimestamp(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2025-06-01T08:30:00"`), &ts))
	assert.Equal(t, time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC), ts.Time)

	require.NoError(t, json.Unmarshal([]byte(`"2025-06-01T08:30:00+02:00"`), &ts))
	assert.Equal(t, 6, ts.UTC().Hour())

	var empty Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.True(t, empty.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
