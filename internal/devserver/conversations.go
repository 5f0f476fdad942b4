// ABOUTME: Conversation CRUD and history handlers for the development backend
// ABOUTME: Every conversation is owned by one user; others get 404

package devserver

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/skillchat/internal/client"
)

const maxHistoryPage = 500

// ownedConversation resolves {id} to a conversation owned by the caller, answering 404 otherwise.
// The caller must not hold s.mu.
func (s *Server) ownedConversation(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.sendJSONError(w, http.StatusNotFound, "Conversation not found")
		return 0, false
	}
	return s.ownedConversationID(w, r, id)
}

func (s *Server) ownedConversationID(w http.ResponseWriter, r *http.Request, id int64) (int64, bool) {
	user := s.currentUser(r.Context())

	s.mu.Lock()
	conv, found := s.convs[id]
	owned := found && conv.UserID == user.ID
	s.mu.Unlock()

	if !owned {
		s.sendJSONError(w, http.StatusNotFound, "Conversation not found")
		return 0, false
	}
	return id, true
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	user := s.currentUser(r.Context())

	s.mu.Lock()
	out := make([]client.Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		if c.UserID == user.ID {
			out = append(out, *c)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt.Time) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt.Time)
		}
		return out[i].ID > out[j].ID
	})
	s.sendJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req client.ConversationCreate
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" {
		req.Title = defaultTitle
	}

	user := s.currentUser(r.Context())
	now := client.Timestamp{Time: time.Now().UTC()}

	s.mu.Lock()
	s.nextConvID++
	conv := &client.Conversation{
		ID:        s.nextConvID,
		UserID:    user.ID,
		Title:     req.Title,
		ModelName: req.ModelName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.convs[conv.ID] = conv
	out := *conv
	s.mu.Unlock()

	s.sendJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ownedConversation(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	out := *s.convs[id]
	s.mu.Unlock()

	s.sendJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ownedConversation(w, r)
	if !ok {
		return
	}
	var req client.ConversationUpdate
	if !s.decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	conv := s.convs[id]
	if req.Title != nil {
		conv.Title = *req.Title
	}
	if req.IsPinned != nil {
		conv.IsPinned = *req.IsPinned
	}
	if req.ModelName != nil {
		conv.ModelName = *req.ModelName
	}
	conv.UpdatedAt = client.Timestamp{Time: time.Now().UTC()}
	out := *conv
	s.mu.Unlock()

	s.sendJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ownedConversation(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	delete(s.convs, id)
	delete(s.history, id)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePin(pinned bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.ownedConversation(w, r)
		if !ok {
			return
		}

		s.mu.Lock()
		conv := s.convs[id]
		conv.IsPinned = pinned
		out := *conv
		s.mu.Unlock()

		s.sendJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ownedConversation(w, r)
	if !ok {
		return
	}

	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)
	if limit > maxHistoryPage {
		limit = maxHistoryPage
	}
	if skip < 0 || limit < 1 {
		s.sendJSONError(w, http.StatusBadRequest, "skip must be >= 0 and limit >= 1")
		return
	}

	s.mu.Lock()
	all := s.history[id]
	total := len(all)
	var page []client.HistoryMessage
	if skip < total {
		end := min(skip+limit, total)
		page = append(page, all[skip:end]...)
	}
	s.mu.Unlock()

	if page == nil {
		page = []client.HistoryMessage{}
	}
	s.sendJSON(w, http.StatusOK, client.HistoryResponse{Messages: page, Total: total})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

// appendHistory persists a message and bumps the conversation's updated_at.
// The caller must hold s.mu.
func (s *Server) appendHistory(convID int64, role, content, thinking string) {
	s.nextMsgID++
	msg := client.HistoryMessage{
		ID:             s.nextMsgID,
		ConversationID: convID,
		Role:           role,
		Content:        content,
		CreatedAt:      client.Timestamp{Time: time.Now().UTC()},
	}
	if thinking != "" {
		msg.Metadata = &client.MessageMetadata{ThinkingContent: thinking}
	}
	s.history[convID] = append(s.history[convID], msg)

	if conv, ok := s.convs[convID]; ok {
		conv.UpdatedAt = msg.CreatedAt
	}
}
