// ABOUTME: In-memory development backend speaking the assistant's REST and streaming API
// ABOUTME: Issues HS256 tokens, keeps users, conversations and history in memory

package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/skillchat/internal/auth"
	"github.com/2389/skillchat/internal/client"
)

// Server errors
var (
	ErrUserExists = errors.New("username already registered")
	ErrNoSecret   = errors.New("jwt secret is required")
)

const defaultTitle = "New Conversation"

// Options configures a Server.
type Options struct {
	// Secret signs access tokens.
	Secret []byte
	// ChunkDelay is the pause between streamed frames.
	ChunkDelay time.Duration
	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
	// Reply produces the assistant's answer; nil uses EchoReply.
	Reply ReplyFunc
}

type account struct {
	user         client.User
	passwordHash []byte
}

// Server is the fake backend. It is safe for concurrent use.
type Server struct {
	opts   Options
	issuer *auth.Issuer
	logger *slog.Logger

	mu         sync.Mutex
	accounts   map[string]*account
	convs      map[int64]*client.Conversation
	history    map[int64][]client.HistoryMessage
	nextUserID int64
	nextConvID int64
	nextMsgID  int64
}

// New creates a server. Pass nil logger for default.
func New(opts Options, logger *slog.Logger) (*Server, error) {
	if len(opts.Secret) == 0 {
		return nil, ErrNoSecret
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.Reply == nil {
		opts.Reply = EchoReply
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		opts:     opts,
		issuer:   auth.NewIssuer(opts.Secret),
		logger:   logger.With("component", "devserver"),
		accounts: make(map[string]*account),
		convs:    make(map[int64]*client.Conversation),
		history:  make(map[int64][]client.HistoryMessage),
	}, nil
}

// AddUser creates an account directly, for seeding.
func (s *Server) AddUser(username, email, password string) (client.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return client.User{}, fmt.Errorf("hashing password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[username]; exists {
		return client.User{}, ErrUserExists
	}
	s.nextUserID++
	now := client.Timestamp{Time: time.Now().UTC()}
	acct := &account{
		user: client.User{
			ID:        s.nextUserID,
			Username:  username,
			Email:     email,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: hash,
	}
	s.accounts[username] = acct
	return acct.user, nil
}

// Handler returns the HTTP handler serving /api/v1.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/auth/login", s.handleLogin)
		api.Post("/auth/register", s.handleRegister)

		api.Group(func(pr chi.Router) {
			pr.Use(auth.HTTPAuthMiddleware(s.issuer, s.resolveUser, s.unauthorized, s.logger))

			pr.Get("/auth/me", s.handleMe)

			pr.Get("/conversations", s.handleListConversations)
			pr.Post("/conversations", s.handleCreateConversation)
			pr.Get("/conversations/{id}", s.handleGetConversation)
			pr.Put("/conversations/{id}", s.handleUpdateConversation)
			pr.Delete("/conversations/{id}", s.handleDeleteConversation)
			pr.Post("/conversations/{id}/pin", s.handlePin(true))
			pr.Post("/conversations/{id}/unpin", s.handlePin(false))

			pr.Get("/chat/conversations/{id}/history", s.handleHistory)
			pr.Post("/chat/send", s.handleSend)

			pr.Get("/skills", s.handleListSkills)
			pr.Get("/skills/{name}", s.handleGetSkill)
			pr.Post("/skills/translation", s.handleTranslate)
			pr.Post("/skills/coding", s.handleCoding)
			pr.Post("/skills/image-generation", s.handleImageGeneration)
			pr.Post("/skills/image-editing", s.handleImageEditing)

			pr.Get("/models/chat", s.handleChatModels)
			pr.Get("/models/skills", s.handleSkillModels)
		})
	})

	return r
}

// logRequests logs each request at debug once it completes.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start),
		)
	})
}

// resolveUser maps a token subject to a known account.
func (s *Server) resolveUser(_ context.Context, username string) (*auth.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, found := s.accounts[username]
	if !found {
		return nil, false
	}
	return &auth.Identity{Subject: username, UserID: acct.user.ID}, true
}

// currentUser returns the account of the authenticated caller.
func (s *Server) currentUser(ctx context.Context) client.User {
	id := auth.FromContext(ctx)
	if id == nil {
		return client.User{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[id.Subject]; ok {
		return acct.user
	}
	return client.User{}
}

func (s *Server) unauthorized(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	s.sendJSONError(w, http.StatusUnauthorized, "Could not validate credentials")
}

// sendJSONError writes a JSON error response in the backend's {"detail": ...} shape.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, detail string) {
	s.sendJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

// decodeBody decodes a JSON request body, answering 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// dummyHash keeps login timing the same for unknown usernames.
var dummyHash = []byte("$2a$04$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

func passwordMatches(acct *account, password string) bool {
	if acct == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)) == nil
}
