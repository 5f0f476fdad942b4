// ABOUTME: Chat session driving sends, streaming ingestion, cancellation and history loads
// ABOUTME: Enforces single-flight per conversation; each tick is one store update

package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/2389/skillchat/internal/auth"
)

// Session errors
var (
	ErrStreamInFlight = errors.New("a reply is already streaming in this conversation")
	ErrEmptyContent   = errors.New("message content is empty")
	ErrDuplicateSend  = errors.New("duplicate message ignored")
	ErrSessionClosed  = errors.New("session closed")
	ErrInvalidIndex   = errors.New("message index out of range")
	ErrNotAssistant   = errors.New("message is not an assistant reply")
	ErrNoPrompt       = errors.New("no user message precedes this reply")
)

// errUnauthorized is what the transport wraps on HTTP 401.
var errUnauthorized = auth.ErrUnauthorized

const defaultReadBufSize = 4096

// StreamRequest is the body of the streaming send endpoint.
type StreamRequest struct {
	ConversationID int64    `json:"conversation_id"`
	Content        string   `json:"content"`
	Stream         bool     `json:"stream"`
	ModelType      string   `json:"model_type"`
	IsExpert       bool     `json:"is_expert"`
	EnableThinking bool     `json:"enable_thinking"`
	Images         []string `json:"images"`
}

// Transport is the backend seen by the session. client.Client implements it.
// OpenStream must return an error wrapping auth.ErrUnauthorized on HTTP 401.
type Transport interface {
	OpenStream(ctx context.Context, req *StreamRequest) (io.ReadCloser, error)
	History(ctx context.Context, conversationID int64) ([]Message, error)
}

// DuplicateGuard rejects repeated submissions. CheckAndMark records key and
// reports whether it was already recorded recently. dedupe.Window implements it.
type DuplicateGuard interface {
	CheckAndMark(key string) bool
}

// SendOptions tune a single send. Zero fields fall back to the session defaults.
type SendOptions struct {
	ModelType      string
	Expert         bool
	EnableThinking bool
	Images         []string
}

// SessionConfig holds session-wide defaults.
type SessionConfig struct {
	// Timeout bounds a whole stream; zero means no timeout.
	Timeout  time.Duration
	Defaults SendOptions
	// ReadBufferSize is the size of each transport read; one read is one tick.
	ReadBufferSize int
}

// Session owns the in-flight task map and drives streams into a Store.
type Session struct {
	store     *Store
	transport Transport
	cfg       SessionConfig
	guard     DuplicateGuard
	logger    *slog.Logger

	mu     sync.Mutex
	tasks  map[int64]*Task
	closed bool
	wg     sync.WaitGroup
}

// NewSession creates a session. Pass nil logger for default.
func NewSession(store *Store, transport Transport, cfg SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBufSize
	}
	if cfg.Defaults.ModelType == "" {
		cfg.Defaults.ModelType = "general"
	}
	return &Session{
		store:     store,
		transport: transport,
		cfg:       cfg,
		logger:    logger.With("component", "chat"),
		tasks:     make(map[int64]*Task),
	}
}

// SetDuplicateGuard configures rejection of repeated sends.
func (s *Session) SetDuplicateGuard(g DuplicateGuard) {
	s.guard = g
}

// Store returns the session's message store.
func (s *Session) Store() *Store {
	return s.store
}

// Send appends the user message and an assistant placeholder, then streams
// the reply in the background. Canceling ctx cancels the stream.
func (s *Session) Send(ctx context.Context, conversationID int64, content string, opts *SendOptions) (*Task, error) {
	return s.send(ctx, conversationID, content, opts, true)
}

func (s *Session) send(ctx context.Context, conversationID int64, content string, opts *SendOptions, checkDuplicate bool) (*Task, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}

	req := s.buildRequest(conversationID, content, opts)
	user := NewUserMessage(conversationID, content)
	assistant := NewAssistantPlaceholder(conversationID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if _, busy := s.tasks[conversationID]; busy {
		s.mu.Unlock()
		return nil, ErrStreamInFlight
	}
	if checkDuplicate && s.guard != nil && s.guard.CheckAndMark(DuplicateKey(conversationID, content)) {
		s.mu.Unlock()
		s.logger.Debug("duplicate send ignored", "conversation_id", conversationID)
		return nil, ErrDuplicateSend
	}
	task := newTask(ctx, conversationID, assistant.ID, s.cfg.Timeout)
	s.tasks[conversationID] = task
	s.wg.Add(1)
	s.mu.Unlock()

	s.store.Append(conversationID, user, assistant)
	s.store.SetSending(conversationID, true)

	s.logger.Debug("stream starting",
		"conversation_id", conversationID,
		"message_id", assistant.ID,
	)

	go s.run(task, req)
	return task, nil
}

func (s *Session) buildRequest(conversationID int64, content string, opts *SendOptions) *StreamRequest {
	o := s.cfg.Defaults
	if opts != nil {
		if opts.ModelType != "" {
			o.ModelType = opts.ModelType
		}
		o.Expert = o.Expert || opts.Expert
		o.EnableThinking = o.EnableThinking || opts.EnableThinking
		if len(opts.Images) > 0 {
			o.Images = opts.Images
			o.ModelType = "vision"
		}
	}
	return &StreamRequest{
		ConversationID: conversationID,
		Content:        content,
		Stream:         true,
		ModelType:      o.ModelType,
		IsExpert:       o.Expert,
		EnableThinking: o.EnableThinking,
		Images:         o.Images,
	}
}

// run owns the task until it is finalized.
func (s *Session) run(task *Task, req *StreamRequest) {
	defer s.wg.Done()

	outcome, err := s.ingest(task, req)
	s.finish(task, outcome, err)
}

// ingest reads the response body, ticking the reducer once per read.
func (s *Session) ingest(task *Task, req *StreamRequest) (Outcome, error) {
	body, err := s.transport.OpenStream(task.ctx, req)
	if err != nil {
		return task.classify(err)
	}
	defer body.Close()

	reducer := NewReducer(s.logger.With("conversation_id", task.ConversationID))
	buf := make([]byte, s.cfg.ReadBufferSize)
	var raw []byte

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if task.ctx.Err() != nil {
				return task.classify(task.ctx.Err())
			}

			raw = append(raw, buf[:n]...)
			delta := reducer.Tick(raw)
			if delta.Frames > 0 {
				s.store.UpdateMessage(task.ConversationID, task.MessageID, delta.ApplyTo)
			}
			if reducer.Done() {
				return OutcomeCompleted, nil
			}
		}

		if readErr != nil {
			if task.ctx.Err() != nil {
				return task.classify(readErr)
			}
			if errors.Is(readErr, io.EOF) {
				if pending := len(raw) - reducer.cursor.Offset(); pending > 0 {
					s.logger.Debug("discarding unterminated trailing frame",
						"conversation_id", task.ConversationID,
						"bytes", pending,
					)
				}
				return OutcomeCompleted, nil
			}
			return task.classify(readErr)
		}
	}
}

// finish finalizes the message, releases the conversation and wakes waiters.
func (s *Session) finish(task *Task, outcome Outcome, err error) {
	outcome, err = task.settle(outcome, err)
	s.store.UpdateMessage(task.ConversationID, task.MessageID, func(m *Message) {
		m.finalize(outcome, err)
	})
	s.store.SetSending(task.ConversationID, false)

	s.mu.Lock()
	if s.tasks[task.ConversationID] == task {
		delete(s.tasks, task.ConversationID)
	}
	s.mu.Unlock()

	task.complete(outcome, err)

	attrs := []any{
		"conversation_id", task.ConversationID,
		"message_id", task.MessageID,
		"outcome", outcome.String(),
		"duration", time.Since(task.StartedAt),
	}
	switch outcome {
	case OutcomeFailed:
		s.logger.Error("stream failed", append(attrs, "error", err)...)
	case OutcomeUnauthorized:
		s.logger.Warn("stream rejected, login required", attrs...)
	default:
		s.logger.Debug("stream finished", attrs...)
	}
}

// Cancel aborts the conversation's in-flight stream. Returns false when
// nothing is streaming or the stream was already canceled.
func (s *Session) Cancel(conversationID int64) bool {
	s.mu.Lock()
	task := s.tasks[conversationID]
	s.mu.Unlock()

	if task == nil {
		return false
	}
	return task.Cancel()
}

// Active returns the conversation's in-flight task.
func (s *Session) Active(conversationID int64) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[conversationID]
	return task, ok
}

// Regenerate re-asks the user prompt that produced the assistant message at
// index. The reply and everything after it, including the prompt itself, is
// dropped before the prompt is sent again.
func (s *Session) Regenerate(ctx context.Context, conversationID int64, index int, opts *SendOptions) (*Task, error) {
	if _, busy := s.Active(conversationID); busy {
		return nil, ErrStreamInFlight
	}

	msgs := s.store.Messages(conversationID)
	if index < 0 || index >= len(msgs) {
		return nil, ErrInvalidIndex
	}
	if msgs[index].Role != RoleAssistant {
		return nil, ErrNotAssistant
	}

	promptIdx := -1
	for i := index - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			promptIdx = i
			break
		}
	}
	if promptIdx < 0 {
		return nil, ErrNoPrompt
	}

	s.store.Truncate(conversationID, promptIdx)
	return s.send(ctx, conversationID, msgs[promptIdx].Content, opts, false)
}

// RegenerateLast regenerates the most recent assistant reply.
func (s *Session) RegenerateLast(ctx context.Context, conversationID int64, opts *SendOptions) (*Task, error) {
	msgs := s.store.Messages(conversationID)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAssistant {
			return s.Regenerate(ctx, conversationID, i, opts)
		}
	}
	return nil, ErrInvalidIndex
}

// FetchHistory replaces the conversation's messages with the server history.
func (s *Session) FetchHistory(ctx context.Context, conversationID int64) error {
	if _, busy := s.Active(conversationID); busy {
		return ErrStreamInFlight
	}

	s.store.SetLoading(conversationID, true)
	defer s.store.SetLoading(conversationID, false)

	msgs, err := s.transport.History(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("fetching history for conversation %d: %w", conversationID, err)
	}

	s.store.SetMessages(conversationID, msgs)
	return nil
}

// Clear cancels any stream and drops the conversation's messages.
func (s *Session) Clear(conversationID int64) {
	if task, ok := s.Active(conversationID); ok {
		task.Cancel()
		<-task.Done()
	}
	s.store.Delete(conversationID)
}

// Close cancels every in-flight stream and waits for them to finalize.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	tasks := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
	s.wg.Wait()
}

// DuplicateKey identifies a submission by conversation and content.
func DuplicateKey(conversationID int64, content string) string {
	sum := sha256.Sum256([]byte(content))
	return strconv.FormatInt(conversationID, 10) + ":" + hex.EncodeToString(sum[:8])
}
