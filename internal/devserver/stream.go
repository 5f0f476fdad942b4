// ABOUTME: Streaming send handler writing "data:" frames with go-sse
// ABOUTME: Thinking frames come first, then content, then the [DONE] marker

package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tmaxmax/go-sse"

	"github.com/2389/skillchat/internal/chat"
)

const (
	doneMarker    = "[DONE]"
	maxTitleRunes = 30
)

// Reply is the assistant's answer to one send.
type Reply struct {
	Thinking string
	Content  string
}

// ReplyFunc produces the reply for a send request.
type ReplyFunc func(req *chat.StreamRequest) Reply

// EchoReply answers by repeating the prompt, and thinks out loud when asked to.
func EchoReply(req *chat.StreamRequest) Reply {
	reply := Reply{Content: "You said: " + req.Content}
	if len(req.Images) > 0 {
		reply.Content += fmt.Sprintf(" (with %d image(s))", len(req.Images))
	}
	if req.EnableThinking {
		reply.Thinking = "The user wrote " + strconv.Quote(req.Content) + "."
	}
	return reply
}

type frameData struct {
	Content string `json:"content"`
}

type frame struct {
	Type string     `json:"type"`
	Data *frameData `json:"data,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req chat.StreamRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.sendJSONError(w, http.StatusBadRequest, "content is required")
		return
	}
	id, ok := s.ownedConversationID(w, r, req.ConversationID)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	reply := s.opts.Reply(&req)

	s.mu.Lock()
	s.appendHistory(id, "user", req.Content, "")
	if conv := s.convs[id]; conv.Title == defaultTitle {
		conv.Title = titleFrom(req.Content)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var thinking, content strings.Builder
	completed := s.streamReply(r.Context(), w, flusher, reply, &thinking, &content)

	// Persist before [DONE] so a client reloading history right after sees the reply
	s.mu.Lock()
	if _, exists := s.convs[id]; exists {
		s.appendHistory(id, "assistant", content.String(), thinking.String())
	}
	s.mu.Unlock()

	if completed {
		if err := writeFrame(w, doneMarker); err == nil {
			flusher.Flush()
		}
	}

	s.logger.Debug("stream finished",
		"conversation_id", id,
		"completed", completed,
		"content_bytes", content.Len(),
	)
}

// streamReply writes the reply frame by frame, recording what was sent.
// It returns false when the client went away first. The [DONE] marker is left
// to the caller.
func (s *Server) streamReply(ctx context.Context, w io.Writer, flusher http.Flusher, reply Reply, thinking, content *strings.Builder) bool {
	emit := func(payload string) bool {
		if !s.pause(ctx) {
			return false
		}
		if err := writeFrame(w, payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for _, chunk := range splitChunks(reply.Thinking) {
		if !emit(encodeFrame(frame{Type: "thinking", Data: &frameData{Content: chunk}})) {
			return false
		}
		thinking.WriteString(chunk)
	}
	if reply.Thinking != "" {
		if !emit(encodeFrame(frame{Type: "thinking_end"})) {
			return false
		}
	}

	for _, chunk := range splitChunks(reply.Content) {
		if !emit(encodeFrame(frame{Type: "content", Data: &frameData{Content: chunk}})) {
			return false
		}
		content.WriteString(chunk)
	}
	return true
}

// pause waits ChunkDelay, reporting false if ctx ends first.
func (s *Server) pause(ctx context.Context) bool {
	if s.opts.ChunkDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.opts.ChunkDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func writeFrame(w io.Writer, payload string) error {
	msg := &sse.Message{}
	msg.AppendData(payload)
	_, err := msg.WriteTo(w)
	return err
}

func encodeFrame(f frame) string {
	b, _ := json.Marshal(f)
	return string(b)
}

// splitChunks breaks text into word-sized pieces that concatenate back to text.
func splitChunks(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, " ")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func titleFrom(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= maxTitleRunes {
		return content
	}
	return string(runes[:maxTitleRunes]) + "..."
}
