// ABOUTME: Wire types for the backend REST API
// ABOUTME: Timestamps accept both RFC 3339 and the backend's zone-less ISO format

package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// zonelessLayout is how the backend writes naive datetimes.
const zonelessLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a time that tolerates a missing zone; such times are UTC.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts RFC 3339 or zone-less ISO 8601 strings and null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(zonelessLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON writes RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// User is the authenticated account.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Conversation is one chat thread.
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	ModelName string    `json:"model_name,omitempty"`
	IsPinned  bool      `json:"is_pinned"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// ConversationCreate is the body of POST /conversations.
type ConversationCreate struct {
	Title     string `json:"title"`
	ModelName string `json:"model_name,omitempty"`
}

// ConversationUpdate is the body of PUT /conversations/{id}. Nil fields are left unchanged.
type ConversationUpdate struct {
	Title     *string `json:"title,omitempty"`
	IsPinned  *bool   `json:"is_pinned,omitempty"`
	ModelName *string `json:"model_name,omitempty"`
}

// HistoryMessage is a persisted message as the backend returns it.
type HistoryMessage struct {
	ID             int64            `json:"id"`
	ConversationID int64            `json:"conversation_id"`
	Role           string           `json:"role"`
	Content        string           `json:"content"`
	CreatedAt      Timestamp        `json:"created_at"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
}

// MessageMetadata carries the extra fields stored with a message.
type MessageMetadata struct {
	ThinkingContent string   `json:"thinking_content,omitempty"`
	Model           string   `json:"model,omitempty"`
	Images          []string `json:"images,omitempty"`
}

// HistoryResponse is returned by GET /chat/conversations/{id}/history.
type HistoryResponse struct {
	Messages []HistoryMessage `json:"messages"`
	Total    int              `json:"total"`
}

// TranslationRequest is the body of POST /skills/translation.
type TranslationRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang,omitempty"`
	TargetLang string `json:"target_lang,omitempty"`
	Model      string `json:"model,omitempty"`
}

// TranslationResponse is the translated text.
type TranslationResponse struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang,omitempty"`
	TargetLang string `json:"target_lang"`
	ModelName  string `json:"model_name"`
}

// CodingRequest is the body of POST /skills/coding.
type CodingRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// CodingResponse is the generated code and optional reasoning.
type CodingResponse struct {
	Content          string `json:"content"`
	ThinkingContent  string `json:"thinking_content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
	ModelName        string `json:"model_name"`
}

// ImageGenerationRequest is the body of POST /skills/image-generation.
type ImageGenerationRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Size   string `json:"size,omitempty"`
	N      int    `json:"n,omitempty"`
}

// ImageEditingRequest is the body of POST /skills/image-editing.
type ImageEditingRequest struct {
	ImagePath string `json:"image_path"`
	Prompt    string `json:"prompt"`
	Model     string `json:"model,omitempty"`
	Size      string `json:"size,omitempty"`
}

// ImagesResponse lists generated or edited image URLs.
type ImagesResponse struct {
	Images []string `json:"images"`
}

// Skill describes a backend skill. Content is only set by GetSkill.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content,omitempty"`
}

// ChatModel is a model available for chat.
type ChatModel struct {
	Name     string `json:"name"`
	IsExpert bool   `json:"is_expert"`
}

// SkillModel names the fast and expert models behind a skill.
type SkillModel struct {
	SkillType   string `json:"skill_type"`
	DisplayName string `json:"display_name"`
	FastModel   string `json:"fast_model"`
	ExpertModel string `json:"expert_model"`
}
