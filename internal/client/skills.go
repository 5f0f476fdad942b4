// ABOUTME: Direct skill calls (translation, coding, image generation and editing)
// ABOUTME: Also lists skills and the models behind chat and each skill

package client

import (
	"context"
	"net/http"
)

// Translate translates text. An empty SourceLang asks the backend to detect it.
func (c *Client) Translate(ctx context.Context, req TranslationRequest) (*TranslationResponse, error) {
	var resp TranslationResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/skills/translation", body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Code asks the coding skill for code.
func (c *Client) Code(ctx context.Context, req CodingRequest) (*CodingResponse, error) {
	var resp CodingResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/skills/coding", body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateImage creates images from a prompt.
func (c *Client) GenerateImage(ctx context.Context, req ImageGenerationRequest) (*ImagesResponse, error) {
	var resp ImagesResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/skills/image-generation", body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EditImage edits an existing image.
func (c *Client) EditImage(ctx context.Context, req ImageEditingRequest) (*ImagesResponse, error) {
	var resp ImagesResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/skills/image-editing", body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSkills returns every skill's name and description.
func (c *Client) ListSkills(ctx context.Context) ([]Skill, error) {
	var skills []Skill
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/skills"}, &skills); err != nil {
		return nil, err
	}
	return skills, nil
}

// GetSkill returns one skill including its full content.
func (c *Client) GetSkill(ctx context.Context, name string) (*Skill, error) {
	var skill Skill
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/skills/" + name}, &skill); err != nil {
		return nil, err
	}
	return &skill, nil
}

// ChatModels lists the fast and expert chat models.
func (c *Client) ChatModels(ctx context.Context) ([]ChatModel, error) {
	var models []ChatModel
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/models/chat"}, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// SkillModels lists the models behind each skill.
func (c *Client) SkillModels(ctx context.Context) ([]SkillModel, error) {
	var models []SkillModel
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/models/skills"}, &models); err != nil {
		return nil, err
	}
	return models, nil
}
