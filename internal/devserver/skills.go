// ABOUTME: Canned skill and model catalog handlers for the development backend
// ABOUTME: Translation and coding echo their input; image skills return placeholder URLs

package devserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/2389/skillchat/internal/client"
)

var skillCatalog = []client.Skill{
	{Name: "translation", Description: "Translate text between languages"},
	{Name: "coding", Description: "Write and explain code"},
	{Name: "image-generation", Description: "Generate images from a prompt"},
	{Name: "image-editing", Description: "Edit an uploaded image"},
}

var chatModels = []client.ChatModel{
	{Name: "dev-general", IsExpert: false},
	{Name: "dev-expert", IsExpert: true},
}

var skillModels = []client.SkillModel{
	{SkillType: "translation", DisplayName: "Translation", FastModel: "dev-translate", ExpertModel: "dev-translate-pro"},
	{SkillType: "coding", DisplayName: "Coding", FastModel: "dev-code", ExpertModel: "dev-code-pro"},
	{SkillType: "image-generation", DisplayName: "Image generation", FastModel: "dev-image", ExpertModel: "dev-image"},
	{SkillType: "image-editing", DisplayName: "Image editing", FastModel: "dev-image", ExpertModel: "dev-image"},
}

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, skillCatalog)
}

func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, sk := range skillCatalog {
		if sk.Name == name {
			sk.Content = fmt.Sprintf("# %s\n\n%s.\n", sk.Name, sk.Description)
			s.sendJSON(w, http.StatusOK, sk)
			return
		}
	}
	s.sendJSONError(w, http.StatusNotFound, "Skill not found")
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req client.TranslationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		s.sendJSONError(w, http.StatusBadRequest, "text is required")
		return
	}
	target := req.TargetLang
	if target == "" {
		target = "en"
	}
	s.sendJSON(w, http.StatusOK, client.TranslationResponse{
		Text:       "[" + target + "] " + req.Text,
		SourceLang: req.SourceLang,
		TargetLang: target,
		ModelName:  modelOr(req.Model, "dev-translate"),
	})
}

func (s *Server) handleCoding(w http.ResponseWriter, r *http.Request) {
	var req client.CodingRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		s.sendJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	s.sendJSON(w, http.StatusOK, client.CodingResponse{
		Content:         "```go\n// " + strings.ReplaceAll(req.Prompt, "\n", " ") + "\n```\n",
		ThinkingContent: "Sketching a solution.",
		ModelName:       modelOr(req.Model, "dev-code"),
	})
}

func (s *Server) handleImageGeneration(w http.ResponseWriter, r *http.Request) {
	var req client.ImageGenerationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		s.sendJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	n := req.N
	if n < 1 {
		n = 1
	}
	images := make([]string, n)
	for i := range images {
		images[i] = "https://images.invalid/generated/" + uuid.New().String() + ".png"
	}
	s.sendJSON(w, http.StatusOK, client.ImagesResponse{Images: images})
}

func (s *Server) handleImageEditing(w http.ResponseWriter, r *http.Request) {
	var req client.ImageEditingRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.ImagePath == "" || req.Prompt == "" {
		s.sendJSONError(w, http.StatusBadRequest, "image_path and prompt are required")
		return
	}
	s.sendJSON(w, http.StatusOK, client.ImagesResponse{
		Images: []string{"https://images.invalid/edited/" + uuid.New().String() + ".png"},
	})
}

func (s *Server) handleChatModels(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, chatModels)
}

func (s *Server) handleSkillModels(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, skillModels)
}

func modelOr(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}
