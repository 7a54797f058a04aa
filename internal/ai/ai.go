// Package ai generates landing page drafts from a free-text prompt. A
// configured OpenAI-compatible model does the generation; without an API
// key a deterministic offline generator stands in, so the endpoint always
// answers.
package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/DENisProd/C0NSTRUCT0R/internal/config"
	"github.com/DENisProd/C0NSTRUCT0R/internal/palette"
)

const cacheTTL = 24 * time.Hour

// Landing is a generated page draft.
type Landing struct {
	Blocks  []json.RawMessage      `json:"blocks"`
	Palette palette.Scheme         `json:"palette"`
	Meta    map[string]interface{} `json:"meta"`
}

// Service answers generation requests, caching results per prompt.
type Service struct {
	client *openai.Client
	model  string
	redis  *redis.Client
}

// NewService builds the generator. client may be nil (no API key), redis
// may be nil (no caching).
func NewService(cfg *config.Config, rdb *redis.Client) *Service {
	var client *openai.Client
	if cfg.OpenAIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.OpenAIKey)
		if cfg.OpenAIBaseURL != "" {
			clientConfig.BaseURL = cfg.OpenAIBaseURL
		}
		client = openai.NewClientWithConfig(clientConfig)
	}
	return &Service{client: client, model: cfg.OpenAIModel, redis: rdb}
}

// GenerateLanding produces a page draft for the prompt. Model failures
// fall back to the offline generator rather than erroring out.
func (s *Service) GenerateLanding(ctx context.Context, prompt string, categories []string) (*Landing, error) {
	if cached := s.fromCache(ctx, prompt, categories); cached != nil {
		return cached, nil
	}

	var landing *Landing
	if s.client == nil {
		landing = mockLanding(prompt, categories)
	} else {
		generated, err := s.generateWithModel(ctx, prompt, categories)
		if err != nil {
			log.Printf("[WARN] Model generation failed, falling back to offline generator: %v", err)
			landing = mockLanding(prompt, categories)
		} else {
			landing = generated
		}
	}

	s.toCache(ctx, prompt, categories, landing)
	return landing, nil
}

func (s *Service) generateWithModel(ctx context.Context, prompt string, categories []string) (*Landing, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(prompt, categories)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	payload, err := extractJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Blocks  []json.RawMessage `json:"blocks"`
		Palette palette.Scheme    `json:"palette"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("model response is not the expected shape: %w", err)
	}
	if parsed.Blocks == nil || parsed.Palette.Primary == "" {
		return nil, fmt.Errorf("model response is missing blocks or palette")
	}

	return &Landing{
		Blocks:  normalizeBlocks(parsed.Blocks),
		Palette: parsed.Palette,
		Meta: map[string]interface{}{
			"model":      s.model,
			"provider":   "openai",
			"prompt":     prompt,
			"categories": emptyIfNil(categories),
		},
	}, nil
}

const systemPrompt = `You generate JSON configurations for a landing page builder. Always output exactly one JSON object, no surrounding text, no comments.

The root object is {"blocks": [...], "palette": {...}}.

Each block has required fields "id", "type" and "style". "type" is one of: text, image, button, video, container, grid. Text blocks carry "content", images and videos carry "url", buttons carry "text" and "link". Containers carry "children" (a list of blocks). Grids carry "settings" ({"columns", "rows", "gapX", "gapY"}) and "cells" (a list of {"block": Block | null}).

The palette object carries hex colors: "primary", "secondary", "background", "text", "accent", "surface", "border".

Start with a hero section, then two to four sections matching the prompt (features, pricing, testimonials, contact). When preferred categories are given, use them. Match the colors to the described theme.`

func buildUserPrompt(prompt string, categories []string) string {
	categoriesText := "none"
	if len(categories) > 0 {
		categoriesText = strings.Join(categories, ", ")
	}
	return fmt.Sprintf(
		"Generate a landing page structure.\nUser description: %q.\nPreferred block categories: %s.\nReturn strictly the JSON format from the system instruction.",
		prompt, categoriesText,
	)
}

// extractJSON pulls the JSON object out of a model reply that may be
// wrapped in markdown fences or prose.
func extractJSON(text string) (json.RawMessage, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in model response")
	}
	candidate := json.RawMessage(cleaned[start : end+1])

	if !json.Valid(candidate) {
		return nil, fmt.Errorf("model response is not valid JSON")
	}
	return candidate, nil
}

func (s *Service) cacheKey(prompt string, categories []string) string {
	sum := sha256.Sum256([]byte(prompt + "\x00" + strings.Join(categories, ",")))
	return "ai:landing:" + hex.EncodeToString(sum[:16])
}

func (s *Service) fromCache(ctx context.Context, prompt string, categories []string) *Landing {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(ctx, s.cacheKey(prompt, categories)).Bytes()
	if err != nil {
		return nil
	}
	var landing Landing
	if json.Unmarshal(data, &landing) != nil {
		return nil
	}
	return &landing
}

func (s *Service) toCache(ctx context.Context, prompt string, categories []string, landing *Landing) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(landing)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, s.cacheKey(prompt, categories), data, cacheTTL).Err(); err != nil {
		log.Printf("[WARN] Failed to cache generated landing: %v", err)
	}
}

// SupportedBlock describes one block type the builder understands.
type SupportedBlock struct {
	Type           string   `json:"type"`
	Description    string   `json:"description"`
	RequiredFields []string `json:"required_fields"`
}

// SupportedBlocks lists the block types generation may produce.
func SupportedBlocks() []SupportedBlock {
	return []SupportedBlock{
		{Type: "text", Description: "Text block", RequiredFields: []string{"id", "type", "content"}},
		{Type: "image", Description: "Image block", RequiredFields: []string{"id", "type", "url"}},
		{Type: "button", Description: "Button", RequiredFields: []string{"id", "type", "text"}},
		{Type: "video", Description: "Video block", RequiredFields: []string{"id", "type", "url"}},
		{Type: "container", Description: "Container for other blocks", RequiredFields: []string{"id", "type", "children"}},
		{Type: "grid", Description: "Block grid", RequiredFields: []string{"id", "type", "settings", "cells"}},
	}
}

func emptyIfNil(categories []string) []string {
	if categories == nil {
		return []string{}
	}
	return categories
}
