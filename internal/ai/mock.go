package ai

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/DENisProd/C0NSTRUCT0R/internal/palette"
)

// blockTemplates are the building material of the offline generator. Each
// template is instantiated with a fresh id per generated page.
var blockTemplates = []string{
	`{"type": "text", "content": "Добро пожаловать!",
	  "style": {"fontSize": "48px", "fontWeight": "bold", "textAlign": "center", "margin": "40px 0 20px"}}`,
	`{"type": "text", "content": "Мы делаем лучший продукт на рынке.",
	  "style": {"fontSize": "18px", "textAlign": "center", "color": "#555555"}}`,
	`{"type": "button", "text": "Начать", "link": "#",
	  "style": {"padding": "12px 24px", "borderRadius": "8px", "display": "block", "margin": "20px auto"}}`,
	`{"type": "image", "url": "https://via.placeholder.com/800x400",
	  "style": {"width": "100%", "maxWidth": "800px", "margin": "20px auto", "display": "block", "borderRadius": "8px"}}`,
	`{"type": "container", "children": [
		{"id": "feature-a", "type": "text", "content": "Быстро", "style": {"fontWeight": "bold", "textAlign": "center"}},
		{"id": "feature-b", "type": "text", "content": "Надежно", "style": {"fontWeight": "bold", "textAlign": "center"}},
		{"id": "feature-c", "type": "text", "content": "Удобно", "style": {"fontWeight": "bold", "textAlign": "center"}}
	  ], "style": {"padding": "40px", "borderRadius": "8px"}}`,
	`{"type": "video", "url": "https://www.w3schools.com/html/mov_bbb.mp4",
	  "style": {"width": "100%", "maxWidth": "800px", "display": "block", "margin": "0 auto"}}`,
	`{"type": "container", "children": [
		{"id": "contact-title", "type": "text", "content": "Свяжитесь с нами", "style": {"fontSize": "28px", "fontWeight": "bold", "textAlign": "center"}},
		{"id": "contact-btn", "type": "button", "text": "Написать", "link": "mailto:info@example.com", "style": {"display": "block", "margin": "20px auto"}}
	  ], "style": {"padding": "30px", "borderRadius": "8px"}}`,
}

// mockLanding builds a page draft without any model. The prompt seeds the
// selection, so the same prompt always yields the same page.
func mockLanding(prompt string, categories []string) *Landing {
	seed := fnv.New64a()
	seed.Write([]byte(prompt))
	rng := rand.New(rand.NewSource(int64(seed.Sum64())))

	count := 3 + rng.Intn(3)
	if count > len(blockTemplates) {
		count = len(blockTemplates)
	}
	order := rng.Perm(len(blockTemplates))[:count]

	blocks := make([]json.RawMessage, 0, count)
	for i, templateIdx := range order {
		var block map[string]json.RawMessage
		if err := json.Unmarshal([]byte(blockTemplates[templateIdx]), &block); err != nil {
			continue
		}
		var kind string
		json.Unmarshal(block["type"], &kind)
		block["id"] = json.RawMessage(fmt.Sprintf("%q", fmt.Sprintf("%s-%d", kind, i+1)))
		data, err := json.Marshal(block)
		if err != nil {
			continue
		}
		blocks = append(blocks, data)
	}

	scheme := palette.GenerateFromDescription(prompt)

	return &Landing{
		Blocks:  normalizeBlocks(blocks),
		Palette: scheme,
		Meta: map[string]interface{}{
			"model":        "mock-llm-v1.0",
			"provider":     "mock",
			"prompt":       prompt,
			"categories":   emptyIfNil(categories),
			"blocks_count": len(blocks),
		},
	}
}

// normalizeBlocks guarantees every block and nested child carries a style
// object, which the editor expects.
func normalizeBlocks(blocks []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(blocks))
	for _, raw := range blocks {
		out = append(out, normalizeBlock(raw))
	}
	return out
}

func normalizeBlock(raw json.RawMessage) json.RawMessage {
	var block map[string]json.RawMessage
	if err := json.Unmarshal(raw, &block); err != nil {
		return raw
	}

	var style map[string]json.RawMessage
	if json.Unmarshal(block["style"], &style) != nil || style == nil {
		block["style"] = json.RawMessage(`{}`)
	}

	var children []json.RawMessage
	if json.Unmarshal(block["children"], &children) == nil && children != nil {
		if data, err := json.Marshal(normalizeBlocks(children)); err == nil {
			block["children"] = data
		}
	}

	data, err := json.Marshal(block)
	if err != nil {
		return raw
	}
	return data
}
