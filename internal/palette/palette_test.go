package palette

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBlocks(t *testing.T, payload string) []map[string]json.RawMessage {
	t.Helper()
	var blocks []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(payload), &blocks))
	return blocks
}

func TestGenerateFromDescription(t *testing.T) {
	assert.Equal(t, "Ocean Breeze", GenerateFromDescription("A landing about the deep blue sea").Name)
	assert.Equal(t, "Forest Calm", GenerateFromDescription("Эко продукты и природа").Name)
	assert.Equal(t, "Midnight", GenerateFromDescription("dark themed portfolio").Name)
	assert.Equal(t, "Minimal Mono", GenerateFromDescription("accounting services").Name,
		"unmatched descriptions get the neutral scheme")

	// Same input, same output.
	assert.Equal(t, GenerateFromDescription("sunset yoga"), GenerateFromDescription("sunset yoga"))
}

func TestApplyRecolorsByKind(t *testing.T) {
	scheme := Scheme{
		Text:       "#111111",
		Accent:     "#ff0000",
		Background: "#ffffff",
		Surface:    "#eeeeee",
	}

	blocks := decodeBlocks(t, `[
		{"id": "t", "type": "text", "content": "hi", "style": {"fontSize": "16px"}},
		{"id": "b", "type": "button", "text": "go"},
		{"id": "c", "type": "container", "children": [
			{"id": "nested", "type": "text", "content": "deep"}
		]}
	]`)

	out, err := json.Marshal(Apply(blocks, scheme))
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"id": "t", "type": "text", "content": "hi",
		 "style": {"fontSize": "16px", "color": "#111111"}},
		{"id": "b", "type": "button", "text": "go",
		 "style": {"backgroundColor": "#ff0000", "color": "#ffffff"}},
		{"id": "c", "type": "container",
		 "style": {"backgroundColor": "#eeeeee"},
		 "children": [
			{"id": "nested", "type": "text", "content": "deep", "style": {"color": "#111111"}}
		 ]}
	]`, string(out))
}

func TestApplySurfaceFallsBackToBackground(t *testing.T) {
	scheme := Scheme{Text: "#111111", Accent: "#ff0000", Background: "#fafafa"}

	blocks := decodeBlocks(t, `[{"id": "c", "type": "container"}]`)
	out := Apply(blocks, scheme)

	var style map[string]string
	require.NoError(t, json.Unmarshal(out[0]["style"], &style))
	assert.Equal(t, "#fafafa", style["backgroundColor"])
}

func TestApplyLeavesUnknownKindsAlone(t *testing.T) {
	scheme := Scheme{Text: "#111111", Accent: "#ff0000", Background: "#ffffff"}

	blocks := decodeBlocks(t, `[
		{"id": "v", "type": "video", "url": "demo.mp4", "style": {"width": "100%"}}
	]`)
	out := Apply(blocks, scheme)

	var style map[string]string
	require.NoError(t, json.Unmarshal(out[0]["style"], &style))
	assert.Equal(t, map[string]string{"width": "100%"}, style,
		"unknown block kinds keep their style untouched")
}

func TestPresetSchemesAreCopied(t *testing.T) {
	first := PresetSchemes()
	first[0].Primary = "#changed"
	assert.NotEqual(t, first[0].Primary, PresetSchemes()[0].Primary)
}
