package palette

import "strings"

// presets are the palettes every installation starts with.
var presets = []Scheme{
	{
		Name:       "Ocean Breeze",
		Primary:    "#0077b6",
		Secondary:  "#00b4d8",
		Background: "#f0f8ff",
		Text:       "#03045e",
		Accent:     "#0096c7",
		Surface:    "#caf0f8",
		Border:     "#90e0ef",
	},
	{
		Name:       "Forest Calm",
		Primary:    "#2d6a4f",
		Secondary:  "#52b788",
		Background: "#f6fff8",
		Text:       "#1b4332",
		Accent:     "#40916c",
		Surface:    "#d8f3dc",
		Border:     "#b7e4c7",
	},
	{
		Name:       "Sunset Glow",
		Primary:    "#e85d04",
		Secondary:  "#f48c06",
		Background: "#fff8f0",
		Text:       "#370617",
		Accent:     "#dc2f02",
		Surface:    "#ffedd8",
		Border:     "#ffba08",
	},
	{
		Name:       "Midnight",
		Primary:    "#3a86ff",
		Secondary:  "#8338ec",
		Background: "#0d1b2a",
		Text:       "#e0e1dd",
		Accent:     "#ff006e",
		Surface:    "#1b263b",
		Border:     "#415a77",
	},
	{
		Name:       "Minimal Mono",
		Primary:    "#212529",
		Secondary:  "#495057",
		Background: "#ffffff",
		Text:       "#212529",
		Accent:     "#343a40",
		Surface:    "#f8f9fa",
		Border:     "#dee2e6",
	},
	{
		Name:       "Rose Quartz",
		Primary:    "#d81159",
		Secondary:  "#ff70a6",
		Background: "#fff0f5",
		Text:       "#590d22",
		Accent:     "#ff4d6d",
		Surface:    "#ffe5ec",
		Border:     "#ffb3c6",
	},
}

// PresetSchemes returns the built-in palettes.
func PresetSchemes() []Scheme {
	out := make([]Scheme, len(presets))
	copy(out, presets)
	return out
}

// keywordSchemes maps description keywords to a matching preset. The
// first matching keyword wins; an unmatched description gets the neutral
// scheme. Both English and Russian keywords are recognized.
var keywordSchemes = []struct {
	keywords []string
	scheme   int
}{
	{[]string{"ocean", "sea", "water", "blue", "море", "океан", "вода", "синий"}, 0},
	{[]string{"forest", "nature", "green", "eco", "лес", "природа", "зеленый", "эко"}, 1},
	{[]string{"sunset", "warm", "orange", "fire", "закат", "теплый", "оранжевый", "огонь"}, 2},
	{[]string{"dark", "night", "space", "темный", "ночь", "космос"}, 3},
	{[]string{"minimal", "mono", "clean", "минимал", "чистый", "строгий"}, 4},
	{[]string{"rose", "pink", "beauty", "love", "розовый", "красота", "любовь"}, 5},
}

// GenerateFromDescription picks a palette for a free-text theme
// description. The match is deterministic so repeated requests with the
// same description agree.
func GenerateFromDescription(description string) Scheme {
	lowered := strings.ToLower(description)
	for _, entry := range keywordSchemes {
		for _, keyword := range entry.keywords {
			if strings.Contains(lowered, keyword) {
				return presets[entry.scheme]
			}
		}
	}
	return presets[4]
}
