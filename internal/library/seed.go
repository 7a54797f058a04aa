package library

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// systemBlocks is the catalog shipped with the product. Seeding is
// idempotent per block name, so new entries added here reach existing
// databases on the next start.
var systemBlocks = []BlockInput{
	{
		Name:        "Hero Section",
		Description: "Главный блок с заголовком и кнопкой",
		Category:    "hero",
		Tags:        []string{"hero", "header", "cta"},
		Blocks: json.RawMessage(`[
			{"id": "hero-text", "type": "text", "content": "Добро пожаловать!",
			 "style": {"fontSize": "48px", "fontWeight": "bold", "textAlign": "center", "color": "#212529", "margin": "40px 0 20px"}},
			{"id": "hero-button", "type": "button", "text": "Начать", "link": "#",
			 "style": {"padding": "12px 24px", "borderRadius": "8px", "backgroundColor": "#007bff", "color": "#ffffff", "margin": "20px auto", "display": "block"}}
		]`),
	},
	{
		Name:        "Features Grid",
		Description: "Сетка с преимуществами",
		Category:    "features",
		Tags:        []string{"features", "grid", "benefits"},
		Blocks: json.RawMessage(`[
			{"id": "features-container", "type": "container", "children": [
				{"id": "feature-1", "type": "text", "content": "Преимущество 1",
				 "style": {"fontSize": "20px", "fontWeight": "bold", "textAlign": "center"}},
				{"id": "feature-2", "type": "text", "content": "Преимущество 2",
				 "style": {"fontSize": "20px", "fontWeight": "bold", "textAlign": "center"}}
			], "style": {"padding": "40px", "backgroundColor": "#f8f9fa", "borderRadius": "8px"}}
		]`),
	},
	{
		Name:        "Text Block",
		Description: "Простой текстовый блок",
		Category:    "content",
		Tags:        []string{"text", "content"},
		Blocks: json.RawMessage(`[
			{"id": "text-block", "type": "text", "content": "Текст блока",
			 "style": {"fontSize": "16px", "lineHeight": "1.6", "color": "#212529", "margin": "20px 0"}}
		]`),
	},
	{
		Name:        "Image Block",
		Description: "Блок с изображением",
		Category:    "media",
		Tags:        []string{"image", "media"},
		Blocks: json.RawMessage(`[
			{"id": "image-block", "type": "image", "url": "https://via.placeholder.com/800x400",
			 "style": {"width": "100%", "maxWidth": "800px", "margin": "20px auto", "display": "block", "borderRadius": "8px"}}
		]`),
	},
	{
		Name:        "Call to Action",
		Description: "Блок призыва к действию",
		Category:    "cta",
		Tags:        []string{"cta", "button", "action"},
		Blocks: json.RawMessage(`[
			{"id": "cta-text", "type": "text", "content": "Готовы начать?",
			 "style": {"fontSize": "32px", "fontWeight": "bold", "textAlign": "center", "margin": "20px 0"}},
			{"id": "cta-button", "type": "button", "text": "Связаться с нами", "link": "#contact",
			 "style": {"padding": "14px 28px", "borderRadius": "8px", "backgroundColor": "#28a745", "color": "#ffffff", "margin": "20px auto", "display": "block", "fontSize": "18px"}}
		]`),
	},
	{
		Name:        "Header",
		Description: "Верхняя навигация",
		Category:    "header",
		Tags:        []string{"header", "navigation"},
		Blocks: json.RawMessage(`[
			{"id": "header-container", "type": "container", "children": [
				{"id": "header-title", "type": "text", "content": "Название сайта",
				 "style": {"fontSize": "20px", "fontWeight": "bold"}},
				{"id": "header-btn-1", "type": "button", "text": "Продукт", "link": "#product", "style": {"margin": "0 10px"}},
				{"id": "header-btn-2", "type": "button", "text": "Контакты", "link": "#contact", "style": {"margin": "0 10px"}}
			], "style": {"padding": "10px 20px", "backgroundColor": "#ffffff", "border": "1px solid #e9ecef"}}
		]`),
	},
	{
		Name:        "Footer",
		Description: "Нижний колонтитул",
		Category:    "footer",
		Tags:        []string{"footer", "links"},
		Blocks: json.RawMessage(`[
			{"id": "footer-container", "type": "container", "children": [
				{"id": "footer-text", "type": "text", "content": "© 2025 Компания",
				 "style": {"textAlign": "center", "color": "#6c757d"}}
			], "style": {"padding": "20px", "backgroundColor": "#f1f3f5"}}
		]`),
	},
	{
		Name:        "Gallery",
		Description: "Галерея изображений",
		Category:    "gallery",
		Tags:        []string{"gallery", "images"},
		Blocks: json.RawMessage(`[
			{"id": "gallery-container", "type": "container", "children": [
				{"id": "gallery-img-1", "type": "image", "url": "https://via.placeholder.com/300x200", "style": {"margin": "10px", "borderRadius": "6px"}},
				{"id": "gallery-img-2", "type": "image", "url": "https://via.placeholder.com/300x200", "style": {"margin": "10px", "borderRadius": "6px"}},
				{"id": "gallery-img-3", "type": "image", "url": "https://via.placeholder.com/300x200", "style": {"margin": "10px", "borderRadius": "6px"}}
			], "style": {"display": "flex", "justifyContent": "center", "flexWrap": "wrap", "padding": "20px"}}
		]`),
	},
	{
		Name:        "Video Hero",
		Description: "Видео с заголовком и кнопкой",
		Category:    "hero",
		Tags:        []string{"video", "hero"},
		Blocks: json.RawMessage(`[
			{"id": "video-block", "type": "video", "url": "https://www.w3schools.com/html/mov_bbb.mp4",
			 "style": {"width": "100%", "maxWidth": "800px", "display": "block", "margin": "0 auto", "borderRadius": "8px"}},
			{"id": "video-cta", "type": "button", "text": "Смотреть демо", "link": "#",
			 "style": {"display": "block", "margin": "20px auto"}}
		]`),
	},
	{
		Name:        "Pricing",
		Description: "Цены и тарифы",
		Category:    "pricing",
		Tags:        []string{"pricing", "plans"},
		Blocks: json.RawMessage(`[
			{"id": "pricing-container", "type": "container", "children": [
				{"id": "pricing-title", "type": "text", "content": "Тарифные планы",
				 "style": {"fontSize": "28px", "fontWeight": "bold", "textAlign": "center", "margin": "0 0 20px"}},
				{"id": "pricing-basic", "type": "text", "content": "Базовый — 0 ₽", "style": {"textAlign": "center", "margin": "10px 0"}},
				{"id": "pricing-pro", "type": "text", "content": "Pro — 990 ₽/мес", "style": {"textAlign": "center", "margin": "10px 0"}},
				{"id": "pricing-enterprise", "type": "text", "content": "Enterprise — по запросу", "style": {"textAlign": "center", "margin": "10px 0"}}
			], "style": {"padding": "40px", "backgroundColor": "#ffffff", "borderRadius": "8px", "border": "1px solid #e9ecef"}}
		]`),
	},
}

// SeedSystemBlocks inserts missing system blocks, keyed by name.
func (s *Service) SeedSystemBlocks(ctx context.Context) error {
	added := 0
	for _, input := range systemBlocks {
		var exists bool
		err := s.db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM library_blocks WHERE is_custom = FALSE AND name = $1)
		`, input.Name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check system block %q: %w", input.Name, err)
		}
		if exists {
			continue
		}
		if _, err := s.Create(ctx, input, false); err != nil {
			return fmt.Errorf("failed to seed system block %q: %w", input.Name, err)
		}
		added++
	}
	if added > 0 {
		log.Printf("[INFO] Seeded %d system blocks", added)
	}
	return nil
}
