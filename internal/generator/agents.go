package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"story-server/internal/ai"
	"story-server/internal/model"
	"story-server/internal/utils"

	"go.uber.org/zap"
)

// Agents инкапсулирует все вызовы модели с параметрами, подобранными
// под конкретный этап пайплайна. Творческие этапы (скетч, черновик)
// работают с высокой температурой, экстракция - с низкой и в JSON-режиме.
type Agents struct {
	client       ai.Client
	extractModel string // Отдельная модель для JSON-экстракции
	logger       *zap.Logger
}

// NewAgents создает набор агентов поверх AI клиента.
func NewAgents(client ai.Client, extractModel string, logger *zap.Logger) *Agents {
	return &Agents{
		client:       client,
		extractModel: extractModel,
		logger:       logger.Named("Agents"),
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// Sketch генерирует скетч новой истории.
func (a *Agents) Sketch(ctx context.Context, genres []string, tone string, names []string) (string, error) {
	prompt := BuildSketchboardPrompt(genres, tone, names)
	text, _, err := a.client.GenerateText(ctx, prompt, ai.GenerationParams{
		Agent:       "sketch",
		Temperature: floatPtr(2.0),
		TopK:        intPtr(30),
		TopP:        floatPtr(0.9),
	})
	return text, err
}

// ContinuationSketch генерирует скетч следующей страницы по накопленному контексту.
func (a *Agents) ContinuationSketch(ctx context.Context, genre, tone, previousContext, characterContext string, names []string) (string, error) {
	prompt := BuildContinuationSketchboardPrompt(genre, tone, previousContext, characterContext, names)
	text, _, err := a.client.GenerateText(ctx, prompt, ai.GenerationParams{
		Agent:       "continuation_sketch",
		Temperature: floatPtr(0.9),
		TopK:        intPtr(35),
		NumCtx:      intPtr(10000),
	})
	return text, err
}

// Draft генерирует черновик первой страницы из скетча.
func (a *Agents) Draft(ctx context.Context, sketch string) (string, error) {
	prompt := BuildDraftPrompt(sketch)
	text, _, err := a.client.GenerateText(ctx, prompt, ai.GenerationParams{
		Agent:       "draft",
		Temperature: floatPtr(1.5),
		TopK:        intPtr(40),
		TopP:        floatPtr(0.8),
		NumCtx:      intPtr(10000),
	})
	return text, err
}

// ContinuationDraft генерирует черновик продолжения с учетом правил непрерывности.
func (a *Agents) ContinuationDraft(ctx context.Context, sketch, previousContent, rules string) (string, error) {
	prompt := BuildContinuationDraftPrompt(previousContent, sketch, rules)
	text, _, err := a.client.GenerateText(ctx, prompt, ai.GenerationParams{
		Agent:       "continuation_draft",
		Temperature: floatPtr(1.5),
		TopK:        intPtr(50),
		TopP:        floatPtr(0.95),
		NumCtx:      intPtr(10000),
	})
	return text, err
}

// Critique генерирует редакторскую критику черновика.
func (a *Agents) Critique(ctx context.Context, draft, sketch string) (string, error) {
	prompt := BuildCritiquePrompt(draft, sketch)
	text, _, err := a.client.GenerateText(ctx, prompt, ai.GenerationParams{
		Agent:       "critique",
		Temperature: floatPtr(0.7),
		TopK:        intPtr(30),
	})
	return text, err
}

// ContinuationCritique генерирует критику черновика продолжения.
func (a *Agents) ContinuationCritique(ctx context.Context, draft, previousContent string) (string, error) {
	prompt := BuildContinuationCritiquePrompt(draft, previousContent)
	text, _, err := a.client.GenerateText(ctx, prompt, ai.GenerationParams{
		Agent:       "continuation_critique",
		Temperature: floatPtr(0.7),
		TopK:        intPtr(30),
	})
	return text, err
}

// Final генерирует финальную версию первой страницы.
// Возвращает текст и промт, которым он был получен.
func (a *Agents) Final(ctx context.Context, sketch, draft, critique string) (string, string, error) {
	prompt := BuildFinalStoryPrompt(sketch, draft, critique)
	text, _, err := a.client.GenerateText(ctx, prompt, ai.GenerationParams{
		Agent:       "final",
		Temperature: floatPtr(0.9),
		TopK:        intPtr(30),
		TopP:        floatPtr(0.8),
		NumCtx:      intPtr(10000),
	})
	return text, prompt, err
}

// ContinuationFinal генерирует финальную версию продолжения.
func (a *Agents) ContinuationFinal(ctx context.Context, characterContext, draft, critique string) (string, string, error) {
	prompt := BuildContinuationFinalPrompt(characterContext, draft, critique)
	text, _, err := a.client.GenerateText(ctx, prompt, ai.GenerationParams{
		Agent:       "continuation_final",
		Temperature: floatPtr(0.8),
		TopK:        intPtr(30),
		TopP:        floatPtr(0.8),
		NumCtx:      intPtr(10000),
	})
	return text, prompt, err
}

// Title генерирует заголовок по финальному тексту.
func (a *Agents) Title(ctx context.Context, story string) (string, error) {
	prompt := BuildTitlePrompt(story)
	text, _, err := a.client.GenerateText(ctx, prompt, ai.GenerationParams{
		Agent:       "title",
		Temperature: floatPtr(2.0),
		TopK:        intPtr(40),
	})
	if err != nil {
		return "", err
	}
	return strings.Trim(text, `"`), nil
}

// ImagePrompt генерирует описание обложки по скетчу и финальному тексту.
func (a *Agents) ImagePrompt(ctx context.Context, sketch, story string) (string, error) {
	prompt := BuildImagePrompt(sketch, story)
	text, _, err := a.client.GenerateText(ctx, prompt, ai.GenerationParams{
		Agent:       "image_prompt",
		Temperature: floatPtr(0.7),
		TopK:        intPtr(35),
		TopP:        floatPtr(0.7),
	})
	return text, err
}

// ExtractCharacters извлекает полный ростер персонажей из скетча.
func (a *Agents) ExtractCharacters(ctx context.Context, sketch string) (*model.CharacterData, error) {
	prompt := BuildExtractCharactersPrompt(sketch)
	raw, _, err := a.client.GenerateJSON(ctx, prompt, ai.GenerationParams{
		Agent:       "extract_characters",
		Model:       a.extractModel,
		Temperature: floatPtr(0.1),
	})
	if err != nil {
		return nil, err
	}

	var data model.CharacterData
	if err := a.parseJSON(raw, &data); err != nil {
		return nil, fmt.Errorf("ошибка парсинга ростера персонажей: %w", err)
	}
	return &data, nil
}

// ExtractNewCharacters извлекает только новых персонажей из скетча продолжения.
func (a *Agents) ExtractNewCharacters(ctx context.Context, sketch string) ([]model.ExtractedCharacter, error) {
	prompt := BuildExtractNewCharactersPrompt(sketch)
	raw, _, err := a.client.GenerateJSON(ctx, prompt, ai.GenerationParams{
		Agent:       "extract_new_characters",
		Model:       a.extractModel,
		Temperature: floatPtr(0.3),
	})
	if err != nil {
		return nil, err
	}

	var data model.NewCharacterData
	if err := a.parseJSON(raw, &data); err != nil {
		return nil, fmt.Errorf("ошибка парсинга новых персонажей: %w", err)
	}
	return data.NewCharacters, nil
}

// ExtractMetadata извлекает метаданные истории из (скетч, финальный текст).
func (a *Agents) ExtractMetadata(ctx context.Context, sketch, story string) (*model.StoryMetadata, error) {
	prompt := BuildExtractMetadataPrompt(sketch, story)
	raw, _, err := a.client.GenerateJSON(ctx, prompt, ai.GenerationParams{
		Agent:       "extract_metadata",
		Model:       a.extractModel,
		Temperature: floatPtr(0.2),
		TopP:        floatPtr(1.0),
	})
	if err != nil {
		return nil, err
	}

	var meta model.StoryMetadata
	if err := a.parseJSON(raw, &meta); err != nil {
		return nil, fmt.Errorf("ошибка парсинга метаданных: %w", err)
	}
	return &meta, nil
}

// ExtractEvents извлекает ключевые события из контента страницы.
func (a *Agents) ExtractEvents(ctx context.Context, content string) ([]model.ExtractedEvent, error) {
	prompt := BuildExtractEventsPrompt(content)
	raw, _, err := a.client.GenerateJSON(ctx, prompt, ai.GenerationParams{
		Agent:       "extract_events",
		Model:       a.extractModel,
		Temperature: floatPtr(0.2),
		TopP:        floatPtr(0.7),
	})
	if err != nil {
		return nil, err
	}

	var events []model.ExtractedEvent
	if err := a.parseJSON(raw, &events); err != nil {
		return nil, fmt.Errorf("ошибка парсинга событий: %w", err)
	}
	return events, nil
}

// parseJSON вырезает JSON из сырого ответа модели и декодирует его.
func (a *Agents) parseJSON(raw string, target any) error {
	cleaned, err := utils.ExtractJSON(raw)
	if err != nil {
		a.logger.Warn("Ответ модели не содержит валидного JSON", zap.String("rawPrefix", truncate(raw, 200)))
		return err
	}
	return json.Unmarshal([]byte(cleaned), target)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
