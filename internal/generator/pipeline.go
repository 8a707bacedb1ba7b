package generator

import (
	"context"
	"fmt"
	"strings"

	"story-server/internal/ai"
	"story-server/internal/config"
	"story-server/internal/model"

	"go.uber.org/zap"
)

// NewStoryResult - результат пайплайна новой истории.
// Metadata и Characters могут быть nil/пустыми: экстракция best-effort.
type NewStoryResult struct {
	Title       string
	Genres      []string
	Tone        string
	Content     string
	Sketch      string
	Critique    string
	ImagePrompt string
	SeedPrompt  string
	Metadata    *model.StoryMetadata
	Characters  *model.CharacterData
}

// ContinuationResult - результат пайплайна продолжения.
type ContinuationResult struct {
	Content          string
	Sketch           string
	Critique         string
	GenerationPrompt string
	Metadata         *model.StoryMetadata
	NewCharacters    []model.ExtractedCharacter
	ContextUpdates   *ContextChanges
}

// Pipeline - многоэтапная генерация страницы: sketch -> draft -> critique -> final,
// с воротами семантической близости на этапах draft и final продолжения.
type Pipeline struct {
	agents    *Agents
	scorer    ai.SimilarityScorer
	updater   *StateUpdater
	assembler *ContextAssembler
	names     NameProvider
	logger    *zap.Logger

	draftGate        ai.SimilarityGate
	draftMaxAttempts int
	finalGate        ai.SimilarityGate
	finalMaxRetries  int
	modelName        string
}

// NewPipeline собирает пайплайн из компонентов и порогов из конфигурации.
func NewPipeline(
	cfg *config.Config,
	agents *Agents,
	scorer ai.SimilarityScorer,
	updater *StateUpdater,
	assembler *ContextAssembler,
	names NameProvider,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		agents:           agents,
		scorer:           scorer,
		updater:          updater,
		assembler:        assembler,
		names:            names,
		logger:           logger.Named("Pipeline"),
		draftGate:        ai.SimilarityGate{Lower: cfg.DraftSimilarityLower, Upper: cfg.DraftSimilarityUpper},
		draftMaxAttempts: cfg.DraftMaxAttempts,
		finalGate:        ai.SimilarityGate{Lower: cfg.FinalSimilarityLower, Upper: cfg.FinalSimilarityUpper},
		finalMaxRetries:  cfg.FinalMaxRetries,
		modelName:        cfg.AIModel,
	}
}

// GenerateNewStory прогоняет полный пайплайн новой истории.
// Творческие этапы фатальны при ошибке; экстракция, заголовок и промт
// обложки деградируют до пустых значений.
func (p *Pipeline) GenerateNewStory(ctx context.Context) (*NewStoryResult, error) {
	genres := RandomGenres()
	tone := RandomTone()
	names := p.names.FetchNames(ctx, 5)

	sketch, err := p.agents.Sketch(ctx, genres, tone, names)
	if err != nil {
		return nil, fmt.Errorf("этап sketch: %w", err)
	}
	p.logger.Debug("Скетч сгенерирован", zap.Strings("genres", genres), zap.String("tone", tone))

	characters, err := p.agents.ExtractCharacters(ctx, sketch)
	if err != nil {
		p.logger.Warn("Экстракция ростера не удалась, продолжаем с пустым", zap.Error(err))
		characters = &model.CharacterData{}
	}

	draft, err := p.agents.Draft(ctx, sketch)
	if err != nil {
		return nil, fmt.Errorf("этап draft: %w", err)
	}

	critique, err := p.agents.Critique(ctx, draft, sketch)
	if err != nil {
		return nil, fmt.Errorf("этап critique: %w", err)
	}

	final, seedPrompt, err := p.agents.Final(ctx, sketch, draft, critique)
	if err != nil {
		return nil, fmt.Errorf("этап final: %w", err)
	}

	title, err := p.agents.Title(ctx, final)
	if err != nil || strings.TrimSpace(title) == "" {
		title = fallbackTitle(final)
		p.logger.Warn("Заголовок не сгенерирован, используется fallback", zap.String("title", title))
	}

	metadata, err := p.agents.ExtractMetadata(ctx, sketch, final)
	if err != nil {
		p.logger.Warn("Экстракция метаданных не удалась", zap.Error(err))
		metadata = nil
	}

	imagePrompt, err := p.agents.ImagePrompt(ctx, sketch, final)
	if err != nil {
		p.logger.Warn("Промт обложки не сгенерирован", zap.Error(err))
		imagePrompt = ""
	}

	return &NewStoryResult{
		Title:       title,
		Genres:      genres,
		Tone:        tone,
		Content:     final,
		Sketch:      sketch,
		Critique:    critique,
		ImagePrompt: imagePrompt,
		SeedPrompt:  seedPrompt,
		Metadata:    metadata,
		Characters:  characters,
	}, nil
}

// fallbackTitle берет первое предложение из первых 100 символов текста.
func fallbackTitle(content string) string {
	head := content
	if len(head) > 100 {
		head = head[:100]
	}
	if idx := strings.Index(head, "."); idx > 0 {
		head = head[:idx]
	}
	return strings.TrimSpace(head)
}

// GenerateContinuation прогоняет пайплайн следующей страницы.
// Черновик принимается только при близости к прошлой странице строго внутри
// draftGate; после draftMaxAttempts попыток берется лучший из виденных.
// Финал ограничен finalMaxRetries повторами и всегда возвращает последнюю попытку.
func (p *Pipeline) GenerateContinuation(ctx context.Context, story *model.Story, lastPage *model.StoryPage) (*ContinuationResult, error) {
	nextPageNumber := lastPage.PageNumber + 1

	bundle := p.assembler.Load(ctx, story.StoryID, lastPage.PageNumber)
	richContext := bundle.Render()

	genre := ""
	if story.Genre != nil {
		genre = *story.Genre
	}
	tone := ""
	if story.Tone != nil {
		tone = *story.Tone
	}

	names := p.names.FetchNames(ctx, 2)

	sketch, err := p.agents.ContinuationSketch(ctx, genre, tone, lastPage.Content, richContext, names)
	if err != nil {
		return nil, fmt.Errorf("этап continuation sketch: %w", err)
	}

	newCharacters, err := p.agents.ExtractNewCharacters(ctx, sketch)
	if err != nil {
		p.logger.Warn("Экстракция новых персонажей не удалась, продолжаем с пустым списком", zap.Error(err))
		newCharacters = nil
	}

	p.updater.UpdateCharacterProgression(ctx, story.StoryID, sketch)

	// Новые персонажи попадают в ростер ДО сохранения связей,
	// иначе их идентификаторы не зарезолвятся по имени.
	if len(newCharacters) > 0 {
		if err := p.updater.SaveNewCharacters(ctx, story.StoryID, newCharacters); err != nil {
			p.logger.Error("Не удалось сохранить новых персонажей", zap.Error(err))
		} else if err := p.updater.SaveNewCharacterRelationships(ctx, story.StoryID, newCharacters); err != nil {
			p.logger.Error("Не удалось сохранить связи новых персонажей", zap.Error(err))
		}
	}

	rules := p.updater.LoadContinuityRules(ctx, story.StoryID)
	rulesText := FormatContinuityRules(rules)

	draft, err := p.generateDraftWithGate(ctx, sketch, lastPage.Content, rulesText)
	if err != nil {
		return nil, err
	}

	critique, err := p.agents.ContinuationCritique(ctx, draft, lastPage.Content)
	if err != nil {
		return nil, fmt.Errorf("этап continuation critique: %w", err)
	}

	if err := p.updater.SaveCritique(ctx, story.StoryID, nextPageNumber, "continuity", critique, nil, 2); err != nil {
		p.logger.Error("Не удалось сохранить критику", zap.Error(err))
	}

	final, generationPrompt, err := p.generateFinalWithGate(ctx, richContext, draft, critique)
	if err != nil {
		return nil, err
	}

	metadata, err := p.agents.ExtractMetadata(ctx, sketch, final)
	if err != nil {
		p.logger.Warn("Экстракция метаданных продолжения не удалась", zap.Error(err))
		metadata = nil
	}

	updateResults := p.updater.UpdateAfterPage(ctx, story.StoryID, nextPageNumber, final, sketch)
	p.logger.Info("Состояние истории обновлено",
		zap.String("storyID", story.StoryID.String()),
		zap.Int("pageNumber", nextPageNumber),
		zap.Bool("contextSaved", updateResults.ContextSaved),
		zap.Bool("eventsSaved", updateResults.EventsSaved),
		zap.Bool("charactersUpdated", updateResults.CharactersUpdated))

	contextUpdates := p.updater.GetContextChanges(ctx, story.StoryID, nextPageNumber)

	return &ContinuationResult{
		Content:          final,
		Sketch:           sketch,
		Critique:         critique,
		GenerationPrompt: generationPrompt,
		Metadata:         metadata,
		NewCharacters:    newCharacters,
		ContextUpdates:   contextUpdates,
	}, nil
}

// generateDraftWithGate генерирует черновик, пока близость к прошлой странице
// не попадет строго внутрь draftGate. Ретраи ограничены draftMaxAttempts:
// при исчерпании принимается черновик с минимальным расстоянием до интервала.
// Недоступность оракула близости деградирует до приемки текущего черновика.
func (p *Pipeline) generateDraftWithGate(ctx context.Context, sketch, previousContent, rules string) (string, error) {
	var bestDraft string
	bestDistance := -1.0

	for attempt := 1; attempt <= p.draftMaxAttempts; attempt++ {
		draft, err := p.agents.ContinuationDraft(ctx, sketch, previousContent, rules)
		if err != nil {
			return "", fmt.Errorf("этап continuation draft (попытка %d): %w", attempt, err)
		}

		score, err := p.scorer.Score(ctx, previousContent, draft)
		if err != nil {
			p.logger.Warn("Оракул близости недоступен, черновик принят без проверки", zap.Error(err))
			return draft, nil
		}

		if p.draftGate.Accepts(score) {
			p.logger.Debug("Черновик принят", zap.Int("attempt", attempt), zap.Float64("score", score))
			return draft, nil
		}

		distance := gateDistance(p.draftGate, score)
		if bestDistance < 0 || distance < bestDistance {
			bestDistance = distance
			bestDraft = draft
		}

		p.logger.Info("Черновик вне допустимого интервала близости, повтор",
			zap.Int("attempt", attempt),
			zap.Float64("score", score),
			zap.Float64("lower", p.draftGate.Lower),
			zap.Float64("upper", p.draftGate.Upper))
	}

	p.logger.Warn("Лимит попыток черновика исчерпан, принят ближайший к интервалу",
		zap.Int("maxAttempts", p.draftMaxAttempts), zap.Float64("bestDistance", bestDistance))
	return bestDraft, nil
}

// gateDistance - расстояние оценки до открытого интервала ворот.
func gateDistance(gate ai.SimilarityGate, score float64) float64 {
	if score <= gate.Lower {
		return gate.Lower - score
	}
	if score >= gate.Upper {
		return score - gate.Upper
	}
	return 0
}

// generateFinalWithGate генерирует финальную версию не более
// finalMaxRetries+1 раз и всегда возвращает последнюю попытку,
// даже если ни одна не попала в интервал.
func (p *Pipeline) generateFinalWithGate(ctx context.Context, characterContext, draft, critique string) (string, string, error) {
	var final, generationPrompt string

	for attempt := 0; attempt <= p.finalMaxRetries; attempt++ {
		var err error
		final, generationPrompt, err = p.agents.ContinuationFinal(ctx, characterContext, draft, critique)
		if err != nil {
			return "", "", fmt.Errorf("этап continuation final (попытка %d): %w", attempt+1, err)
		}

		score, err := p.scorer.Score(ctx, draft, final)
		if err != nil {
			p.logger.Warn("Оракул близости недоступен, финал принят без проверки", zap.Error(err))
			return final, generationPrompt, nil
		}

		if p.finalGate.Accepts(score) {
			p.logger.Debug("Финал принят", zap.Int("attempt", attempt+1), zap.Float64("score", score))
			return final, generationPrompt, nil
		}

		p.logger.Info("Финал вне допустимого интервала близости",
			zap.Int("attempt", attempt+1), zap.Float64("score", score))
	}

	p.logger.Warn("Лимит попыток финала исчерпан, принята последняя попытка")
	return final, generationPrompt, nil
}
