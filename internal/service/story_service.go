package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"story-server/internal/generator"
	"story-server/internal/model"
	"story-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CoverTaskPublisher публикует задачи на генерацию обложки во внешнюю очередь.
type CoverTaskPublisher interface {
	PublishCoverTask(ctx context.Context, storyID uuid.UUID, prompt string) error
}

// StoryService - оркестрация генерации историй поверх пайплайна и хранилища.
type StoryService interface {
	// GenerateAndStoreStories генерирует count новых историй.
	// Ошибка одной истории логируется и не прерывает остальные.
	GenerateAndStoreStories(ctx context.Context, count int) ([]model.Story, error)
	// GenerateAndStoreNextPage генерирует и сохраняет следующую страницу истории.
	// model.ErrNoPagesFound, если у истории нет ни одной страницы;
	// model.ErrStoryLocked, если генерация этой истории уже идет.
	GenerateAndStoreNextPage(ctx context.Context, storyID uuid.UUID) (string, error)
}

type storyService struct {
	pipeline       *generator.Pipeline
	updater        *generator.StateUpdater
	storyRepo      repository.StoryRepository
	pageRepo       repository.PageRepository
	locker         repository.StoryLocker
	coverPublisher CoverTaskPublisher
	modelName      string
	logger         *zap.Logger
}

var _ StoryService = (*storyService)(nil)

// NewStoryService создает сервис генерации историй.
func NewStoryService(
	pipeline *generator.Pipeline,
	updater *generator.StateUpdater,
	storyRepo repository.StoryRepository,
	pageRepo repository.PageRepository,
	locker repository.StoryLocker,
	coverPublisher CoverTaskPublisher,
	modelName string,
	logger *zap.Logger,
) StoryService {
	return &storyService{
		pipeline:       pipeline,
		updater:        updater,
		storyRepo:      storyRepo,
		pageRepo:       pageRepo,
		locker:         locker,
		coverPublisher: coverPublisher,
		modelName:      modelName,
		logger:         logger.Named("StoryService"),
	}
}

func (s *storyService) GenerateAndStoreStories(ctx context.Context, count int) ([]model.Story, error) {
	results := make([]model.Story, 0, count)

	for i := 0; i < count; i++ {
		story, err := s.generateAndStoreOne(ctx)
		if err != nil {
			// Провал одной истории не мешает следующим
			s.logger.Error("Генерация истории не удалась, переходим к следующей",
				zap.Int("index", i), zap.Error(err))
			continue
		}
		results = append(results, *story)
	}

	s.logger.Info("Пакет историй сгенерирован",
		zap.Int("requested", count), zap.Int("created", len(results)))
	return results, nil
}

func (s *storyService) generateAndStoreOne(ctx context.Context) (*model.Story, error) {
	result, err := s.pipeline.GenerateNewStory(ctx)
	if err != nil {
		return nil, fmt.Errorf("пайплайн новой истории: %w", err)
	}

	genre := strings.Join(result.Genres, ", ")
	story := &model.Story{
		StoryID:           uuid.New(),
		Title:             result.Title,
		Genre:             &genre,
		Tone:              &result.Tone,
		Tags:              []string{genre, result.Tone},
		StoryType:         "short",
		ChapterNumber:     1,
		CurrentPageNumber: 1,
		IsFinalPage:       false,
		IsFinalChapter:    false,
		ModelUsed:         &s.modelName,
		SeedPrompt:        &result.SeedPrompt,
	}
	if result.Metadata != nil {
		applyMetadata(story, result.Metadata)
	}

	if err := s.storyRepo.Create(ctx, story); err != nil {
		return nil, fmt.Errorf("сохранение истории: %w", err)
	}

	// Обложка генерируется асинхронно отдельным сервисом
	if result.ImagePrompt != "" {
		if err := s.coverPublisher.PublishCoverTask(ctx, story.StoryID, result.ImagePrompt); err != nil {
			s.logger.Error("Не удалось опубликовать задачу обложки",
				zap.String("storyID", story.StoryID.String()), zap.Error(err))
		}
	}

	if result.Characters != nil {
		if err := s.updater.SaveRoster(ctx, story.StoryID, result.Characters); err != nil {
			s.logger.Error("Не удалось сохранить ростер персонажей", zap.Error(err))
		}
		if err := s.updater.SaveInitialRelationships(ctx, story.StoryID, result.Characters); err != nil {
			s.logger.Error("Не удалось сохранить связи персонажей", zap.Error(err))
		}
		s.updater.SaveInitialContext(ctx, story.StoryID, result.Sketch, result.Content, result.Characters)
	}

	if err := s.updater.SaveCritique(ctx, story.StoryID, 1, "continuity", result.Critique, nil, 2); err != nil {
		s.logger.Error("Не удалось сохранить критику первой страницы", zap.Error(err))
	}

	page := &model.StoryPage{
		StoryID:          story.StoryID,
		PageNumber:       1,
		Content:          result.Content,
		GenerationPrompt: &result.SeedPrompt,
		ModelUsed:        &s.modelName,
		VersionNumber:    1,
		IsFinalVersion:   true,
	}
	if err := s.pageRepo.Create(ctx, page); err != nil {
		return nil, fmt.Errorf("сохранение первой страницы: %w", err)
	}

	s.logger.Info("История создана",
		zap.String("storyID", story.StoryID.String()),
		zap.String("title", story.Title),
		zap.String("genre", genre),
		zap.String("tone", result.Tone))

	return story, nil
}

// applyMetadata переносит непустые поля экстракции в запись истории.
func applyMetadata(story *model.Story, meta *model.StoryMetadata) {
	setIfNotEmpty := func(dst **string, value string) {
		if value != "" {
			v := value
			*dst = &v
		}
	}
	setIfNotEmpty(&story.CurrentStatus, meta.CurrentStatus)
	setIfNotEmpty(&story.MainTheme, meta.MainTheme)
	setIfNotEmpty(&story.CentralConflict, meta.CentralConflict)
	setIfNotEmpty(&story.TargetAgeGroup, meta.TargetAgeGroup)
	setIfNotEmpty(&story.EmotionalArc, meta.EmotionalArc)
	setIfNotEmpty(&story.StorySummary, meta.StorySummary)
	setIfNotEmpty(&story.LastEmotionalState, meta.LastEmotionalState)
	setIfNotEmpty(&story.NextPlannedDirection, meta.NextPlannedDirection)
}

func (s *storyService) GenerateAndStoreNextPage(ctx context.Context, storyID uuid.UUID) (string, error) {
	acquired, err := s.locker.Acquire(ctx, storyID)
	if err != nil {
		return "", fmt.Errorf("блокировка истории: %w", err)
	}
	if !acquired {
		return "", model.ErrStoryLocked
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), storyID); err != nil {
			s.logger.Error("Не удалось снять блокировку истории",
				zap.String("storyID", storyID.String()), zap.Error(err))
		}
	}()

	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return "", err
	}

	lastPage, err := s.pageRepo.GetLatest(ctx, storyID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// Продолжение без единой страницы бессмысленно
			return "", model.ErrNoPagesFound
		}
		return "", err
	}

	result, err := s.pipeline.GenerateContinuation(ctx, story, lastPage)
	if err != nil {
		return "", fmt.Errorf("пайплайн продолжения: %w", err)
	}

	nextPageNumber := lastPage.PageNumber + 1
	page := &model.StoryPage{
		StoryID:          storyID,
		PageNumber:       nextPageNumber,
		Content:          result.Content,
		GenerationPrompt: &result.GenerationPrompt,
		ModelUsed:        story.ModelUsed,
		VersionNumber:    1,
		IsFinalVersion:   true,
	}
	if err := s.pageRepo.Create(ctx, page); err != nil {
		return "", fmt.Errorf("сохранение страницы %d: %w", nextPageNumber, err)
	}

	var metadataFields map[string]string
	if result.Metadata != nil {
		metadataFields = result.Metadata.Fields()
	}
	if err := s.storyRepo.UpdateAfterPage(ctx, storyID, nextPageNumber, nil, metadataFields); err != nil {
		return "", fmt.Errorf("обновление истории после страницы: %w", err)
	}

	s.logger.Info("Следующая страница сгенерирована",
		zap.String("storyID", storyID.String()),
		zap.Int("pageNumber", nextPageNumber),
		zap.Int("newCharacters", len(result.NewCharacters)))

	return result.Content, nil
}
