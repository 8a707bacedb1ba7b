package service_test

import (
	"context"
	"testing"

	"story-server/internal/ai"
	"story-server/internal/config"
	"story-server/internal/generator"
	"story-server/internal/mocks"
	"story-server/internal/model"
	"story-server/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type serviceTestDeps struct {
	aiClient       *mocks.MockAIClient
	scorer         *mocks.MockSimilarityScorer
	storyRepo      *mocks.MockStoryRepository
	pageRepo       *mocks.MockPageRepository
	characterRepo  *mocks.MockCharacterRepository
	relRepo        *mocks.MockRelationshipRepository
	contextRepo    *mocks.MockContextRepository
	eventRepo      *mocks.MockEventRepository
	critiqueRepo   *mocks.MockCritiqueRepository
	rulesRepo      *mocks.MockContinuityRepository
	locker         *mocks.MockStoryLocker
	coverPublisher *mocks.MockCoverTaskPublisher
}

// newTestService собирает сервис на полном пайплайне с замоканными
// хранилищем, оракулом близости и генеративным клиентом.
func newTestService(t *testing.T) (service.StoryService, *serviceTestDeps) {
	deps := &serviceTestDeps{
		aiClient:       mocks.NewMockAIClient(t),
		scorer:         &mocks.MockSimilarityScorer{},
		storyRepo:      &mocks.MockStoryRepository{},
		pageRepo:       &mocks.MockPageRepository{},
		characterRepo:  &mocks.MockCharacterRepository{},
		relRepo:        &mocks.MockRelationshipRepository{},
		contextRepo:    &mocks.MockContextRepository{},
		eventRepo:      &mocks.MockEventRepository{},
		critiqueRepo:   &mocks.MockCritiqueRepository{},
		rulesRepo:      &mocks.MockContinuityRepository{},
		locker:         &mocks.MockStoryLocker{},
		coverPublisher: &mocks.MockCoverTaskPublisher{},
	}

	cfg := &config.Config{
		AIModel:              "gemma3:12b",
		DraftSimilarityLower: 0.70,
		DraftSimilarityUpper: 0.89,
		DraftMaxAttempts:     3,
		FinalSimilarityLower: 0.83,
		FinalSimilarityUpper: 0.92,
		FinalMaxRetries:      2,
	}

	logger := zap.NewNop()
	agents := generator.NewAgents(deps.aiClient, "mistral", logger)
	updater := generator.NewStateUpdater(agents, deps.characterRepo, deps.relRepo,
		deps.contextRepo, deps.eventRepo, deps.critiqueRepo, deps.rulesRepo, logger)
	assembler := generator.NewContextAssembler(deps.storyRepo, deps.contextRepo,
		deps.characterRepo, deps.eventRepo, deps.relRepo, logger)
	pipeline := generator.NewPipeline(cfg, agents, deps.scorer, updater, assembler,
		&mocks.StubNameProvider{}, logger)

	svc := service.NewStoryService(pipeline, updater, deps.storyRepo, deps.pageRepo,
		deps.locker, deps.coverPublisher, cfg.AIModel, logger)
	return svc, deps
}

func agentParams(agent string) interface{} {
	return mock.MatchedBy(func(p ai.GenerationParams) bool {
		return p.Agent == agent
	})
}

func TestGenerateAndStoreNextPage_LockConflict(t *testing.T) {
	svc, deps := newTestService(t)
	storyID := uuid.New()

	deps.locker.On("Acquire", mock.Anything, storyID).Return(false, nil).Once()

	_, err := svc.GenerateAndStoreNextPage(context.Background(), storyID)

	assert.ErrorIs(t, err, model.ErrStoryLocked)
	deps.storyRepo.AssertNotCalled(t, "GetByID")
	deps.locker.AssertNotCalled(t, "Release")
}

func TestGenerateAndStoreNextPage_NoPages(t *testing.T) {
	svc, deps := newTestService(t)
	storyID := uuid.New()

	deps.locker.On("Acquire", mock.Anything, storyID).Return(true, nil).Once()
	deps.locker.On("Release", mock.Anything, storyID).Return(nil).Once()
	deps.storyRepo.On("GetByID", mock.Anything, storyID).Return(&model.Story{StoryID: storyID}, nil).Once()
	deps.pageRepo.On("GetLatest", mock.Anything, storyID).Return(nil, model.ErrNotFound).Once()

	_, err := svc.GenerateAndStoreNextPage(context.Background(), storyID)

	assert.ErrorIs(t, err, model.ErrNoPagesFound)
	// Ничего не сгенерировано и не записано
	deps.pageRepo.AssertNotCalled(t, "Create")
	deps.storyRepo.AssertNotCalled(t, "UpdateAfterPage")
	deps.locker.AssertExpectations(t)
}

func TestGenerateAndStoreNextPage_EndToEnd(t *testing.T) {
	svc, deps := newTestService(t)
	storyID := uuid.New()
	genre := "mystery"
	tone := "Suspenseful"
	story := &model.Story{StoryID: storyID, Genre: &genre, Tone: &tone}
	lastPage := &model.StoryPage{StoryID: storyID, PageNumber: 2, Content: "previous page text"}

	deps.locker.On("Acquire", mock.Anything, storyID).Return(true, nil).Once()
	deps.locker.On("Release", mock.Anything, storyID).Return(nil).Once()

	// GetByID зовут и сервис, и сборщик контекста
	deps.storyRepo.On("GetByID", mock.Anything, storyID).Return(story, nil)
	deps.pageRepo.On("GetLatest", mock.Anything, storyID).Return(lastPage, nil).Once()

	// Сборка контекста: состояние истории пустое
	deps.contextRepo.On("GetByPage", mock.Anything, storyID, mock.Anything).Return(nil, model.ErrNotFound)
	deps.contextRepo.On("GetLatest", mock.Anything, storyID).Return(nil, model.ErrNotFound)
	deps.contextRepo.On("ListMoods", mock.Anything, storyID).Return(nil, nil)
	deps.characterRepo.On("ListByStory", mock.Anything, storyID).Return(nil, nil)
	deps.eventRepo.On("ListRecent", mock.Anything, storyID, 9).Return(nil, nil)
	deps.relRepo.On("ListWithIssues", mock.Anything, storyID).Return(nil, nil)
	deps.rulesRepo.On("ListActive", mock.Anything, storyID).Return(nil, nil)

	// Этапы генерации
	deps.aiClient.On("GenerateText", mock.Anything, mock.Anything, agentParams("continuation_sketch")).
		Return("sketch text", ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateJSON", mock.Anything, mock.Anything, agentParams("extract_new_characters")).
		Return(`{"new_characters": []}`, ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateText", mock.Anything, mock.Anything, agentParams("continuation_draft")).
		Return("draft text", ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateText", mock.Anything, mock.Anything, agentParams("continuation_critique")).
		Return("critique text", ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateText", mock.Anything, mock.Anything, agentParams("continuation_final")).
		Return("final text", ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateJSON", mock.Anything, mock.Anything, agentParams("extract_metadata")).
		Return(`{"main_theme": "grief"}`, ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateJSON", mock.Anything, mock.Anything, agentParams("extract_events")).
		Return("[]", ai.UsageInfo{}, nil).Once()

	// Черновик и финал проходят ворота с первой попытки
	deps.scorer.On("Score", mock.Anything, "previous page text", "draft text").Return(0.80, nil).Once()
	deps.scorer.On("Score", mock.Anything, "draft text", "final text").Return(0.90, nil).Once()

	// Критика продолжения пишется на следующую страницу
	deps.critiqueRepo.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Critique) bool {
		return c.StoryID == storyID && c.PageNumber == 3 &&
			c.CritiqueType == "continuity" && c.SeverityLevel == 2
	})).Return(nil).Once()

	// Снимок контекста страницы 3 из скетча
	deps.contextRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(sc *model.StoryContext) bool {
		return sc.StoryID == storyID && sc.PageNumber == 3
	})).Return(nil).Once()

	deps.pageRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *model.StoryPage) bool {
		return p.StoryID == storyID && p.PageNumber == 3 &&
			p.Content == "final text" && p.IsFinalVersion
	})).Return(nil).Once()

	deps.storyRepo.On("UpdateAfterPage", mock.Anything, storyID, 3, (*string)(nil),
		mock.MatchedBy(func(fields map[string]string) bool {
			return fields["main_theme"] == "grief"
		})).Return(nil).Once()

	content, err := svc.GenerateAndStoreNextPage(context.Background(), storyID)

	assert.NoError(t, err)
	assert.Equal(t, "final text", content)
	deps.pageRepo.AssertExpectations(t)
	deps.storyRepo.AssertExpectations(t)
	deps.critiqueRepo.AssertExpectations(t)
	deps.locker.AssertExpectations(t)
}

func TestGenerateAndStoreStories_ContinuesAfterFailure(t *testing.T) {
	svc, deps := newTestService(t)

	// Первая история падает на этапе sketch, вторая проходит
	deps.aiClient.On("GenerateText", mock.Anything, mock.Anything, agentParams("sketch")).
		Return("", ai.UsageInfo{}, ai.ErrGenerationFailed).Once()

	deps.aiClient.On("GenerateText", mock.Anything, mock.Anything, agentParams("sketch")).
		Return("sketch text", ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateJSON", mock.Anything, mock.Anything, agentParams("extract_characters")).
		Return(`{"main_characters": [], "secondary_characters": [], "relationships": []}`, ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateText", mock.Anything, mock.Anything, agentParams("draft")).
		Return("draft text", ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateText", mock.Anything, mock.Anything, agentParams("critique")).
		Return("critique text", ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateText", mock.Anything, mock.Anything, agentParams("final")).
		Return("final text", ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateText", mock.Anything, mock.Anything, agentParams("title")).
		Return(`"The Lighthouse"`, ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateJSON", mock.Anything, mock.Anything, agentParams("extract_metadata")).
		Return(`{"story_summary": "a keeper and the sea"}`, ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateText", mock.Anything, mock.Anything, agentParams("image_prompt")).
		Return("a lighthouse in a storm", ai.UsageInfo{}, nil).Once()
	deps.aiClient.On("GenerateJSON", mock.Anything, mock.Anything, agentParams("extract_events")).
		Return("[]", ai.UsageInfo{}, nil).Once()

	deps.storyRepo.On("Create", mock.Anything, mock.MatchedBy(func(s *model.Story) bool {
		return s.Title == "The Lighthouse" && s.StoryType == "short" && s.CurrentPageNumber == 1
	})).Return(nil).Once()
	deps.coverPublisher.On("PublishCoverTask", mock.Anything, mock.Anything, "a lighthouse in a storm").
		Return(nil).Once()
	deps.critiqueRepo.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Critique) bool {
		return c.PageNumber == 1 && c.CritiqueType == "continuity"
	})).Return(nil).Once()
	deps.contextRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()
	deps.pageRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *model.StoryPage) bool {
		return p.PageNumber == 1 && p.Content == "final text"
	})).Return(nil).Once()

	stories, err := svc.GenerateAndStoreStories(context.Background(), 2)

	assert.NoError(t, err)
	assert.Len(t, stories, 1)
	assert.Equal(t, "The Lighthouse", stories[0].Title)
	assert.Equal(t, "a keeper and the sea", *stories[0].StorySummary)
	deps.storyRepo.AssertExpectations(t)
	deps.coverPublisher.AssertExpectations(t)
}
