package mocks

import (
	"context"

	"story-server/internal/ai"
	"story-server/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockAIClient - мок ai.Client
type MockAIClient struct {
	mock.Mock
}

func (m *MockAIClient) GenerateText(ctx context.Context, prompt string, params ai.GenerationParams) (string, ai.UsageInfo, error) {
	args := m.Called(ctx, prompt, params)
	usage, _ := args.Get(1).(ai.UsageInfo)
	return args.String(0), usage, args.Error(2)
}

func (m *MockAIClient) GenerateJSON(ctx context.Context, prompt string, params ai.GenerationParams) (string, ai.UsageInfo, error) {
	args := m.Called(ctx, prompt, params)
	usage, _ := args.Get(1).(ai.UsageInfo)
	return args.String(0), usage, args.Error(2)
}

// NewMockAIClient регистрирует мок в тесте и проверку ожиданий при очистке.
func NewMockAIClient(t interface {
	mock.TestingT
	Helper()
	Cleanup(func())
}) *MockAIClient {
	m := &MockAIClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// MockSimilarityScorer - мок SimilarityScorer
type MockSimilarityScorer struct {
	mock.Mock
}

func (m *MockSimilarityScorer) Score(ctx context.Context, a, b string) (float64, error) {
	args := m.Called(ctx, a, b)
	return args.Get(0).(float64), args.Error(1)
}

// MockStoryRepository - мок StoryRepository
type MockStoryRepository struct {
	mock.Mock
}

func (m *MockStoryRepository) Create(ctx context.Context, story *model.Story) error {
	args := m.Called(ctx, story)
	return args.Error(0)
}
func (m *MockStoryRepository) GetByID(ctx context.Context, storyID uuid.UUID) (*model.Story, error) {
	args := m.Called(ctx, storyID)
	story, _ := args.Get(0).(*model.Story)
	return story, args.Error(1)
}
func (m *MockStoryRepository) UpdateAfterPage(ctx context.Context, storyID uuid.UUID, pageNumber int, status *string, metadata map[string]string) error {
	args := m.Called(ctx, storyID, pageNumber, status, metadata)
	return args.Error(0)
}
func (m *MockStoryRepository) UpdateCoverImageURL(ctx context.Context, storyID uuid.UUID, url string) error {
	args := m.Called(ctx, storyID, url)
	return args.Error(0)
}

// MockPageRepository - мок PageRepository
type MockPageRepository struct {
	mock.Mock
}

func (m *MockPageRepository) Create(ctx context.Context, page *model.StoryPage) error {
	args := m.Called(ctx, page)
	return args.Error(0)
}
func (m *MockPageRepository) GetLatest(ctx context.Context, storyID uuid.UUID) (*model.StoryPage, error) {
	args := m.Called(ctx, storyID)
	page, _ := args.Get(0).(*model.StoryPage)
	return page, args.Error(1)
}
func (m *MockPageRepository) GetLastN(ctx context.Context, storyID uuid.UUID, n int) ([]model.StoryPage, error) {
	args := m.Called(ctx, storyID, n)
	pages, _ := args.Get(0).([]model.StoryPage)
	return pages, args.Error(1)
}

// MockCharacterRepository - мок CharacterRepository
type MockCharacterRepository struct {
	mock.Mock
}

func (m *MockCharacterRepository) CreateBatch(ctx context.Context, characters []*model.Character) error {
	args := m.Called(ctx, characters)
	return args.Error(0)
}
func (m *MockCharacterRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]model.Character, error) {
	args := m.Called(ctx, storyID)
	characters, _ := args.Get(0).([]model.Character)
	return characters, args.Error(1)
}
func (m *MockCharacterRepository) UpdateNarrativeState(ctx context.Context, characterID uuid.UUID, emotionalState, arcStage string) error {
	args := m.Called(ctx, characterID, emotionalState, arcStage)
	return args.Error(0)
}

// MockRelationshipRepository - мок RelationshipRepository
type MockRelationshipRepository struct {
	mock.Mock
}

func (m *MockRelationshipRepository) CreateBatch(ctx context.Context, relationships []*model.Relationship) error {
	args := m.Called(ctx, relationships)
	return args.Error(0)
}
func (m *MockRelationshipRepository) ListWithIssues(ctx context.Context, storyID uuid.UUID) ([]model.Relationship, error) {
	args := m.Called(ctx, storyID)
	rels, _ := args.Get(0).([]model.Relationship)
	return rels, args.Error(1)
}

// MockContextRepository - мок ContextRepository
type MockContextRepository struct {
	mock.Mock
}

func (m *MockContextRepository) Upsert(ctx context.Context, sc *model.StoryContext) error {
	args := m.Called(ctx, sc)
	return args.Error(0)
}
func (m *MockContextRepository) GetByPage(ctx context.Context, storyID uuid.UUID, pageNumber int) (*model.StoryContext, error) {
	args := m.Called(ctx, storyID, pageNumber)
	sc, _ := args.Get(0).(*model.StoryContext)
	return sc, args.Error(1)
}
func (m *MockContextRepository) GetLatest(ctx context.Context, storyID uuid.UUID) (*model.StoryContext, error) {
	args := m.Called(ctx, storyID)
	sc, _ := args.Get(0).(*model.StoryContext)
	return sc, args.Error(1)
}
func (m *MockContextRepository) ListMoods(ctx context.Context, storyID uuid.UUID) ([]model.PageMood, error) {
	args := m.Called(ctx, storyID)
	moods, _ := args.Get(0).([]model.PageMood)
	return moods, args.Error(1)
}

// MockEventRepository - мок EventRepository
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) CreateBatch(ctx context.Context, events []*model.StoryEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}
func (m *MockEventRepository) ListRecent(ctx context.Context, storyID uuid.UUID, limit int) ([]model.StoryEvent, error) {
	args := m.Called(ctx, storyID, limit)
	events, _ := args.Get(0).([]model.StoryEvent)
	return events, args.Error(1)
}

// MockCritiqueRepository - мок CritiqueRepository
type MockCritiqueRepository struct {
	mock.Mock
}

func (m *MockCritiqueRepository) Create(ctx context.Context, critique *model.Critique) error {
	args := m.Called(ctx, critique)
	return args.Error(0)
}

// MockContinuityRepository - мок ContinuityRepository
type MockContinuityRepository struct {
	mock.Mock
}

func (m *MockContinuityRepository) Create(ctx context.Context, rule *model.ContinuityRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}
func (m *MockContinuityRepository) ListActive(ctx context.Context, storyID uuid.UUID) ([]model.ContinuityRule, error) {
	args := m.Called(ctx, storyID)
	rules, _ := args.Get(0).([]model.ContinuityRule)
	return rules, args.Error(1)
}

// MockStoryLocker - мок StoryLocker
type MockStoryLocker struct {
	mock.Mock
}

func (m *MockStoryLocker) Acquire(ctx context.Context, storyID uuid.UUID) (bool, error) {
	args := m.Called(ctx, storyID)
	return args.Bool(0), args.Error(1)
}
func (m *MockStoryLocker) Release(ctx context.Context, storyID uuid.UUID) error {
	args := m.Called(ctx, storyID)
	return args.Error(0)
}

// MockCoverTaskPublisher - мок CoverTaskPublisher
type MockCoverTaskPublisher struct {
	mock.Mock
}

func (m *MockCoverTaskPublisher) PublishCoverTask(ctx context.Context, storyID uuid.UUID, prompt string) error {
	args := m.Called(ctx, storyID, prompt)
	return args.Error(0)
}

// StubNameProvider - детерминированный провайдер имен для тестов.
type StubNameProvider struct {
	Names []string
}

func (p *StubNameProvider) FetchNames(ctx context.Context, num int) []string {
	if len(p.Names) > num {
		return p.Names[:num]
	}
	return p.Names
}
