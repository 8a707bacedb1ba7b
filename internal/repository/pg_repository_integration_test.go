package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"story-server/internal/database"
	"story-server/internal/model"
	"story-server/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// RepositoryTestSuite гоняет репозитории против настоящего PostgreSQL
// в контейнере. Схема накатывается встроенными миграциями.
type RepositoryTestSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool

	storyRepo      repository.StoryRepository
	pageRepo       repository.PageRepository
	characterRepo  repository.CharacterRepository
	relRepo        repository.RelationshipRepository
	contextRepo    repository.ContextRepository
	eventRepo      repository.EventRepository
	critiqueRepo   repository.CritiqueRepository
	continuityRepo repository.ContinuityRepository
}

func (s *RepositoryTestSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	s.pool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to connect to test postgres")

	require.NoError(s.T(), database.ApplyMigrations(s.pool), "Failed to apply migrations")

	logger := zap.NewNop()
	s.storyRepo = repository.NewPgStoryRepository(s.pool, logger)
	s.pageRepo = repository.NewPgPageRepository(s.pool, logger)
	s.characterRepo = repository.NewPgCharacterRepository(s.pool, logger)
	s.relRepo = repository.NewPgRelationshipRepository(s.pool, logger)
	s.contextRepo = repository.NewPgContextRepository(s.pool, logger)
	s.eventRepo = repository.NewPgEventRepository(s.pool, logger)
	s.critiqueRepo = repository.NewPgCritiqueRepository(s.pool, logger)
	s.continuityRepo = repository.NewPgContinuityRepository(s.pool, logger)
}

func (s *RepositoryTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

func (s *RepositoryTestSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "TRUNCATE TABLE stories RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate stories")
}

func TestRepositoryTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(RepositoryTestSuite))
}

// createStory вставляет минимальную историю и возвращает ее идентификатор.
func (s *RepositoryTestSuite) createStory() uuid.UUID {
	genre := "mystery"
	tone := "Suspenseful"
	story := &model.Story{
		StoryID:           uuid.New(),
		Title:             "The Lighthouse",
		Genre:             &genre,
		Tone:              &tone,
		Tags:              []string{genre, tone},
		StoryType:         "short",
		ChapterNumber:     1,
		CurrentPageNumber: 1,
	}
	require.NoError(s.T(), s.storyRepo.Create(s.ctx, story))
	return story.StoryID
}

func (s *RepositoryTestSuite) TestStoryRepo_CreateAndGet() {
	t := s.T()
	storyID := s.createStory()

	story, err := s.storyRepo.GetByID(s.ctx, storyID)
	require.NoError(t, err)
	require.Equal(t, "The Lighthouse", story.Title)
	require.Equal(t, "mystery", *story.Genre)
	require.Equal(t, 1, story.CurrentPageNumber)

	_, err = s.storyRepo.GetByID(s.ctx, uuid.New())
	require.True(t, errors.Is(err, model.ErrNotFound), "missing story should map to ErrNotFound")
}

func (s *RepositoryTestSuite) TestStoryRepo_UpdateAfterPage() {
	t := s.T()
	storyID := s.createStory()

	err := s.storyRepo.UpdateAfterPage(s.ctx, storyID, 2, nil, map[string]string{
		"main_theme":    "grief",
		"story_summary": "a keeper and the sea",
	})
	require.NoError(t, err)

	story, err := s.storyRepo.GetByID(s.ctx, storyID)
	require.NoError(t, err)
	require.Equal(t, 2, story.CurrentPageNumber)
	require.Equal(t, "grief", *story.MainTheme)
	require.Equal(t, "a keeper and the sea", *story.StorySummary)

	// Следующее обновление без метаданных не затирает прежние значения
	err = s.storyRepo.UpdateAfterPage(s.ctx, storyID, 3, nil, nil)
	require.NoError(t, err)

	story, err = s.storyRepo.GetByID(s.ctx, storyID)
	require.NoError(t, err)
	require.Equal(t, 3, story.CurrentPageNumber)
	require.Equal(t, "grief", *story.MainTheme)
}

func (s *RepositoryTestSuite) TestPageRepo_GetLatest() {
	t := s.T()
	storyID := s.createStory()

	_, err := s.pageRepo.GetLatest(s.ctx, storyID)
	require.True(t, errors.Is(err, model.ErrNotFound), "no pages should map to ErrNotFound")

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.pageRepo.Create(s.ctx, &model.StoryPage{
			StoryID:        storyID,
			PageNumber:     i,
			Content:        "page content",
			VersionNumber:  1,
			IsFinalVersion: true,
		}))
	}

	latest, err := s.pageRepo.GetLatest(s.ctx, storyID)
	require.NoError(t, err)
	require.Equal(t, 3, latest.PageNumber)

	lastTwo, err := s.pageRepo.GetLastN(s.ctx, storyID, 2)
	require.NoError(t, err)
	require.Len(t, lastTwo, 2)
}

func (s *RepositoryTestSuite) TestCharacterRepo_RosterAndProgression() {
	t := s.T()
	storyID := s.createStory()
	role := "keeper"

	err := s.characterRepo.CreateBatch(s.ctx, []*model.Character{
		{StoryID: storyID, Name: "Elena", Role: &role, IsMain: true,
			CurrentEmotionalState: "uncertain", CharacterArcStage: "introduction",
			PersonalityTraits: []string{"stubborn", "loyal"}},
		{StoryID: storyID, Name: "Mads", CharacterArcStage: "introduction"},
	})
	require.NoError(t, err)

	characters, err := s.characterRepo.ListByStory(s.ctx, storyID)
	require.NoError(t, err)
	require.Len(t, characters, 2)

	var elena model.Character
	for _, ch := range characters {
		if ch.Name == "Elena" {
			elena = ch
		}
	}
	require.True(t, elena.IsMain)
	require.Equal(t, []string{"stubborn", "loyal"}, elena.PersonalityTraits)

	require.NoError(t, s.characterRepo.UpdateNarrativeState(s.ctx, elena.CharacterID, "desperate", "confrontation"))

	characters, err = s.characterRepo.ListByStory(s.ctx, storyID)
	require.NoError(t, err)
	for _, ch := range characters {
		if ch.Name == "Elena" {
			require.Equal(t, "desperate", ch.CurrentEmotionalState)
			require.Equal(t, "confrontation", ch.CharacterArcStage)
		}
	}
}

func (s *RepositoryTestSuite) TestRelationshipRepo_ListWithIssues() {
	t := s.T()
	storyID := s.createStory()

	require.NoError(t, s.characterRepo.CreateBatch(s.ctx, []*model.Character{
		{StoryID: storyID, Name: "Elena", IsMain: true, CharacterArcStage: "introduction"},
		{StoryID: storyID, Name: "Mads", CharacterArcStage: "introduction"},
	}))
	characters, err := s.characterRepo.ListByStory(s.ctx, storyID)
	require.NoError(t, err)
	require.Len(t, characters, 2)

	require.NoError(t, s.relRepo.CreateBatch(s.ctx, []*model.Relationship{
		{StoryID: storyID, Character1ID: characters[0].CharacterID, Character2ID: characters[1].CharacterID,
			RelationshipType: "mentor", RelationshipStrength: 5, RelationshipStatus: "developing",
			UnresolvedIssues: []string{"old debt"}},
		{StoryID: storyID, Character1ID: characters[1].CharacterID, Character2ID: characters[0].CharacterID,
			RelationshipType: "rivalry", RelationshipStrength: 5, RelationshipStatus: "developing"},
	}))

	withIssues, err := s.relRepo.ListWithIssues(s.ctx, storyID)
	require.NoError(t, err)
	require.Len(t, withIssues, 1, "only relationships with unresolved issues are returned")
	require.Equal(t, "mentor", withIssues[0].RelationshipType)
}

func (s *RepositoryTestSuite) TestContextRepo_UpsertAndMoods() {
	t := s.T()
	storyID := s.createStory()

	snapshot := &model.StoryContext{
		StoryID:         storyID,
		PageNumber:      1,
		CurrentLocation: "lighthouse",
		MoodAtmosphere:  "calm",
		ActiveConflicts: []string{"the storm"},
	}
	require.NoError(t, s.contextRepo.Upsert(s.ctx, snapshot))

	// Повторная запись той же страницы перезаписывает снимок
	snapshot.CurrentLocation = "the cellar"
	snapshot.MoodAtmosphere = "tense"
	require.NoError(t, s.contextRepo.Upsert(s.ctx, snapshot))

	got, err := s.contextRepo.GetByPage(s.ctx, storyID, 1)
	require.NoError(t, err)
	require.Equal(t, "the cellar", got.CurrentLocation)
	require.Equal(t, []string{"the storm"}, got.ActiveConflicts)

	require.NoError(t, s.contextRepo.Upsert(s.ctx, &model.StoryContext{
		StoryID: storyID, PageNumber: 2, CurrentLocation: "the shore", MoodAtmosphere: "grim",
	}))

	latest, err := s.contextRepo.GetLatest(s.ctx, storyID)
	require.NoError(t, err)
	require.Equal(t, 2, latest.PageNumber)

	moods, err := s.contextRepo.ListMoods(s.ctx, storyID)
	require.NoError(t, err)
	require.Equal(t, []model.PageMood{
		{PageNumber: 1, MoodAtmosphere: "tense"},
		{PageNumber: 2, MoodAtmosphere: "grim"},
	}, moods)
}

func (s *RepositoryTestSuite) TestEventRepo_ListRecent() {
	t := s.T()
	storyID := s.createStory()

	var events []*model.StoryEvent
	for i := 1; i <= 4; i++ {
		events = append(events, &model.StoryEvent{
			StoryID:          storyID,
			PageNumber:       i,
			EventType:        "plot_point",
			EventDescription: "something happened",
			EmotionalImpact:  "medium",
		})
	}
	require.NoError(t, s.eventRepo.CreateBatch(s.ctx, events))

	recent, err := s.eventRepo.ListRecent(s.ctx, storyID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, 4, recent[0].PageNumber, "events come newest first")
	require.Equal(t, 3, recent[1].PageNumber)
}

func (s *RepositoryTestSuite) TestContinuityRepo_ListActive() {
	t := s.T()
	storyID := s.createStory()

	require.NoError(t, s.continuityRepo.Create(s.ctx, &model.ContinuityRule{
		StoryID: storyID, RuleType: "character_motivation",
		RuleDescription: "Elena wants to find her brother - this drives their actions",
		PriorityLevel:   2, IsActive: true,
	}))
	require.NoError(t, s.continuityRepo.Create(s.ctx, &model.ContinuityRule{
		StoryID: storyID, RuleType: "character_trait",
		RuleDescription: "Elena is stubborn, loyal - maintain these traits",
		PriorityLevel:   1, IsActive: true,
	}))
	require.NoError(t, s.continuityRepo.Create(s.ctx, &model.ContinuityRule{
		StoryID: storyID, RuleType: "world_rule",
		RuleDescription: "inactive rule", PriorityLevel: 1, IsActive: false,
	}))

	rules, err := s.continuityRepo.ListActive(s.ctx, storyID)
	require.NoError(t, err)
	require.Len(t, rules, 2, "inactive rules are filtered out")
	require.Equal(t, 1, rules[0].PriorityLevel, "rules come ordered by priority")
}

func (s *RepositoryTestSuite) TestCritiqueRepo_Create() {
	t := s.T()
	storyID := s.createStory()

	err := s.critiqueRepo.Create(s.ctx, &model.Critique{
		StoryID:         storyID,
		PageNumber:      1,
		CritiqueType:    "continuity",
		CritiqueContent: "the timeline drifts",
		SeverityLevel:   2,
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, s.pool.QueryRow(s.ctx,
		"SELECT COUNT(*) FROM story_critique WHERE story_id = $1", storyID).Scan(&count))
	require.Equal(t, 1, count)
}
