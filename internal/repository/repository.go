package repository

import (
	"context"

	"story-server/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX - минимальный интерфейс доступа к БД, который реализуют
// и *pgxpool.Pool, и pgx.Tx. Репозитории не знают, работают они
// в транзакции или напрямую с пулом.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StoryRepository - доступ к таблице stories.
type StoryRepository interface {
	Create(ctx context.Context, story *model.Story) error
	GetByID(ctx context.Context, storyID uuid.UUID) (*model.Story, error)
	// UpdateAfterPage обновляет счетчик страниц, статус и непустые поля метаданных.
	// Поля, отсутствующие в metadata, остаются нетронутыми.
	UpdateAfterPage(ctx context.Context, storyID uuid.UUID, pageNumber int, status *string, metadata map[string]string) error
	UpdateCoverImageURL(ctx context.Context, storyID uuid.UUID, url string) error
}

// PageRepository - доступ к таблице story_pages.
type PageRepository interface {
	Create(ctx context.Context, page *model.StoryPage) error
	// GetLatest возвращает страницу с максимальным page_number.
	// model.ErrNotFound, если страниц нет.
	GetLatest(ctx context.Context, storyID uuid.UUID) (*model.StoryPage, error)
	GetLastN(ctx context.Context, storyID uuid.UUID, n int) ([]model.StoryPage, error)
}

// CharacterRepository - доступ к таблице story_characters.
type CharacterRepository interface {
	CreateBatch(ctx context.Context, characters []*model.Character) error
	ListByStory(ctx context.Context, storyID uuid.UUID) ([]model.Character, error)
	// UpdateNarrativeState обновляет мутабельное нарративное состояние персонажа.
	UpdateNarrativeState(ctx context.Context, characterID uuid.UUID, emotionalState, arcStage string) error
}

// RelationshipRepository - доступ к таблице character_relationships.
// Каждое обнаружение связи пишется свежей записью (дедупликации нет - см. DESIGN.md).
type RelationshipRepository interface {
	CreateBatch(ctx context.Context, relationships []*model.Relationship) error
	// ListWithIssues возвращает связи с непустым списком unresolved_issues.
	ListWithIssues(ctx context.Context, storyID uuid.UUID) ([]model.Relationship, error)
}

// ContextRepository - доступ к таблице story_context.
type ContextRepository interface {
	// Upsert пишет снимок контекста по ключу (story_id, page_number).
	Upsert(ctx context.Context, sc *model.StoryContext) error
	GetByPage(ctx context.Context, storyID uuid.UUID, pageNumber int) (*model.StoryContext, error)
	// GetLatest возвращает снимок с максимальным page_number.
	GetLatest(ctx context.Context, storyID uuid.UUID) (*model.StoryContext, error)
	// ListMoods возвращает пары (page_number, mood_atmosphere) по возрастанию страниц.
	ListMoods(ctx context.Context, storyID uuid.UUID) ([]model.PageMood, error)
}

// EventRepository - доступ к таблице story_events.
type EventRepository interface {
	CreateBatch(ctx context.Context, events []*model.StoryEvent) error
	// ListRecent возвращает события по убыванию page_number, не более limit.
	ListRecent(ctx context.Context, storyID uuid.UUID, limit int) ([]model.StoryEvent, error)
}

// CritiqueRepository - доступ к таблице story_critique.
type CritiqueRepository interface {
	Create(ctx context.Context, critique *model.Critique) error
}

// ContinuityRepository - доступ к таблице story_continuity.
type ContinuityRepository interface {
	Create(ctx context.Context, rule *model.ContinuityRule) error
	// ListActive возвращает активные правила, отсортированные по priority_level.
	ListActive(ctx context.Context, storyID uuid.UUID) ([]model.ContinuityRule, error)
}

// StoryLocker защищает историю от параллельной генерации следующей страницы.
type StoryLocker interface {
	// Acquire возвращает false, если блокировка уже удерживается.
	Acquire(ctx context.Context, storyID uuid.UUID) (bool, error)
	Release(ctx context.Context, storyID uuid.UUID) error
}
