package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"story-server/internal/model"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var _ ContextRepository = (*pgContextRepository)(nil)

type pgContextRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewPgContextRepository(db DBTX, logger *zap.Logger) ContextRepository {
	return &pgContextRepository{
		db:     db,
		logger: logger.Named("PgContextRepo"),
	}
}

const upsertContextQuery = `
INSERT INTO story_context (context_id, story_id, page_number, current_location, time_context,
    active_conflicts, unresolved_tensions, foreshadowing_elements, mood_atmosphere, pacing_notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (story_id, page_number) DO UPDATE SET
    current_location = EXCLUDED.current_location,
    time_context = EXCLUDED.time_context,
    active_conflicts = EXCLUDED.active_conflicts,
    unresolved_tensions = EXCLUDED.unresolved_tensions,
    foreshadowing_elements = EXCLUDED.foreshadowing_elements,
    mood_atmosphere = EXCLUDED.mood_atmosphere,
    pacing_notes = EXCLUDED.pacing_notes`

const getContextByPageQuery = `
SELECT * FROM story_context WHERE story_id = $1 AND page_number = $2`

const getLatestContextQuery = `
SELECT * FROM story_context WHERE story_id = $1 ORDER BY page_number DESC LIMIT 1`

const listMoodsQuery = `
SELECT page_number, mood_atmosphere FROM story_context
WHERE story_id = $1 AND mood_atmosphere <> ''
ORDER BY page_number`

// Upsert сохраняет снимок контекста по ключу (story_id, page_number).
func (r *pgContextRepository) Upsert(ctx context.Context, sc *model.StoryContext) error {
	if sc.ContextID == uuid.Nil {
		sc.ContextID = uuid.New()
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now().UTC()
	}
	if sc.ActiveConflicts == nil {
		sc.ActiveConflicts = []string{}
	}
	if sc.UnresolvedTensions == nil {
		sc.UnresolvedTensions = []string{}
	}
	if sc.ForeshadowingNotes == nil {
		sc.ForeshadowingNotes = []string{}
	}

	_, err := r.db.Exec(ctx, upsertContextQuery,
		sc.ContextID,
		sc.StoryID,
		sc.PageNumber,
		sc.CurrentLocation,
		sc.TimeContext,
		sc.ActiveConflicts,
		sc.UnresolvedTensions,
		sc.ForeshadowingNotes,
		sc.MoodAtmosphere,
		sc.PacingNotes,
		sc.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert story context", zap.Error(err),
			zap.String("storyID", sc.StoryID.String()), zap.Int("pageNumber", sc.PageNumber))
		return fmt.Errorf("ошибка сохранения контекста страницы %d: %w", sc.PageNumber, err)
	}
	r.logger.Debug("Story context upserted",
		zap.String("storyID", sc.StoryID.String()), zap.Int("pageNumber", sc.PageNumber))
	return nil
}

// GetByPage возвращает снимок контекста конкретной страницы.
func (r *pgContextRepository) GetByPage(ctx context.Context, storyID uuid.UUID, pageNumber int) (*model.StoryContext, error) {
	var sc model.StoryContext
	err := pgxscan.Get(ctx, r.db, &sc, getContextByPageQuery, storyID, pageNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		r.logger.Error("Error getting context by page", zap.Error(err),
			zap.String("storyID", storyID.String()), zap.Int("pageNumber", pageNumber))
		return nil, fmt.Errorf("ошибка получения контекста страницы %d: %w", pageNumber, err)
	}
	return &sc, nil
}

// GetLatest возвращает самый свежий снимок контекста истории.
func (r *pgContextRepository) GetLatest(ctx context.Context, storyID uuid.UUID) (*model.StoryContext, error) {
	var sc model.StoryContext
	err := pgxscan.Get(ctx, r.db, &sc, getLatestContextQuery, storyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		r.logger.Error("Error getting latest context", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("ошибка получения последнего контекста истории %s: %w", storyID, err)
	}
	return &sc, nil
}

// ListMoods возвращает таймлайн настроения по возрастанию страниц.
func (r *pgContextRepository) ListMoods(ctx context.Context, storyID uuid.UUID) ([]model.PageMood, error) {
	var moods []model.PageMood
	err := pgxscan.Select(ctx, r.db, &moods, listMoodsQuery, storyID)
	if err != nil {
		r.logger.Error("Error listing moods", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("ошибка получения настроений истории %s: %w", storyID, err)
	}
	return moods, nil
}
