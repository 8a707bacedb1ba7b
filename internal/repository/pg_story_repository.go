package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"story-server/internal/model"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ StoryRepository = (*pgStoryRepository)(nil)

type pgStoryRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewPgStoryRepository(db DBTX, logger *zap.Logger) StoryRepository {
	return &pgStoryRepository{
		db:     db,
		logger: logger.Named("PgStoryRepo"),
	}
}

const createStoryQuery = `
INSERT INTO stories (story_id, title, genre, tone, tags, story_type, chapter_number,
    current_page_number, current_status, is_final_page, is_final_chapter, model_used,
    seed_prompt, main_theme, central_conflict, target_age_group, emotional_arc,
    story_summary, last_emotional_state, next_planned_direction, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

const getStoryByIDQuery = `
SELECT * FROM stories WHERE story_id = $1`

const updateStoryCoverQuery = `
UPDATE stories SET cover_image_url = $2 WHERE story_id = $1`

// Create сохраняет новую историю.
func (r *pgStoryRepository) Create(ctx context.Context, story *model.Story) error {
	if story.StoryID == uuid.Nil {
		story.StoryID = uuid.New()
	}
	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now().UTC()
	}
	if story.Tags == nil {
		story.Tags = []string{}
	}

	_, err := r.db.Exec(ctx, createStoryQuery,
		story.StoryID,
		story.Title,
		story.Genre,
		story.Tone,
		story.Tags,
		story.StoryType,
		story.ChapterNumber,
		story.CurrentPageNumber,
		story.CurrentStatus,
		story.IsFinalPage,
		story.IsFinalChapter,
		story.ModelUsed,
		story.SeedPrompt,
		story.MainTheme,
		story.CentralConflict,
		story.TargetAgeGroup,
		story.EmotionalArc,
		story.StorySummary,
		story.LastEmotionalState,
		story.NextPlannedDirection,
		story.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create story", zap.Error(err), zap.String("storyID", story.StoryID.String()))
		return fmt.Errorf("ошибка создания истории: %w", err)
	}
	r.logger.Info("Story created", zap.String("storyID", story.StoryID.String()), zap.String("title", story.Title))
	return nil
}

// GetByID возвращает историю по идентификатору.
func (r *pgStoryRepository) GetByID(ctx context.Context, storyID uuid.UUID) (*model.Story, error) {
	var story model.Story
	err := pgxscan.Get(ctx, r.db, &story, getStoryByIDQuery, storyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Story not found", zap.String("storyID", storyID.String()))
			return nil, model.ErrNotFound
		}
		r.logger.Error("Error getting story by ID", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("ошибка получения истории %s: %w", storyID, err)
	}
	return &story, nil
}

// Разрешенные к динамическому обновлению колонки метаданных.
// Всё остальное из карты metadata молча отбрасывается.
var updatableMetadataColumns = map[string]bool{
	"main_theme":             true,
	"central_conflict":       true,
	"target_age_group":       true,
	"emotional_arc":          true,
	"story_summary":          true,
	"last_emotional_state":   true,
	"next_planned_direction": true,
}

// UpdateAfterPage обновляет состояние истории после генерации страницы.
// Поля метаданных обновляются только те, что присутствуют в карте metadata.
func (r *pgStoryRepository) UpdateAfterPage(ctx context.Context, storyID uuid.UUID, pageNumber int, status *string, metadata map[string]string) error {
	setParts := []string{"current_page_number = $2", "current_status = $3", "is_final_page = FALSE"}
	args := []any{storyID, pageNumber, status}

	for column, value := range metadata {
		if !updatableMetadataColumns[column] {
			r.logger.Warn("Skipping unknown metadata column", zap.String("column", column))
			continue
		}
		args = append(args, value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	query := fmt.Sprintf("UPDATE stories SET %s WHERE story_id = $1", strings.Join(setParts, ", "))

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update story after page", zap.Error(err), zap.String("storyID", storyID.String()), zap.Int("pageNumber", pageNumber))
		return fmt.Errorf("ошибка обновления истории %s: %w", storyID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	r.logger.Info("Story updated after page",
		zap.String("storyID", storyID.String()),
		zap.Int("pageNumber", pageNumber),
		zap.Int("metadataFields", len(metadata)))
	return nil
}

// UpdateCoverImageURL сохраняет ссылку на обложку.
func (r *pgStoryRepository) UpdateCoverImageURL(ctx context.Context, storyID uuid.UUID, url string) error {
	_, err := r.db.Exec(ctx, updateStoryCoverQuery, storyID, url)
	if err != nil {
		r.logger.Error("Failed to update cover image URL", zap.Error(err), zap.String("storyID", storyID.String()))
		return fmt.Errorf("ошибка обновления обложки истории %s: %w", storyID, err)
	}
	return nil
}
