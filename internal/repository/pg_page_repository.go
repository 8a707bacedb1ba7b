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

var _ PageRepository = (*pgPageRepository)(nil)

type pgPageRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewPgPageRepository(db DBTX, logger *zap.Logger) PageRepository {
	return &pgPageRepository{
		db:     db,
		logger: logger.Named("PgPageRepo"),
	}
}

const createPageQuery = `
INSERT INTO story_pages (page_id, story_id, page_number, content, generation_prompt,
    model_used, version_number, is_final_version, page_summary, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const getLatestPageQuery = `
SELECT * FROM story_pages
WHERE story_id = $1
ORDER BY page_number DESC
LIMIT 1`

const getLastNPagesQuery = `
SELECT * FROM story_pages
WHERE story_id = $1
ORDER BY page_number DESC
LIMIT $2`

// Create сохраняет новую страницу истории.
func (r *pgPageRepository) Create(ctx context.Context, page *model.StoryPage) error {
	if page.PageID == uuid.Nil {
		page.PageID = uuid.New()
	}
	if page.CreatedAt.IsZero() {
		page.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, createPageQuery,
		page.PageID,
		page.StoryID,
		page.PageNumber,
		page.Content,
		page.GenerationPrompt,
		page.ModelUsed,
		page.VersionNumber,
		page.IsFinalVersion,
		page.PageSummary,
		page.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create story page", zap.Error(err),
			zap.String("storyID", page.StoryID.String()), zap.Int("pageNumber", page.PageNumber))
		return fmt.Errorf("ошибка создания страницы %d истории %s: %w", page.PageNumber, page.StoryID, err)
	}
	r.logger.Info("Story page created",
		zap.String("storyID", page.StoryID.String()), zap.Int("pageNumber", page.PageNumber))
	return nil
}

// GetLatest возвращает последнюю (по page_number) страницу истории.
func (r *pgPageRepository) GetLatest(ctx context.Context, storyID uuid.UUID) (*model.StoryPage, error) {
	var page model.StoryPage
	err := pgxscan.Get(ctx, r.db, &page, getLatestPageQuery, storyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("No pages found for story", zap.String("storyID", storyID.String()))
			return nil, model.ErrNotFound
		}
		r.logger.Error("Error getting latest page", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("ошибка получения последней страницы истории %s: %w", storyID, err)
	}
	return &page, nil
}

// GetLastN возвращает последние n страниц в порядке возрастания page_number.
func (r *pgPageRepository) GetLastN(ctx context.Context, storyID uuid.UUID, n int) ([]model.StoryPage, error) {
	var pages []model.StoryPage
	err := pgxscan.Select(ctx, r.db, &pages, getLastNPagesQuery, storyID, n)
	if err != nil {
		r.logger.Error("Error getting last N pages", zap.Error(err), zap.String("storyID", storyID.String()), zap.Int("n", n))
		return nil, fmt.Errorf("ошибка получения последних %d страниц истории %s: %w", n, storyID, err)
	}
	// Запрос отдает по убыванию, разворачиваем в хронологический порядок
	for i, j := 0, len(pages)-1; i < j; i, j = i+1, j-1 {
		pages[i], pages[j] = pages[j], pages[i]
	}
	return pages, nil
}
