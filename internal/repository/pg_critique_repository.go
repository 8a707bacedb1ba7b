package repository

import (
	"context"
	"fmt"
	"time"

	"story-server/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ CritiqueRepository = (*pgCritiqueRepository)(nil)

type pgCritiqueRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewPgCritiqueRepository(db DBTX, logger *zap.Logger) CritiqueRepository {
	return &pgCritiqueRepository{
		db:     db,
		logger: logger.Named("PgCritiqueRepo"),
	}
}

const createCritiqueQuery = `
INSERT INTO story_critique (critique_id, story_id, page_number, critique_type,
    critique_content, suggested_improvements, severity_level, is_resolved, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Create сохраняет редакторскую заметку по странице.
func (r *pgCritiqueRepository) Create(ctx context.Context, critique *model.Critique) error {
	if critique.CritiqueID == uuid.Nil {
		critique.CritiqueID = uuid.New()
	}
	if critique.CreatedAt.IsZero() {
		critique.CreatedAt = time.Now().UTC()
	}
	if critique.SuggestedImprovements == nil {
		critique.SuggestedImprovements = []string{}
	}

	_, err := r.db.Exec(ctx, createCritiqueQuery,
		critique.CritiqueID,
		critique.StoryID,
		critique.PageNumber,
		critique.CritiqueType,
		critique.CritiqueContent,
		critique.SuggestedImprovements,
		critique.SeverityLevel,
		critique.IsResolved,
		critique.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create critique", zap.Error(err),
			zap.String("storyID", critique.StoryID.String()), zap.Int("pageNumber", critique.PageNumber))
		return fmt.Errorf("ошибка сохранения критики страницы %d: %w", critique.PageNumber, err)
	}
	r.logger.Debug("Critique created",
		zap.String("storyID", critique.StoryID.String()),
		zap.Int("pageNumber", critique.PageNumber),
		zap.String("type", critique.CritiqueType))
	return nil
}
