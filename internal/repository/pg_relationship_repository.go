package repository

import (
	"context"
	"fmt"
	"time"

	"story-server/internal/model"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ RelationshipRepository = (*pgRelationshipRepository)(nil)

type pgRelationshipRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewPgRelationshipRepository(db DBTX, logger *zap.Logger) RelationshipRepository {
	return &pgRelationshipRepository{
		db:     db,
		logger: logger.Named("PgRelationshipRepo"),
	}
}

const createRelationshipQuery = `
INSERT INTO character_relationships (relationship_id, story_id, character_1_id, character_2_id,
    relationship_type, relationship_strength, relationship_status, unresolved_issues, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const listRelationshipsWithIssuesQuery = `
SELECT * FROM character_relationships
WHERE story_id = $1 AND cardinality(unresolved_issues) > 0`

// CreateBatch сохраняет пачку связей. Дедупликации против существующих ребер нет:
// повторные обнаружения копятся отдельными записями.
func (r *pgRelationshipRepository) CreateBatch(ctx context.Context, relationships []*model.Relationship) error {
	if len(relationships) == 0 {
		return nil
	}

	for _, rel := range relationships {
		if rel.RelationshipID == uuid.Nil {
			rel.RelationshipID = uuid.New()
		}
		if rel.CreatedAt.IsZero() {
			rel.CreatedAt = time.Now().UTC()
		}
		if rel.UnresolvedIssues == nil {
			rel.UnresolvedIssues = []string{}
		}

		_, err := r.db.Exec(ctx, createRelationshipQuery,
			rel.RelationshipID,
			rel.StoryID,
			rel.Character1ID,
			rel.Character2ID,
			rel.RelationshipType,
			rel.RelationshipStrength,
			rel.RelationshipStatus,
			rel.UnresolvedIssues,
			rel.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create relationship", zap.Error(err),
				zap.String("storyID", rel.StoryID.String()),
				zap.String("type", rel.RelationshipType))
			return fmt.Errorf("ошибка создания связи персонажей: %w", err)
		}
	}

	r.logger.Info("Relationships created",
		zap.String("storyID", relationships[0].StoryID.String()), zap.Int("count", len(relationships)))
	return nil
}

// ListWithIssues возвращает только связи с неразрешенными проблемами.
func (r *pgRelationshipRepository) ListWithIssues(ctx context.Context, storyID uuid.UUID) ([]model.Relationship, error) {
	var relationships []model.Relationship
	err := pgxscan.Select(ctx, r.db, &relationships, listRelationshipsWithIssuesQuery, storyID)
	if err != nil {
		r.logger.Error("Error listing relationships with issues", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("ошибка получения проблемных связей истории %s: %w", storyID, err)
	}
	return relationships, nil
}
