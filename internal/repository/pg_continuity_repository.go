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

var _ ContinuityRepository = (*pgContinuityRepository)(nil)

type pgContinuityRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewPgContinuityRepository(db DBTX, logger *zap.Logger) ContinuityRepository {
	return &pgContinuityRepository{
		db:     db,
		logger: logger.Named("PgContinuityRepo"),
	}
}

const createContinuityRuleQuery = `
INSERT INTO story_continuity (rule_id, story_id, rule_type, rule_description, priority_level, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const listActiveRulesQuery = `
SELECT * FROM story_continuity
WHERE story_id = $1 AND is_active = TRUE
ORDER BY priority_level`

// Create сохраняет новое правило непрерывности.
func (r *pgContinuityRepository) Create(ctx context.Context, rule *model.ContinuityRule) error {
	if rule.RuleID == uuid.Nil {
		rule.RuleID = uuid.New()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, createContinuityRuleQuery,
		rule.RuleID,
		rule.StoryID,
		rule.RuleType,
		rule.RuleDescription,
		rule.PriorityLevel,
		rule.IsActive,
		rule.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create continuity rule", zap.Error(err),
			zap.String("storyID", rule.StoryID.String()), zap.String("ruleType", rule.RuleType))
		return fmt.Errorf("ошибка сохранения правила непрерывности: %w", err)
	}
	r.logger.Debug("Continuity rule created",
		zap.String("storyID", rule.StoryID.String()),
		zap.String("ruleType", rule.RuleType),
		zap.Int("priority", rule.PriorityLevel))
	return nil
}

// ListActive возвращает активные правила по возрастанию priority_level (1 - критичные).
func (r *pgContinuityRepository) ListActive(ctx context.Context, storyID uuid.UUID) ([]model.ContinuityRule, error) {
	var rules []model.ContinuityRule
	err := pgxscan.Select(ctx, r.db, &rules, listActiveRulesQuery, storyID)
	if err != nil {
		r.logger.Error("Error listing active continuity rules", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("ошибка получения правил непрерывности истории %s: %w", storyID, err)
	}
	return rules, nil
}
