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

var _ CharacterRepository = (*pgCharacterRepository)(nil)

type pgCharacterRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewPgCharacterRepository(db DBTX, logger *zap.Logger) CharacterRepository {
	return &pgCharacterRepository{
		db:     db,
		logger: logger.Named("PgCharacterRepo"),
	}
}

const createCharacterQuery = `
INSERT INTO story_characters (character_id, story_id, name, age, role, relationship,
    description, is_main, core_desire, deepest_fear, current_emotional_state,
    character_arc_stage, last_action, motivation_evolution, personality_traits, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

const listCharactersByStoryQuery = `
SELECT * FROM story_characters WHERE story_id = $1 ORDER BY is_main DESC, created_at`

const updateCharacterStateQuery = `
UPDATE story_characters
SET current_emotional_state = $2, character_arc_stage = $3
WHERE character_id = $1`

// CreateBatch сохраняет пачку персонажей. Пустая пачка - не ошибка.
func (r *pgCharacterRepository) CreateBatch(ctx context.Context, characters []*model.Character) error {
	if len(characters) == 0 {
		return nil
	}

	for _, ch := range characters {
		if ch.CharacterID == uuid.Nil {
			ch.CharacterID = uuid.New()
		}
		if ch.CreatedAt.IsZero() {
			ch.CreatedAt = time.Now().UTC()
		}
		if ch.PersonalityTraits == nil {
			ch.PersonalityTraits = []string{}
		}

		_, err := r.db.Exec(ctx, createCharacterQuery,
			ch.CharacterID,
			ch.StoryID,
			ch.Name,
			ch.Age,
			ch.Role,
			ch.Relationship,
			ch.Description,
			ch.IsMain,
			ch.CoreDesire,
			ch.DeepestFear,
			ch.CurrentEmotionalState,
			ch.CharacterArcStage,
			ch.LastAction,
			ch.MotivationEvolution,
			ch.PersonalityTraits,
			ch.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create character", zap.Error(err),
				zap.String("storyID", ch.StoryID.String()), zap.String("name", ch.Name))
			return fmt.Errorf("ошибка создания персонажа '%s': %w", ch.Name, err)
		}
	}

	r.logger.Info("Characters created",
		zap.String("storyID", characters[0].StoryID.String()), zap.Int("count", len(characters)))
	return nil
}

// ListByStory возвращает весь ростер истории (главные персонажи первыми).
func (r *pgCharacterRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]model.Character, error) {
	var characters []model.Character
	err := pgxscan.Select(ctx, r.db, &characters, listCharactersByStoryQuery, storyID)
	if err != nil {
		r.logger.Error("Error listing characters", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("ошибка получения персонажей истории %s: %w", storyID, err)
	}
	return characters, nil
}

// UpdateNarrativeState обновляет эмоциональное состояние и стадию арки персонажа.
func (r *pgCharacterRepository) UpdateNarrativeState(ctx context.Context, characterID uuid.UUID, emotionalState, arcStage string) error {
	tag, err := r.db.Exec(ctx, updateCharacterStateQuery, characterID, emotionalState, arcStage)
	if err != nil {
		r.logger.Error("Failed to update character state", zap.Error(err), zap.String("characterID", characterID.String()))
		return fmt.Errorf("ошибка обновления состояния персонажа %s: %w", characterID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	r.logger.Debug("Character narrative state updated",
		zap.String("characterID", characterID.String()),
		zap.String("emotionalState", emotionalState),
		zap.String("arcStage", arcStage))
	return nil
}
