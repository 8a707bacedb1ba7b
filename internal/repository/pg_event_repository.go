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

var _ EventRepository = (*pgEventRepository)(nil)

type pgEventRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewPgEventRepository(db DBTX, logger *zap.Logger) EventRepository {
	return &pgEventRepository{
		db:     db,
		logger: logger.Named("PgEventRepo"),
	}
}

const createEventQuery = `
INSERT INTO story_events (event_id, story_id, page_number, event_type, event_description,
    characters_involved, emotional_impact, consequences, setup_for_future, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const listRecentEventsQuery = `
SELECT * FROM story_events
WHERE story_id = $1
ORDER BY page_number DESC, created_at DESC
LIMIT $2`

// CreateBatch сохраняет пачку событий.
func (r *pgEventRepository) CreateBatch(ctx context.Context, events []*model.StoryEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, ev := range events {
		if ev.EventID == uuid.Nil {
			ev.EventID = uuid.New()
		}
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = time.Now().UTC()
		}
		if ev.CharactersInvolved == nil {
			ev.CharactersInvolved = []uuid.UUID{}
		}
		if ev.Consequences == nil {
			ev.Consequences = []string{}
		}

		_, err := r.db.Exec(ctx, createEventQuery,
			ev.EventID,
			ev.StoryID,
			ev.PageNumber,
			ev.EventType,
			ev.EventDescription,
			ev.CharactersInvolved,
			ev.EmotionalImpact,
			ev.Consequences,
			ev.SetupForFuture,
			ev.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create story event", zap.Error(err),
				zap.String("storyID", ev.StoryID.String()), zap.String("eventType", ev.EventType))
			return fmt.Errorf("ошибка создания события истории: %w", err)
		}
	}

	r.logger.Info("Story events created",
		zap.String("storyID", events[0].StoryID.String()), zap.Int("count", len(events)))
	return nil
}

// ListRecent возвращает последние события (самые свежие первыми).
func (r *pgEventRepository) ListRecent(ctx context.Context, storyID uuid.UUID, limit int) ([]model.StoryEvent, error) {
	var events []model.StoryEvent
	err := pgxscan.Select(ctx, r.db, &events, listRecentEventsQuery, storyID, limit)
	if err != nil {
		r.logger.Error("Error listing recent events", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("ошибка получения событий истории %s: %w", storyID, err)
	}
	return events, nil
}
