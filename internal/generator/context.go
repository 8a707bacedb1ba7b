package generator

import (
	"context"
	"fmt"
	"strings"

	"story-server/internal/model"
	"story-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// recentEventPages - за сколько последних страниц собираются события
const recentEventPages = 3

// CharacterState - текущее состояние персонажа для контекстного блока.
type CharacterState struct {
	Name           string
	EmotionalState string
	Desire         string
	Fear           string
	ArcStage       string
	LastAction     string
}

// RecentEvent - событие для контекстного блока.
type RecentEvent struct {
	Page        int
	Description string
}

// RelationshipTension - связь с нерешенными проблемами.
type RelationshipTension struct {
	Type   string
	Issues []string
}

// ContextBundle - собранный контекст истории для промтов продолжения.
// Любая часть может быть пустой: сборка каждой независима и деградирует
// до пустого значения при ошибке выборки.
type ContextBundle struct {
	StorySummary         string
	CurrentLocation      string
	ActiveConflicts      []string
	CharacterStates      []CharacterState
	RecentEvents         []RecentEvent
	RelationshipTensions []RelationshipTension
	MoodProgression      string
}

// ContextAssembler восстанавливает нарративный контекст из сохраненного
// состояния истории.
type ContextAssembler struct {
	storyRepo        repository.StoryRepository
	contextRepo      repository.ContextRepository
	characterRepo    repository.CharacterRepository
	eventRepo        repository.EventRepository
	relationshipRepo repository.RelationshipRepository
	logger           *zap.Logger
}

// NewContextAssembler создает сборщик контекста.
func NewContextAssembler(
	storyRepo repository.StoryRepository,
	contextRepo repository.ContextRepository,
	characterRepo repository.CharacterRepository,
	eventRepo repository.EventRepository,
	relationshipRepo repository.RelationshipRepository,
	logger *zap.Logger,
) *ContextAssembler {
	return &ContextAssembler{
		storyRepo:        storyRepo,
		contextRepo:      contextRepo,
		characterRepo:    characterRepo,
		eventRepo:        eventRepo,
		relationshipRepo: relationshipRepo,
		logger:           logger.Named("ContextAssembler"),
	}
}

// Load собирает весь доступный контекст истории на момент страницы pageNumber.
// Ошибка любой отдельной выборки логируется и оставляет соответствующую
// часть контекста пустой - продолжение не должно падать из-за дыр в состоянии.
func (ca *ContextAssembler) Load(ctx context.Context, storyID uuid.UUID, pageNumber int) *ContextBundle {
	bundle := &ContextBundle{}

	if story, err := ca.storyRepo.GetByID(ctx, storyID); err != nil {
		ca.logger.Warn("Не удалось загрузить историю для контекста", zap.String("storyID", storyID.String()), zap.Error(err))
	} else if story.MainTheme != nil && story.StorySummary != nil && *story.MainTheme != "" && *story.StorySummary != "" {
		bundle.StorySummary = fmt.Sprintf("Theme: %s\nSummary: %s", *story.MainTheme, *story.StorySummary)
	}

	if sc, err := ca.contextRepo.GetByPage(ctx, storyID, pageNumber); err != nil {
		ca.logger.Warn("Не удалось загрузить контекст страницы", zap.Int("pageNumber", pageNumber), zap.Error(err))
	} else {
		bundle.CurrentLocation = sc.CurrentLocation
	}

	if latest, err := ca.contextRepo.GetLatest(ctx, storyID); err != nil {
		ca.logger.Warn("Не удалось загрузить последний снимок контекста", zap.Error(err))
	} else {
		bundle.ActiveConflicts = append(bundle.ActiveConflicts, latest.ActiveConflicts...)
		bundle.ActiveConflicts = append(bundle.ActiveConflicts, latest.UnresolvedTensions...)
	}

	if characters, err := ca.characterRepo.ListByStory(ctx, storyID); err != nil {
		ca.logger.Warn("Не удалось загрузить персонажей для контекста", zap.Error(err))
	} else {
		for _, ch := range characters {
			state := CharacterState{
				Name:           ch.Name,
				EmotionalState: ch.CurrentEmotionalState,
				ArcStage:       ch.CharacterArcStage,
				LastAction:     ch.LastAction,
			}
			if ch.CoreDesire != nil {
				state.Desire = *ch.CoreDesire
			}
			if ch.DeepestFear != nil {
				state.Fear = *ch.DeepestFear
			}
			bundle.CharacterStates = append(bundle.CharacterStates, state)
		}
	}

	if events, err := ca.eventRepo.ListRecent(ctx, storyID, recentEventPages*3); err != nil {
		ca.logger.Warn("Не удалось загрузить события для контекста", zap.Error(err))
	} else {
		for _, ev := range events {
			bundle.RecentEvents = append(bundle.RecentEvents, RecentEvent{
				Page:        ev.PageNumber,
				Description: ev.EventDescription,
			})
		}
	}

	if rels, err := ca.relationshipRepo.ListWithIssues(ctx, storyID); err != nil {
		ca.logger.Warn("Не удалось загрузить напряжения в отношениях", zap.Error(err))
	} else {
		for _, rel := range rels {
			bundle.RelationshipTensions = append(bundle.RelationshipTensions, RelationshipTension{
				Type:   rel.RelationshipType,
				Issues: rel.UnresolvedIssues,
			})
		}
	}

	if moods, err := ca.contextRepo.ListMoods(ctx, storyID); err != nil {
		ca.logger.Warn("Не удалось загрузить таймлайн настроения", zap.Error(err))
	} else {
		bundle.MoodProgression = formatMoodTimeline(moods)
	}

	return bundle
}

// formatMoodTimeline склеивает последние три смены настроения через " -> ".
func formatMoodTimeline(moods []model.PageMood) string {
	var parts []string
	for _, m := range moods {
		if m.MoodAtmosphere != "" {
			parts = append(parts, fmt.Sprintf("Page %d: %s", m.PageNumber, m.MoodAtmosphere))
		}
	}
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}
	return strings.Join(parts, " -> ")
}

// Render превращает бандл в текстовый блок для промта.
// Порядок секций фиксирован; пустые секции опускаются целиком.
func (b *ContextBundle) Render() string {
	var parts []string

	if b.StorySummary != "" {
		parts = append(parts, "STORY OVERVIEW:\n"+b.StorySummary)
	}

	if b.CurrentLocation != "" {
		parts = append(parts, "CURRENT LOCATION: "+b.CurrentLocation)
	}

	if len(b.ActiveConflicts) > 0 {
		parts = append(parts, "ACTIVE CONFLICTS:\n- "+strings.Join(b.ActiveConflicts, "\n- "))
	}

	if len(b.CharacterStates) > 0 {
		var lines []string
		for _, cs := range b.CharacterStates {
			emotional := cs.EmotionalState
			if emotional == "" {
				emotional = "unknown"
			}
			line := fmt.Sprintf("%s: %s emotional state", cs.Name, emotional)
			if cs.Desire != "" {
				line += ", wants " + cs.Desire
			}
			if cs.LastAction != "" {
				line += ", last did: " + cs.LastAction
			}
			lines = append(lines, line)
		}
		parts = append(parts, "CHARACTER STATES:\n- "+strings.Join(lines, "\n- "))
	}

	if len(b.RecentEvents) > 0 {
		events := b.RecentEvents
		if len(events) > 5 {
			events = events[:5]
		}
		var lines []string
		for _, ev := range events {
			lines = append(lines, fmt.Sprintf("Page %d: %s", ev.Page, ev.Description))
		}
		parts = append(parts, "RECENT EVENTS:\n- "+strings.Join(lines, "\n- "))
	}

	if len(b.RelationshipTensions) > 0 {
		tensions := b.RelationshipTensions
		if len(tensions) > 3 {
			tensions = tensions[:3]
		}
		var lines []string
		for _, t := range tensions {
			issues := t.Issues
			if len(issues) > 2 {
				issues = issues[:2]
			}
			lines = append(lines, fmt.Sprintf("%s relationship issues: %s", t.Type, strings.Join(issues, ", ")))
		}
		parts = append(parts, "RELATIONSHIP TENSIONS:\n- "+strings.Join(lines, "\n- "))
	}

	if b.MoodProgression != "" {
		parts = append(parts, "MOOD PROGRESSION: "+b.MoodProgression)
	}

	return strings.Join(parts, "\n\n")
}
