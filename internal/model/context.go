package model

import (
	"time"

	"github.com/google/uuid"
)

// StoryContext - снимок нарративного контекста на момент страницы (таблица story_context).
// Одна запись на пару (story_id, page_number); сохраняется через upsert.
type StoryContext struct {
	ContextID           uuid.UUID `db:"context_id" json:"context_id"`
	StoryID             uuid.UUID `db:"story_id" json:"story_id"`
	PageNumber          int       `db:"page_number" json:"page_number"`
	CurrentLocation     string    `db:"current_location" json:"current_location"`
	TimeContext         string    `db:"time_context" json:"time_context"`
	ActiveConflicts     []string  `db:"active_conflicts" json:"active_conflicts,omitempty"`
	UnresolvedTensions  []string  `db:"unresolved_tensions" json:"unresolved_tensions,omitempty"`
	ForeshadowingNotes  []string  `db:"foreshadowing_elements" json:"foreshadowing_elements,omitempty"`
	MoodAtmosphere      string    `db:"mood_atmosphere" json:"mood_atmosphere"`
	PacingNotes         string    `db:"pacing_notes" json:"pacing_notes"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// PageMood - пара (страница, настроение) для таймлайна настроения.
type PageMood struct {
	PageNumber     int    `db:"page_number" json:"page_number"`
	MoodAtmosphere string `db:"mood_atmosphere" json:"mood_atmosphere"`
}

// StoryEvent - ключевое событие, извлеченное из контента страницы (таблица story_events).
type StoryEvent struct {
	EventID            uuid.UUID   `db:"event_id" json:"event_id"`
	StoryID            uuid.UUID   `db:"story_id" json:"story_id"`
	PageNumber         int         `db:"page_number" json:"page_number"`
	EventType          string      `db:"event_type" json:"event_type"` // plot_point|character_development|conflict_escalation|resolution|discovery
	EventDescription   string      `db:"event_description" json:"event_description"`
	CharactersInvolved []uuid.UUID `db:"characters_involved" json:"characters_involved,omitempty"`
	EmotionalImpact    string      `db:"emotional_impact" json:"emotional_impact"` // high|medium|low
	Consequences       []string    `db:"consequences" json:"consequences,omitempty"`
	SetupForFuture     bool        `db:"setup_for_future" json:"setup_for_future"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
}

// ExtractedEvent - событие в том виде, в каком его возвращает модель
// (персонажи еще именами, не идентификаторами).
type ExtractedEvent struct {
	EventType          string   `json:"event_type"`
	EventDescription   string   `json:"event_description"`
	CharactersInvolved []string `json:"characters_involved"`
	EmotionalImpact    string   `json:"emotional_impact"`
	Consequences       []string `json:"consequences"`
	SetupForFuture     bool     `json:"setup_for_future"`
}

// Critique - редакторская заметка по странице (таблица story_critique).
// Пишется пайплайном, программно не перечитывается.
type Critique struct {
	CritiqueID            uuid.UUID `db:"critique_id" json:"critique_id"`
	StoryID               uuid.UUID `db:"story_id" json:"story_id"`
	PageNumber            int       `db:"page_number" json:"page_number"`
	CritiqueType          string    `db:"critique_type" json:"critique_type"`
	CritiqueContent       string    `db:"critique_content" json:"critique_content"`
	SuggestedImprovements []string  `db:"suggested_improvements" json:"suggested_improvements,omitempty"`
	SeverityLevel         int       `db:"severity_level" json:"severity_level"`
	IsResolved            bool      `db:"is_resolved" json:"is_resolved"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}

// ContinuityRule - правило непрерывности повествования (таблица story_continuity).
// priority_level: 1 - критичное, 2 - важное. Правила не удаляются, только деактивируются.
type ContinuityRule struct {
	RuleID          uuid.UUID `db:"rule_id" json:"rule_id"`
	StoryID         uuid.UUID `db:"story_id" json:"story_id"`
	RuleType        string    `db:"rule_type" json:"rule_type"`
	RuleDescription string    `db:"rule_description" json:"rule_description"`
	PriorityLevel   int       `db:"priority_level" json:"priority_level"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
