package model

import (
	"time"

	"github.com/google/uuid"
)

// Story представляет запись истории в таблице stories.
// Счетчики и производные метаданные мутируют после каждой сгенерированной страницы.
type Story struct {
	StoryID           uuid.UUID `db:"story_id" json:"story_id"`
	Title             string    `db:"title" json:"title"`
	Genre             *string   `db:"genre" json:"genre,omitempty"`
	Tone              *string   `db:"tone" json:"tone,omitempty"`
	Tags              []string  `db:"tags" json:"tags,omitempty"`
	StoryType         string    `db:"story_type" json:"story_type"`
	ChapterNumber     int       `db:"chapter_number" json:"chapter_number"`
	CurrentPageNumber int       `db:"current_page_number" json:"current_page_number"`
	CurrentStatus     *string   `db:"current_status" json:"current_status,omitempty"`
	IsFinalPage       bool      `db:"is_final_page" json:"is_final_page"`
	IsFinalChapter    bool      `db:"is_final_chapter" json:"is_final_chapter"`
	ModelUsed         *string   `db:"model_used" json:"model_used,omitempty"`
	SeedPrompt        *string   `db:"seed_prompt" json:"seed_prompt,omitempty"`
	CoverImageURL     *string   `db:"cover_image_url" json:"cover_image_url,omitempty"`

	// Метаданные, извлекаемые из контента (обновляются только непустыми значениями)
	MainTheme            *string `db:"main_theme" json:"main_theme,omitempty"`
	CentralConflict      *string `db:"central_conflict" json:"central_conflict,omitempty"`
	TargetAgeGroup       *string `db:"target_age_group" json:"target_age_group,omitempty"`
	EmotionalArc         *string `db:"emotional_arc" json:"emotional_arc,omitempty"`
	StorySummary         *string `db:"story_summary" json:"story_summary,omitempty"`
	LastEmotionalState   *string `db:"last_emotional_state" json:"last_emotional_state,omitempty"`
	NextPlannedDirection *string `db:"next_planned_direction" json:"next_planned_direction,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StoryPage представляет запись страницы в таблице story_pages.
// page_number уникален в пределах истории и растет монотонно на 1.
type StoryPage struct {
	PageID           uuid.UUID `db:"page_id" json:"page_id"`
	StoryID          uuid.UUID `db:"story_id" json:"story_id"`
	PageNumber       int       `db:"page_number" json:"page_number"`
	Content          string    `db:"content" json:"content"`
	GenerationPrompt *string   `db:"generation_prompt" json:"generation_prompt,omitempty"`
	ModelUsed        *string   `db:"model_used" json:"model_used,omitempty"`
	VersionNumber    int       `db:"version_number" json:"version_number"`
	IsFinalVersion   bool      `db:"is_final_version" json:"is_final_version"`
	PageSummary      *string   `db:"page_summary" json:"page_summary,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// StoryMetadata - результат экстракции метаданных из (sketch, final).
// Пустые поля означают "экстракция ничего не дала, прежнее значение не трогаем".
type StoryMetadata struct {
	CurrentStatus        string `json:"current_status"`
	MainTheme            string `json:"main_theme"`
	CentralConflict      string `json:"central_conflict"`
	TargetAgeGroup       string `json:"target_age_group"`
	EmotionalArc         string `json:"emotional_arc"`
	StorySummary         string `json:"story_summary"`
	LastEmotionalState   string `json:"last_emotional_state"`
	NextPlannedDirection string `json:"next_planned_direction"`
}

// Fields возвращает непустые поля метаданных как карту колонка -> значение.
func (m StoryMetadata) Fields() map[string]string {
	fields := map[string]string{}
	put := func(column, value string) {
		if value != "" {
			fields[column] = value
		}
	}
	put("main_theme", m.MainTheme)
	put("central_conflict", m.CentralConflict)
	put("target_age_group", m.TargetAgeGroup)
	put("emotional_arc", m.EmotionalArc)
	put("story_summary", m.StorySummary)
	put("last_emotional_state", m.LastEmotionalState)
	put("next_planned_direction", m.NextPlannedDirection)
	return fields
}
