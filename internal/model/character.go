package model

import (
	"time"

	"github.com/google/uuid"
)

// Character представляет персонажа истории (таблица story_characters).
// Статические черты задаются при создании; нарративное состояние
// (CurrentEmotionalState, CharacterArcStage, LastAction, MotivationEvolution)
// обновляется после каждой страницы. Персонажи никогда не удаляются.
type Character struct {
	CharacterID           uuid.UUID `db:"character_id" json:"character_id"`
	StoryID               uuid.UUID `db:"story_id" json:"story_id"`
	Name                  string    `db:"name" json:"name"`
	Age                   *int      `db:"age" json:"age,omitempty"`
	Role                  *string   `db:"role" json:"role,omitempty"`
	Relationship          *string   `db:"relationship" json:"relationship,omitempty"`
	Description           *string   `db:"description" json:"description,omitempty"`
	IsMain                bool      `db:"is_main" json:"is_main"`
	CoreDesire            *string   `db:"core_desire" json:"core_desire,omitempty"`
	DeepestFear           *string   `db:"deepest_fear" json:"deepest_fear,omitempty"`
	CurrentEmotionalState string    `db:"current_emotional_state" json:"current_emotional_state"`
	CharacterArcStage     string    `db:"character_arc_stage" json:"character_arc_stage"`
	LastAction            string    `db:"last_action" json:"last_action"`
	MotivationEvolution   string    `db:"motivation_evolution" json:"motivation_evolution"`
	PersonalityTraits     []string  `db:"personality_traits" json:"personality_traits,omitempty"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}

// Relationship - ненаправленное ребро между двумя персонажами (character_relationships).
// Каждое обнаружение связи пишется свежей записью, дедупликации нет.
type Relationship struct {
	RelationshipID       uuid.UUID `db:"relationship_id" json:"relationship_id"`
	StoryID              uuid.UUID `db:"story_id" json:"story_id"`
	Character1ID         uuid.UUID `db:"character_1_id" json:"character_1_id"`
	Character2ID         uuid.UUID `db:"character_2_id" json:"character_2_id"`
	RelationshipType     string    `db:"relationship_type" json:"relationship_type"`
	RelationshipStrength int       `db:"relationship_strength" json:"relationship_strength"`
	RelationshipStatus   string    `db:"relationship_status" json:"relationship_status"`
	UnresolvedIssues     []string  `db:"unresolved_issues" json:"unresolved_issues,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// ExtractedCharacter - персонаж, извлеченный моделью из скетча (до сохранения в БД).
type ExtractedCharacter struct {
	Name                  string   `json:"name"`
	Age                   any      `json:"age"` // Модель возвращает то число, то строку
	Role                  string   `json:"role"`
	Relationship          string   `json:"relationship"`
	Description           string   `json:"description"`
	CoreDesire            string   `json:"core_desire"`
	DeepestFear           string   `json:"deepest_fear"`
	CurrentStatus         string   `json:"current_status"`
	CurrentEmotionalState string   `json:"current_emotional_state"`
	CharacterArcStage     string   `json:"character_arc_stage"`
	LastAction            string   `json:"last_action"`
	MotivationEvolution   string   `json:"motivation_evolution"`
	PersonalityTraits     []string `json:"personality_traits"`
	RelationshipToMain    string   `json:"relationship_to_main"`
}

// ExtractedRelationship - связь между персонажами, извлеченная из скетча.
type ExtractedRelationship struct {
	Character1Name   string `json:"character_1_name"`
	Character2Name   string `json:"character_2_name"`
	RelationshipType string `json:"relationship_type"`
}

// CharacterData - полный результат экстракции ростера при создании истории.
type CharacterData struct {
	MainCharacters      []ExtractedCharacter    `json:"main_characters"`
	SecondaryCharacters []ExtractedCharacter    `json:"secondary_characters"`
	Relationships       []ExtractedRelationship `json:"relationships"`
}

// NewCharacterData - результат экстракции только новых персонажей при продолжении.
type NewCharacterData struct {
	NewCharacters []ExtractedCharacter `json:"new_characters"`
}
