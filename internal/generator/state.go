package generator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"story-server/internal/model"
	"story-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UpdateResults - итог обновления состояния после страницы.
// Каждый флаг независим: провал одной части не отменяет остальные.
type UpdateResults struct {
	ContextSaved      bool `json:"context_saved"`
	EventsSaved       bool `json:"events_saved"`
	CharactersUpdated bool `json:"characters_updated"`
}

// FieldChange - смена значения поля контекста между страницами.
type FieldChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ContextChanges - что изменилось в контексте на последней странице.
type ContextChanges struct {
	LocationChanged *FieldChange `json:"location_changed,omitempty"`
	MoodChanged     *FieldChange `json:"mood_changed,omitempty"`
}

// StateUpdater переносит результаты генерации в персистентное состояние
// истории: снимки контекста, события, прогрессию персонажей, правила
// непрерывности.
type StateUpdater struct {
	agents           *Agents
	characterRepo    repository.CharacterRepository
	relationshipRepo repository.RelationshipRepository
	contextRepo      repository.ContextRepository
	eventRepo        repository.EventRepository
	critiqueRepo     repository.CritiqueRepository
	continuityRepo   repository.ContinuityRepository
	logger           *zap.Logger
}

// NewStateUpdater создает обновлятор состояния истории.
func NewStateUpdater(
	agents *Agents,
	characterRepo repository.CharacterRepository,
	relationshipRepo repository.RelationshipRepository,
	contextRepo repository.ContextRepository,
	eventRepo repository.EventRepository,
	critiqueRepo repository.CritiqueRepository,
	continuityRepo repository.ContinuityRepository,
	logger *zap.Logger,
) *StateUpdater {
	return &StateUpdater{
		agents:           agents,
		characterRepo:    characterRepo,
		relationshipRepo: relationshipRepo,
		contextRepo:      contextRepo,
		eventRepo:        eventRepo,
		critiqueRepo:     critiqueRepo,
		continuityRepo:   continuityRepo,
		logger:           logger.Named("StateUpdater"),
	}
}

// UpdateAfterPage обновляет все состояние истории после генерации страницы.
// Три части выполняются независимо; результат сообщает, что удалось.
func (su *StateUpdater) UpdateAfterPage(ctx context.Context, storyID uuid.UUID, pageNumber int, content, sketch string) UpdateResults {
	results := UpdateResults{}

	if sketch != "" {
		results.ContextSaved = su.SaveContextSnapshot(ctx, storyID, pageNumber, sketch)
		results.CharactersUpdated = su.UpdateCharacterProgression(ctx, storyID, sketch)
	}

	results.EventsSaved = su.SaveEvents(ctx, storyID, pageNumber, content)

	return results
}

// SaveContextSnapshot извлекает контекст из скетча эвристиками и пишет
// снимок по ключу (story_id, page_number).
func (su *StateUpdater) SaveContextSnapshot(ctx context.Context, storyID uuid.UUID, pageNumber int, sketch string) bool {
	snapshot := &model.StoryContext{
		StoryID:            storyID,
		PageNumber:         pageNumber,
		CurrentLocation:    ExtractLocation(sketch),
		TimeContext:        ExtractTimeContext(sketch),
		ActiveConflicts:    ExtractConflicts(sketch),
		UnresolvedTensions: ExtractUnresolvedTensions(sketch),
		ForeshadowingNotes: ExtractForeshadowing(sketch),
		MoodAtmosphere:     ExtractMood(sketch),
		PacingNotes:        ExtractPacingNotes(sketch),
	}

	if err := su.contextRepo.Upsert(ctx, snapshot); err != nil {
		su.logger.Error("Не удалось сохранить снимок контекста",
			zap.String("storyID", storyID.String()), zap.Int("pageNumber", pageNumber), zap.Error(err))
		return false
	}
	return true
}

// SaveEvents извлекает события из контента страницы и сохраняет их.
// Имена персонажей резолвятся в идентификаторы; несопоставимые имена
// отбрасываются. Отсутствие событий - не ошибка.
func (su *StateUpdater) SaveEvents(ctx context.Context, storyID uuid.UUID, pageNumber int, content string) bool {
	extracted, err := su.agents.ExtractEvents(ctx, content)
	if err != nil {
		su.logger.Warn("Экстракция событий не удалась", zap.String("storyID", storyID.String()), zap.Error(err))
		return false
	}
	if len(extracted) == 0 {
		return true
	}

	characterMap, err := su.characterNameMap(ctx, storyID)
	if err != nil {
		su.logger.Error("Не удалось загрузить персонажей для резолва имен", zap.Error(err))
		return false
	}

	events := make([]*model.StoryEvent, 0, len(extracted))
	for _, ev := range extracted {
		var involved []uuid.UUID
		for _, name := range ev.CharactersInvolved {
			if id, ok := characterMap[name]; ok {
				involved = append(involved, id)
			}
		}
		events = append(events, &model.StoryEvent{
			StoryID:            storyID,
			PageNumber:         pageNumber,
			EventType:          ev.EventType,
			EventDescription:   ev.EventDescription,
			CharactersInvolved: involved,
			EmotionalImpact:    ev.EmotionalImpact,
			Consequences:       ev.Consequences,
			SetupForFuture:     ev.SetupForFuture,
		})
	}

	if err := su.eventRepo.CreateBatch(ctx, events); err != nil {
		su.logger.Error("Не удалось сохранить события", zap.String("storyID", storyID.String()), zap.Error(err))
		return false
	}
	return true
}

// UpdateCharacterProgression обновляет эмоциональное состояние и стадию арки
// каждого персонажа по скетчу. Персонажи с состоянием "uncertain" не трогаются.
func (su *StateUpdater) UpdateCharacterProgression(ctx context.Context, storyID uuid.UUID, sketch string) bool {
	characters, err := su.characterRepo.ListByStory(ctx, storyID)
	if err != nil {
		su.logger.Error("Не удалось загрузить персонажей для прогрессии", zap.Error(err))
		return false
	}
	if len(characters) == 0 {
		return true
	}

	for _, ch := range characters {
		newState := ExtractEmotionalState(sketch, ch.Name)
		if newState == "" || newState == "uncertain" {
			continue
		}
		arcStage := DetermineArcStage(sketch, ch.Name)
		if err := su.characterRepo.UpdateNarrativeState(ctx, ch.CharacterID, newState, arcStage); err != nil {
			su.logger.Error("Не удалось обновить состояние персонажа",
				zap.String("character", ch.Name), zap.Error(err))
			return false
		}
	}
	return true
}

// SaveCritique сохраняет одну редакторскую заметку.
func (su *StateUpdater) SaveCritique(ctx context.Context, storyID uuid.UUID, pageNumber int, critiqueType, content string, improvements []string, severity int) error {
	return su.critiqueRepo.Create(ctx, &model.Critique{
		StoryID:               storyID,
		PageNumber:            pageNumber,
		CritiqueType:          critiqueType,
		CritiqueContent:       content,
		SuggestedImprovements: improvements,
		SeverityLevel:         severity,
		IsResolved:            false,
	})
}

// SaveRoster сохраняет извлеченный при создании истории ростер персонажей.
func (su *StateUpdater) SaveRoster(ctx context.Context, storyID uuid.UUID, data *model.CharacterData) error {
	rows := make([]*model.Character, 0, len(data.MainCharacters)+len(data.SecondaryCharacters))
	for i := range data.MainCharacters {
		rows = append(rows, extractedToCharacter(storyID, &data.MainCharacters[i], true))
	}
	for i := range data.SecondaryCharacters {
		rows = append(rows, extractedToCharacter(storyID, &data.SecondaryCharacters[i], false))
	}
	if len(rows) == 0 {
		return nil
	}
	return su.characterRepo.CreateBatch(ctx, rows)
}

// SaveNewCharacters дописывает в ростер персонажей, появившихся на продолжении.
func (su *StateUpdater) SaveNewCharacters(ctx context.Context, storyID uuid.UUID, newChars []model.ExtractedCharacter) error {
	if len(newChars) == 0 {
		return nil
	}
	rows := make([]*model.Character, 0, len(newChars))
	for i := range newChars {
		rows = append(rows, extractedToCharacter(storyID, &newChars[i], false))
	}
	return su.characterRepo.CreateBatch(ctx, rows)
}

// extractedToCharacter превращает результат экстракции в строку таблицы персонажей.
func extractedToCharacter(storyID uuid.UUID, ec *model.ExtractedCharacter, isMain bool) *model.Character {
	ch := &model.Character{
		StoryID:               storyID,
		Name:                  ec.Name,
		Age:                   safeInt(ec.Age),
		IsMain:                isMain,
		CurrentEmotionalState: ec.CurrentEmotionalState,
		CharacterArcStage:     ec.CharacterArcStage,
		LastAction:            ec.LastAction,
		MotivationEvolution:   ec.MotivationEvolution,
		PersonalityTraits:     ec.PersonalityTraits,
	}
	if ch.CharacterArcStage == "" {
		ch.CharacterArcStage = "introduction"
	}
	if ec.Role != "" {
		ch.Role = &ec.Role
	}
	if ec.CoreDesire != "" {
		ch.CoreDesire = &ec.CoreDesire
	}
	if ec.DeepestFear != "" {
		ch.DeepestFear = &ec.DeepestFear
	}

	if isMain || ec.Description == "" {
		description := fmt.Sprintf("Desire: %s, Fear: %s, Status: %s", ec.CoreDesire, ec.DeepestFear, ec.CurrentStatus)
		ch.Description = &description
	} else {
		ch.Description = &ec.Description
	}
	if !isMain && ec.Relationship != "" {
		ch.Relationship = &ec.Relationship
	}
	return ch
}

// safeInt приводит "возраст" из JSON к числу: модели возвращают
// то number, то строку, то мусор.
func safeInt(value any) *int {
	switch v := value.(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		return &v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return &n
		}
	}
	return nil
}

// SaveInitialRelationships сохраняет связи, извлеченные при создании истории.
// Связи с именами, которых нет в ростере, молча отбрасываются.
func (su *StateUpdater) SaveInitialRelationships(ctx context.Context, storyID uuid.UUID, data *model.CharacterData) error {
	if len(data.Relationships) == 0 {
		return nil
	}

	characterMap, err := su.characterNameMap(ctx, storyID)
	if err != nil {
		return err
	}

	var rows []*model.Relationship
	for _, rel := range data.Relationships {
		c1, ok1 := characterMap[rel.Character1Name]
		c2, ok2 := characterMap[rel.Character2Name]
		if !ok1 || !ok2 {
			continue
		}
		relType := rel.RelationshipType
		if relType == "" {
			relType = "unspecified"
		}
		rows = append(rows, &model.Relationship{
			StoryID:              storyID,
			Character1ID:         c1,
			Character2ID:         c2,
			RelationshipType:     relType,
			RelationshipStrength: 5,
			RelationshipStatus:   "developing",
		})
	}

	if len(rows) == 0 {
		return nil
	}
	return su.relationshipRepo.CreateBatch(ctx, rows)
}

// SaveNewCharacterRelationships связывает новых персонажей с главным героем
// по их relationship_to_main. Вызывается ПОСЛЕ сохранения новых персонажей
// в ростер, иначе их идентификаторы не зарезолвятся.
func (su *StateUpdater) SaveNewCharacterRelationships(ctx context.Context, storyID uuid.UUID, newChars []model.ExtractedCharacter) error {
	if len(newChars) == 0 {
		return nil
	}

	characters, err := su.characterRepo.ListByStory(ctx, storyID)
	if err != nil {
		return err
	}

	var mainID *uuid.UUID
	nameMap := make(map[string]uuid.UUID, len(characters))
	for _, ch := range characters {
		nameMap[ch.Name] = ch.CharacterID
		if ch.IsMain && mainID == nil {
			id := ch.CharacterID
			mainID = &id
		}
	}
	if mainID == nil {
		su.logger.Warn("Главный персонаж не найден, связи новых персонажей пропущены",
			zap.String("storyID", storyID.String()))
		return nil
	}

	var rows []*model.Relationship
	for _, nc := range newChars {
		if nc.RelationshipToMain == "" {
			continue
		}
		newID, ok := nameMap[nc.Name]
		if !ok {
			su.logger.Warn("Новый персонаж не найден в ростере", zap.String("name", nc.Name))
			continue
		}
		rows = append(rows, &model.Relationship{
			StoryID:              storyID,
			Character1ID:         *mainID,
			Character2ID:         newID,
			RelationshipType:     nc.RelationshipToMain,
			RelationshipStrength: 5,
			RelationshipStatus:   "developing",
		})
	}

	if len(rows) == 0 {
		return nil
	}
	return su.relationshipRepo.CreateBatch(ctx, rows)
}

// LoadContinuityRules загружает активные правила непрерывности истории.
// При ошибке возвращает пустой список - генерация продолжается без правил.
func (su *StateUpdater) LoadContinuityRules(ctx context.Context, storyID uuid.UUID) []model.ContinuityRule {
	rules, err := su.continuityRepo.ListActive(ctx, storyID)
	if err != nil {
		su.logger.Warn("Не удалось загрузить правила непрерывности", zap.Error(err))
		return nil
	}
	return rules
}

// FormatContinuityRules форматирует правила для промта: блок критичных
// целиком, затем не более пяти важных.
func FormatContinuityRules(rules []model.ContinuityRule) string {
	if len(rules) == 0 {
		return ""
	}

	var critical, important []model.ContinuityRule
	for _, r := range rules {
		switch r.PriorityLevel {
		case 1:
			critical = append(critical, r)
		case 2:
			important = append(important, r)
		}
	}

	var lines []string
	if len(critical) > 0 {
		lines = append(lines, "CRITICAL CONTINUITY RULES (MUST FOLLOW):")
		for _, r := range critical {
			lines = append(lines, "- "+r.RuleDescription)
		}
	}
	if len(important) > 0 {
		lines = append(lines, "\nIMPORTANT CONTINUITY RULES:")
		if len(important) > 5 {
			important = important[:5]
		}
		for _, r := range important {
			lines = append(lines, "- "+r.RuleDescription)
		}
	}

	return strings.Join(lines, "\n")
}

// AutoGenerateContinuityRules выводит базовые правила из ростера:
// черты характера и мотивации становятся критичными правилами.
func (su *StateUpdater) AutoGenerateContinuityRules(ctx context.Context, storyID uuid.UUID, data *model.CharacterData) int {
	created := 0
	groups := [][]model.ExtractedCharacter{data.MainCharacters, data.SecondaryCharacters}
	for _, group := range groups {
		for _, ch := range group {
			if len(ch.PersonalityTraits) > 0 {
				traits := ch.PersonalityTraits
				if len(traits) > 2 {
					traits = traits[:2]
				}
				desc := fmt.Sprintf("%s is %s - maintain these traits", ch.Name, strings.Join(traits, ", "))
				if su.saveContinuityRule(ctx, storyID, "character_trait", desc, 1) {
					created++
				}
			}
			if ch.CoreDesire != "" {
				desc := fmt.Sprintf("%s wants %s - this drives their actions", ch.Name, ch.CoreDesire)
				if su.saveContinuityRule(ctx, storyID, "character_motivation", desc, 1) {
					created++
				}
			}
		}
	}
	su.logger.Info("Базовые правила непрерывности созданы", zap.Int("count", created))
	return created
}

func (su *StateUpdater) saveContinuityRule(ctx context.Context, storyID uuid.UUID, ruleType, description string, priority int) bool {
	err := su.continuityRepo.Create(ctx, &model.ContinuityRule{
		StoryID:         storyID,
		RuleType:        ruleType,
		RuleDescription: description,
		PriorityLevel:   priority,
		IsActive:        true,
	})
	if err != nil {
		su.logger.Error("Не удалось сохранить правило непрерывности", zap.Error(err))
		return false
	}
	return true
}

// GetContextChanges сравнивает снимки контекста страницы и предыдущей.
// Если какого-то из снимков нет, изменений нет.
func (su *StateUpdater) GetContextChanges(ctx context.Context, storyID uuid.UUID, pageNumber int) *ContextChanges {
	changes := &ContextChanges{}

	current, err := su.contextRepo.GetByPage(ctx, storyID, pageNumber)
	if err != nil {
		su.logger.Debug("Снимок текущей страницы отсутствует", zap.Int("pageNumber", pageNumber), zap.Error(err))
		return changes
	}
	previous, err := su.contextRepo.GetByPage(ctx, storyID, pageNumber-1)
	if err != nil {
		su.logger.Debug("Снимок предыдущей страницы отсутствует", zap.Int("pageNumber", pageNumber-1), zap.Error(err))
		return changes
	}

	if current.CurrentLocation != previous.CurrentLocation {
		changes.LocationChanged = &FieldChange{From: previous.CurrentLocation, To: current.CurrentLocation}
	}
	if current.MoodAtmosphere != previous.MoodAtmosphere {
		changes.MoodChanged = &FieldChange{From: previous.MoodAtmosphere, To: current.MoodAtmosphere}
	}
	return changes
}

// SaveInitialContext сохраняет контекст первой страницы, события и
// автогенерирует правила непрерывности.
func (su *StateUpdater) SaveInitialContext(ctx context.Context, storyID uuid.UUID, sketch, content string, data *model.CharacterData) bool {
	contextSaved := su.SaveContextSnapshot(ctx, storyID, 1, sketch)
	eventsSaved := su.SaveEvents(ctx, storyID, 1, content)
	rulesCreated := su.AutoGenerateContinuityRules(ctx, storyID, data)

	su.logger.Info("Начальное состояние истории сохранено",
		zap.String("storyID", storyID.String()),
		zap.Bool("contextSaved", contextSaved),
		zap.Bool("eventsSaved", eventsSaved),
		zap.Int("rulesCreated", rulesCreated))

	return contextSaved && eventsSaved
}

// characterNameMap строит карту имя -> идентификатор по ростеру истории.
func (su *StateUpdater) characterNameMap(ctx context.Context, storyID uuid.UUID) (map[string]uuid.UUID, error) {
	characters, err := su.characterRepo.ListByStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	m := make(map[string]uuid.UUID, len(characters))
	for _, ch := range characters {
		m[ch.Name] = ch.CharacterID
	}
	return m, nil
}
