package generator

import (
	"regexp"
	"strings"
)

// Регэксповые эвристики извлекают структурированный контекст из текста скетча.
// Скетч строится по фиксированному шаблону с заголовками секций, поэтому
// простые line-anchored паттерны здесь надежнее, чем модельная экстракция.

var (
	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Location[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)Setting[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)Where[:\s]*([^\n]+)`),
	}
	conflictPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)conflict[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)tension[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)problem[:\s]*([^\n]+)`),
	}
	moodPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Tone[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)Mood[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)Atmosphere[:\s]*([^\n]+)`),
	}
	themePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Theme[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)main point[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)story about[:\s]*([^\n]+)`),
	}
	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Time[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)Era[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)When[:\s]*([^\n]+)`),
	}
	foreshadowingPattern = regexp.MustCompile(`(?i)Foreshadowing[:\s]*([^\n]+)`)
	pacingPattern        = regexp.MustCompile(`(?i)Pacing[:\s]*([^\n]+)`)
	tensionPattern       = regexp.MustCompile(`(?i)Tension[:\s]*([^\n]+)`)
)

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func allMatches(p *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range p.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// ExtractLocation ищет локацию сцены в скетче.
func ExtractLocation(sketch string) string {
	return firstMatch(locationPatterns, sketch)
}

// ExtractConflicts собирает конфликты из скетча, не более трех.
func ExtractConflicts(sketch string) []string {
	var conflicts []string
	for _, p := range conflictPatterns {
		conflicts = append(conflicts, allMatches(p, sketch)...)
	}
	if len(conflicts) > 3 {
		conflicts = conflicts[:3]
	}
	return conflicts
}

// ExtractMood ищет настроение/атмосферу сцены.
func ExtractMood(sketch string) string {
	return firstMatch(moodPatterns, sketch)
}

// ExtractTheme ищет основную тему истории.
func ExtractTheme(sketch string) string {
	return firstMatch(themePatterns, sketch)
}

// ExtractTimeContext ищет временной контекст сцены.
func ExtractTimeContext(sketch string) string {
	return firstMatch(timePatterns, sketch)
}

// ExtractForeshadowing собирает все элементы предвосхищения.
func ExtractForeshadowing(sketch string) []string {
	return allMatches(foreshadowingPattern, sketch)
}

// ExtractPacingNotes ищет заметки о темпе повествования.
func ExtractPacingNotes(sketch string) string {
	if m := pacingPattern.FindStringSubmatch(sketch); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ExtractUnresolvedTensions собирает все упоминания напряжений.
func ExtractUnresolvedTensions(sketch string) []string {
	return allMatches(tensionPattern, sketch)
}

// Словарь эмоций для fallback-поиска, когда рядом с именем персонажа
// нет явной конструкции "feels/is/becomes".
var emotionalVocabulary = []string{
	"angry",
	"sad",
	"happy",
	"confused",
	"determined",
	"fearful",
	"hopeful",
	"desperate",
}

// ExtractEmotionalState определяет эмоциональное состояние персонажа по скетчу.
// Возвращает "uncertain", если ничего не нашлось.
func ExtractEmotionalState(sketch, characterName string) string {
	pattern := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(characterName) + `[^\n]*?(?:feels?|is|becomes?)\s+([^,.\n]+)`)
	if m := pattern.FindStringSubmatch(sketch); m != nil {
		return strings.TrimSpace(m[1])
	}

	sketchLower := strings.ToLower(sketch)
	if strings.Contains(sketchLower, strings.ToLower(characterName)) {
		for _, word := range emotionalVocabulary {
			if strings.Contains(sketchLower, word) {
				return word
			}
		}
	}

	return "uncertain"
}

// DetermineArcStage определяет стадию арки персонажа по ключевым глаголам.
// Порядок проверки фиксирован: realizes > confronts > decides > changes.
func DetermineArcStage(sketch, characterName string) string {
	sketchLower := strings.ToLower(sketch)
	nameLower := strings.ToLower(characterName)

	if !strings.Contains(sketchLower, nameLower) {
		return "development"
	}

	switch {
	case strings.Contains(sketchLower, "realizes"):
		return "realization"
	case strings.Contains(sketchLower, "confronts"):
		return "confrontation"
	case strings.Contains(sketchLower, "decides"):
		return "decision"
	case strings.Contains(sketchLower, "changes"):
		return "transformation"
	default:
		return "development"
	}
}
