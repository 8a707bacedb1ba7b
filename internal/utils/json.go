package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// isValidJSON проверяет, можно ли распарсить строку как JSON
func isValidJSON(s string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}

// balanceBrackets пытается добавить закрывающие скобки в конце строки.
// Скобки внутри строковых литералов игнорируются; закрывающие
// дописываются в порядке, обратном вложенности.
func balanceBrackets(text string) string {
	var stack []byte
	inString := false
	escape := false

	for _, r := range text {
		if escape {
			escape = false
			continue
		}
		if r == '\\' {
			escape = true
			continue
		}
		// Важно: Проверяем кавычку ДО проверки скобок
		if r == '"' {
			inString = !inString
		}
		// Считаем скобки только если мы НЕ внутри строки
		if !inString {
			switch r {
			case '{':
				stack = append(stack, '}')
			case '[':
				stack = append(stack, ']')
			case '}', ']':
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(text)
	// Незакрытую строку закрываем первой, иначе скобки попадут в литерал
	if inString {
		sb.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteByte(stack[i])
	}
	return sb.String()
}

// ExtractJSON вырезает JSON-объект или массив из произвольного текста ответа модели.
// Модели часто оборачивают JSON в markdown-блоки или добавляют комментарии до/после.
func ExtractJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	// Убираем markdown-ограждения ```json ... ```
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	if isValidJSON(text) {
		return text, nil
	}

	// Ищем первую открывающую скобку и последнюю закрывающую того же вида
	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")
	start := startObj
	endCh := "}"
	if start == -1 || (startArr != -1 && startArr < start) {
		start = startArr
		endCh = "]"
	}
	if start == -1 {
		return "", fmt.Errorf("в ответе модели не найден JSON")
	}

	candidate := text[start:]
	if end := strings.LastIndex(candidate, endCh); end >= 0 {
		trimmed := candidate[:end+1]
		if isValidJSON(trimmed) {
			return trimmed, nil
		}
	}

	// Последняя попытка: модель оборвала вывод, добиваем скобки
	balanced := balanceBrackets(candidate)
	if isValidJSON(balanced) {
		return balanced, nil
	}

	return "", fmt.Errorf("не удалось восстановить JSON из ответа модели")
}
