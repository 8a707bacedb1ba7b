package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_CleanObject(t *testing.T) {
	out, err := ExtractJSON(`{"title": "The Lighthouse"}`)

	require.NoError(t, err)
	assert.Equal(t, `{"title": "The Lighthouse"}`, out)
}

func TestExtractJSON_MarkdownFence(t *testing.T) {
	raw := "```json\n{\"title\": \"The Lighthouse\"}\n```"

	out, err := ExtractJSON(raw)

	require.NoError(t, err)
	assert.Equal(t, `{"title": "The Lighthouse"}`, out)
}

func TestExtractJSON_SurroundingCommentary(t *testing.T) {
	raw := `Here is the extracted data:
{"main_theme": "grief", "tags": ["sea", "loss"]}
Let me know if you need anything else.`

	out, err := ExtractJSON(raw)

	require.NoError(t, err)
	assert.JSONEq(t, `{"main_theme": "grief", "tags": ["sea", "loss"]}`, out)
}

func TestExtractJSON_Array(t *testing.T) {
	raw := "The events are:\n[{\"event_type\": \"discovery\"}, {\"event_type\": \"conflict_escalation\"}]"

	out, err := ExtractJSON(raw)

	require.NoError(t, err)
	assert.JSONEq(t, `[{"event_type": "discovery"}, {"event_type": "conflict_escalation"}]`, out)
}

func TestExtractJSON_TruncatedOutput(t *testing.T) {
	// Модель оборвала вывод посреди строкового литерала
	raw := `{"events": [{"event_type": "discovery", "event_description": "Elena finds the log`

	out, err := ExtractJSON(raw)

	require.NoError(t, err)
	assert.JSONEq(t, `{"events": [{"event_type": "discovery", "event_description": "Elena finds the log"}]}`, out)
}

func TestExtractJSON_BracketsInsideStrings(t *testing.T) {
	raw := `{"note": "a } inside a string", "done": true}`

	out, err := ExtractJSON(raw)

	require.NoError(t, err)
	assert.JSONEq(t, raw, out)
}

func TestExtractJSON_NoJSON(t *testing.T) {
	_, err := ExtractJSON("I could not produce any structured output, sorry.")

	assert.Error(t, err)
}
