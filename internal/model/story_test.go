package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoryMetadata_Fields(t *testing.T) {
	t.Run("возвращаются только непустые поля", func(t *testing.T) {
		meta := StoryMetadata{
			MainTheme:    "grief",
			StorySummary: "a keeper and the sea",
		}

		fields := meta.Fields()

		assert.Equal(t, map[string]string{
			"main_theme":    "grief",
			"story_summary": "a keeper and the sea",
		}, fields)
	})

	t.Run("пустые метаданные дают пустую карту", func(t *testing.T) {
		assert.Empty(t, StoryMetadata{}.Fields())
	})

	t.Run("current_status не попадает в карту", func(t *testing.T) {
		// Статус обновляется отдельным параметром, не через метаданные
		fields := StoryMetadata{CurrentStatus: "active", MainTheme: "grief"}.Fields()

		assert.NotContains(t, fields, "current_status")
		assert.Contains(t, fields, "main_theme")
	})
}
