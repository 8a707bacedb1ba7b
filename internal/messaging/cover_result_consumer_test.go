package messaging

import (
	"context"
	"errors"
	"testing"

	"story-server/internal/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestCoverResultConsumer(stories *mocks.MockStoryRepository) *RabbitMQCoverResultConsumer {
	return &RabbitMQCoverResultConsumer{
		queueName: "cover_image_results",
		stories:   stories,
		logger:    zerolog.Nop(),
	}
}

func TestCoverResultConsumer_ProcessResult(t *testing.T) {
	storyID := uuid.New()

	t.Run("Валидный результат сохраняет URL обложки", func(t *testing.T) {
		stories := &mocks.MockStoryRepository{}
		c := newTestCoverResultConsumer(stories)

		stories.On("UpdateCoverImageURL", mock.Anything, storyID, "https://cdn.example.com/covers/a.png").
			Return(nil).Once()

		body := []byte(`{"story_id": "` + storyID.String() + `", "url": "https://cdn.example.com/covers/a.png"}`)
		err := c.processResult(context.Background(), body)

		assert.NoError(t, err)
		stories.AssertExpectations(t)
	})

	t.Run("Битый JSON помечается как некорректный", func(t *testing.T) {
		stories := &mocks.MockStoryRepository{}
		c := newTestCoverResultConsumer(stories)

		err := c.processResult(context.Background(), []byte(`{"story_id": `))

		assert.True(t, isMalformedResult(err))
		stories.AssertNotCalled(t, "UpdateCoverImageURL")
	})

	t.Run("Пустой story_id помечается как некорректный", func(t *testing.T) {
		stories := &mocks.MockStoryRepository{}
		c := newTestCoverResultConsumer(stories)

		err := c.processResult(context.Background(), []byte(`{"url": "https://cdn.example.com/covers/a.png"}`))

		assert.True(t, isMalformedResult(err))
		stories.AssertNotCalled(t, "UpdateCoverImageURL")
	})

	t.Run("Пустой url помечается как некорректный", func(t *testing.T) {
		stories := &mocks.MockStoryRepository{}
		c := newTestCoverResultConsumer(stories)

		err := c.processResult(context.Background(), []byte(`{"story_id": "`+storyID.String()+`", "url": "  "}`))

		assert.True(t, isMalformedResult(err))
		stories.AssertNotCalled(t, "UpdateCoverImageURL")
	})

	t.Run("Ошибка хранилища не считается некорректным сообщением", func(t *testing.T) {
		stories := &mocks.MockStoryRepository{}
		c := newTestCoverResultConsumer(stories)

		dbErr := errors.New("connection reset")
		stories.On("UpdateCoverImageURL", mock.Anything, storyID, "https://cdn.example.com/covers/a.png").
			Return(dbErr).Once()

		body := []byte(`{"story_id": "` + storyID.String() + `", "url": "https://cdn.example.com/covers/a.png"}`)
		err := c.processResult(context.Background(), body)

		assert.ErrorIs(t, err, dbErr)
		assert.False(t, isMalformedResult(err))
		stories.AssertExpectations(t)
	})
}
