package handler

import (
	"errors"
	"net/http"
	"strconv"

	"story-server/internal/model"
	"story-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultGenerateCount = 5
	maxGenerateCount     = 20
)

// StoryHandler - HTTP обработчики генерации историй.
type StoryHandler struct {
	storyService service.StoryService
	logger       *zap.Logger
}

// NewStoryHandler создает обработчик поверх сервиса историй.
func NewStoryHandler(storyService service.StoryService, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		storyService: storyService,
		logger:       logger.Named("StoryHandler"),
	}
}

// RegisterRoutes регистрирует маршруты обработчика.
func (h *StoryHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	stories := router.Group("/stories")
	{
		stories.POST("/generate", h.GenerateStories)
		stories.GET("/generate/new_page/:story_id", h.GenerateNextPage)
	}
}

// Health - проверка живости сервиса.
func (h *StoryHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GenerateStories обрабатывает POST /stories/generate?count=N.
// count в диапазоне [1, 20], по умолчанию 5. Запрос блокируется
// на все время генерации пакета.
func (h *StoryHandler) GenerateStories(c *gin.Context) {
	count := defaultGenerateCount
	if raw := c.Query("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxGenerateCount {
			c.JSON(http.StatusBadRequest, gin.H{"error": "параметр count должен быть целым числом от 1 до 20"})
			return
		}
		count = parsed
	}

	stories, err := h.storyService.GenerateAndStoreStories(c.Request.Context(), count)
	if err != nil {
		h.logger.Error("Ошибка генерации пакета историй", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ошибка генерации историй"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requested": count,
		"created":   len(stories),
		"stories":   stories,
	})
}

// GenerateNextPage обрабатывает GET /stories/generate/new_page/:story_id.
// Возвращает текст новой страницы. Запрос блокируется на все время
// работы пайплайна продолжения.
func (h *StoryHandler) GenerateNextPage(c *gin.Context) {
	storyID, err := uuid.Parse(c.Param("story_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный идентификатор истории"})
		return
	}

	content, err := h.storyService.GenerateAndStoreNextPage(c.Request.Context(), storyID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "история не найдена"})
		case errors.Is(err, model.ErrNoPagesFound):
			// У истории нет ни одной страницы - продолжать нечего
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "у истории нет страниц для продолжения"})
		case errors.Is(err, model.ErrStoryLocked):
			c.JSON(http.StatusConflict, gin.H{"error": "генерация этой истории уже выполняется"})
		default:
			h.logger.Error("Ошибка генерации следующей страницы",
				zap.String("storyID", storyID.String()), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ошибка генерации страницы"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"story_id": storyID,
		"content":  content,
	})
}
