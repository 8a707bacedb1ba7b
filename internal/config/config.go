package config

import (
	"fmt"
	"log"
	"time"

	"story-server/internal/utils"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию для Story Server
type Config struct {
	// Настройки сервера
	Port        string `envconfig:"SERVER_PORT" default:"8090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// Настройки PostgreSQL
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`
	DBSSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns int    `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Настройки Redis (блокировка продолжений per-story)
	RedisAddr    string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB      int           `envconfig:"REDIS_DB" default:"0"`
	StoryLockTTL time.Duration `envconfig:"STORY_LOCK_TTL" default:"10m"`
	// Секретное поле БЕЗ envconfig тега
	RedisPassword string

	// Настройки RabbitMQ
	RabbitMQURL      string `envconfig:"RABBITMQ_URL" required:"true"`
	CoverTaskQueue   string `envconfig:"COVER_TASK_QUEUE" default:"cover_image_tasks"`
	CoverResultQueue string `envconfig:"COVER_RESULT_QUEUE" default:"cover_image_results"`

	// Настройки AI клиента
	AIClientType   string        `envconfig:"AI_CLIENT_TYPE" default:"ollama"` // ollama или openai
	AIBaseURL      string        `envconfig:"AI_BASE_URL" default:"http://localhost:11434"`
	AIModel        string        `envconfig:"AI_MODEL" default:"gemma3:12b"`
	AIExtractModel string        `envconfig:"AI_EXTRACT_MODEL" default:"mistral"` // Модель для JSON-экстракции
	AITimeout      time.Duration `envconfig:"AI_TIMEOUT" default:"300s"`
	// Секретное поле БЕЗ envconfig тега (нужен только для openai)
	AIAPIKey string

	// Модель эмбеддингов для оценки семантической близости
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"all-minilm"`

	// Пороги схожести для гейтов генерации.
	// Черновик продолжения принимается строго внутри (DraftLower, DraftUpper):
	// слишком похож на прошлую страницу - повтор, слишком не похож - разрыв сюжета.
	DraftSimilarityLower float64 `envconfig:"AI_DRAFT_SIM_LOWER" default:"0.70"`
	DraftSimilarityUpper float64 `envconfig:"AI_DRAFT_SIM_UPPER" default:"0.89"`
	DraftMaxAttempts     int     `envconfig:"AI_DRAFT_MAX_ATTEMPTS" default:"8"`
	FinalSimilarityLower float64 `envconfig:"AI_FINAL_SIM_LOWER" default:"0.83"`
	FinalSimilarityUpper float64 `envconfig:"AI_FINAL_SIM_UPPER" default:"0.92"`
	FinalMaxRetries      int     `envconfig:"AI_FINAL_MAX_RETRIES" default:"2"`

	// Внешний сервис случайных имен для затравки скетчей
	NamesAPIURL     string        `envconfig:"NAMES_API_URL" default:"https://randomuser.me/api/"`
	NamesAPITimeout time.Duration `envconfig:"NAMES_API_TIMEOUT" default:"5s"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	// Пароль теперь в c.DBPassword
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов
func LoadConfig() (*Config, error) {
	var cfg Config
	// Загружаем НЕсекретные переменные
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации story-server: %w", err)
	}

	// Загружаем ОБЯЗАТЕЛЬНЫЕ секреты
	var loadErr error
	cfg.DBPassword, loadErr = utils.ReadSecret("db_password")
	if loadErr != nil {
		return nil, loadErr
	}

	// Пароль Redis опционален (локальный Redis обычно без пароля)
	cfg.RedisPassword, _ = utils.ReadSecret("redis_password")

	// API ключ нужен только для openai
	if cfg.AIClientType == "openai" {
		cfg.AIAPIKey, loadErr = utils.ReadSecret("ai_api_key")
		if loadErr != nil {
			return nil, loadErr
		}
	}

	log.Printf("Конфигурация Story Server загружена (секреты из файлов):")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	log.Printf("  Redis Addr: %s", cfg.RedisAddr)
	log.Printf("  RabbitMQ URL: %s", cfg.RabbitMQURL)
	log.Printf("  Cover Queues: %s -> %s", cfg.CoverTaskQueue, cfg.CoverResultQueue)
	log.Printf("  AI Client: %s, Model: %s, Extract Model: %s", cfg.AIClientType, cfg.AIModel, cfg.AIExtractModel)
	log.Printf("  Embedding Model: %s", cfg.EmbeddingModel)
	log.Printf("  Draft gate: (%.2f, %.2f), max attempts: %d", cfg.DraftSimilarityLower, cfg.DraftSimilarityUpper, cfg.DraftMaxAttempts)
	log.Printf("  Final gate: (%.2f, %.2f), max retries: %d", cfg.FinalSimilarityLower, cfg.FinalSimilarityUpper, cfg.FinalMaxRetries)

	return &cfg, nil
}
