package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"story-server/internal/config"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// ErrSimilarityUnavailable - не удалось получить эмбеддинги для сравнения
var ErrSimilarityUnavailable = errors.New("сервис эмбеддингов недоступен")

// SimilarityScorer считает семантическую близость двух текстов.
// Используется как оракул качества на этапах draft и final.
type SimilarityScorer interface {
	// Score возвращает косинусную близость текстов в диапазоне [-1, 1].
	Score(ctx context.Context, a, b string) (float64, error)
}

// SimilarityGate - границы приемки для одного этапа генерации.
// Интервал строго открытый: score должен быть > Lower И < Upper.
type SimilarityGate struct {
	Lower float64
	Upper float64
}

// Accepts сообщает, попадает ли оценка строго внутрь интервала.
func (g SimilarityGate) Accepts(score float64) bool {
	return score > g.Lower && score < g.Upper
}

// ollamaSimilarityScorer реализует SimilarityScorer через embedding-модель Ollama
type ollamaSimilarityScorer struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

var _ SimilarityScorer = (*ollamaSimilarityScorer)(nil)

// NewOllamaSimilarityScorer создает scorer с embedding-моделью из конфигурации.
func NewOllamaSimilarityScorer(cfg *config.Config, logger *zap.Logger) (SimilarityScorer, error) {
	baseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга URL embedding-сервиса '%s': %w", baseURL, err)
	}

	logger.Info("Scorer семантической близости создан",
		zap.String("baseURL", baseURL), zap.String("embeddingModel", cfg.EmbeddingModel))

	return &ollamaSimilarityScorer{
		client: api.NewClient(parsedURL, nil),
		model:  cfg.EmbeddingModel,
		logger: logger.Named("SimilarityScorer"),
	}, nil
}

func (s *ollamaSimilarityScorer) Score(ctx context.Context, a, b string) (float64, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0, fmt.Errorf("%w: пустой текст для сравнения", ErrSimilarityUnavailable)
	}

	resp, err := s.client.Embed(ctx, &api.EmbedRequest{
		Model: s.model,
		Input: []string{a, b},
	})
	if err != nil {
		s.logger.Error("Ошибка получения эмбеддингов", zap.String("model", s.model), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrSimilarityUnavailable, err)
	}
	if len(resp.Embeddings) != 2 {
		return 0, fmt.Errorf("%w: ожидалось 2 эмбеддинга, получено %d", ErrSimilarityUnavailable, len(resp.Embeddings))
	}

	score, err := cosineSimilarity(resp.Embeddings[0], resp.Embeddings[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSimilarityUnavailable, err)
	}

	s.logger.Debug("Близость текстов посчитана", zap.Float64("score", score))
	return score, nil
}

// cosineSimilarity считает косинус угла между двумя векторами одинаковой длины.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("несовместимые размерности векторов: %d и %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, errors.New("нулевой вектор эмбеддинга")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
