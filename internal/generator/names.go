package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const latinNationalities = "AU,BR,CA,CH,DE,DK,ES,FI,FR,GB,IE,NL,NZ,US,IN"

// NameProvider поставляет случайные имена-подсказки для скетча.
// Недоступность провайдера не должна ломать генерацию.
type NameProvider interface {
	// FetchNames возвращает num карточек имен. При любой ошибке
	// возвращается пустой срез без ошибки - генерация продолжается без подсказок.
	FetchNames(ctx context.Context, num int) []string
}

// randomUserNameProvider тянет имена из randomuser.me
type randomUserNameProvider struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ NameProvider = (*randomUserNameProvider)(nil)

// NewRandomUserNameProvider создает провайдера имен поверх randomuser.me.
func NewRandomUserNameProvider(baseURL string, timeout time.Duration, logger *zap.Logger) NameProvider {
	return &randomUserNameProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("NameProvider"),
	}
}

type randomUserResponse struct {
	Results []struct {
		Gender string `json:"gender"`
		Name   struct {
			First string `json:"first"`
			Last  string `json:"last"`
		} `json:"name"`
		Dob struct {
			Age int `json:"age"`
		} `json:"dob"`
		Nat string `json:"nat"`
	} `json:"results"`
}

func (p *randomUserNameProvider) FetchNames(ctx context.Context, num int) []string {
	// baseURL уже содержит путь /api/
	url := fmt.Sprintf("%s?results=%d&nat=%s", p.baseURL, num, latinNationalities)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.logger.Warn("Не удалось создать запрос к API имен", zap.Error(err))
		return nil
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("API имен недоступно, продолжаем без подсказок", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("API имен вернуло не-200 статус", zap.Int("status", resp.StatusCode))
		return nil
	}

	var parsed randomUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		p.logger.Warn("Не удалось распарсить ответ API имен", zap.Error(err))
		return nil
	}

	names := make([]string, 0, len(parsed.Results))
	for _, user := range parsed.Results {
		names = append(names, fmt.Sprintf("%s %s\nAge:%d\nGender: %s\nNationality: %s\n\n",
			user.Name.First, user.Name.Last, user.Dob.Age, user.Gender, user.Nat))
	}
	return names
}
