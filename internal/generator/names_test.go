package generator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRandomUserNameProvider_FetchNames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("results"))
		assert.Contains(t, r.URL.Query().Get("nat"), "GB")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"gender": "female", "name": {"first": "Elena", "last": "Voss"}, "dob": {"age": 34}, "nat": "DE"},
			{"gender": "male", "name": {"first": "Mads", "last": "Olsen"}, "dob": {"age": 61}, "nat": "DK"}
		]}`))
	}))
	defer server.Close()

	provider := NewRandomUserNameProvider(server.URL, time.Second, zap.NewNop())

	names := provider.FetchNames(context.Background(), 2)

	require.Len(t, names, 2)
	assert.Equal(t, "Elena Voss\nAge:34\nGender: female\nNationality: DE\n\n", names[0])
	assert.Equal(t, "Mads Olsen\nAge:61\nGender: male\nNationality: DK\n\n", names[1])
}

func TestRandomUserNameProvider_FailOpen(t *testing.T) {
	t.Run("не-200 статус", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		provider := NewRandomUserNameProvider(server.URL, time.Second, zap.NewNop())
		assert.Empty(t, provider.FetchNames(context.Background(), 3))
	})

	t.Run("сервер недоступен", func(t *testing.T) {
		provider := NewRandomUserNameProvider("http://127.0.0.1:1", 100*time.Millisecond, zap.NewNop())
		assert.Empty(t, provider.FetchNames(context.Background(), 3))
	})

	t.Run("битый JSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer server.Close()

		provider := NewRandomUserNameProvider(server.URL, time.Second, zap.NewNop())
		assert.Empty(t, provider.FetchNames(context.Background(), 3))
	})
}
