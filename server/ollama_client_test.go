package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estimator/internal/config"
	"estimator/matching"
)

func newTestOllamaClient(baseURL string) *OllamaClient {
	c := NewOllamaClient(&config.Config{
		OllamaBaseURL: baseURL,
		OllamaModel:   "qwen2.5:3b",
		OllamaTimeout: 5 * time.Second,
		OllamaRPS:     1000, // лимитер не должен тормозить тесты
	})
	c.retryConfig.InitialDelay = time.Millisecond
	c.retryConfig.MaxDelay = 5 * time.Millisecond
	return c
}

func sampleReport() *matching.Report {
	return matching.Aggregate([]matching.MatchResult{
		{
			Found:               true,
			Input:               "Щит вводной 3ф 25А",
			Article:             "A1",
			CabinetCode:         "ШУ-1",
			ProjectCode:         "П-100",
			AssemblyTimeMinutes: 30,
		},
		{Found: false, Input: "Неизвестная деталь"},
	})
}

func TestOllamaClient_FormatReport(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "  Отчет сформирован.  "})
	}))
	defer srv.Close()

	c := newTestOllamaClient(srv.URL)
	text, err := c.FormatReport(context.Background(), sampleReport())
	require.NoError(t, err)

	assert.Equal(t, "Отчет сформирован.", text)
	assert.Equal(t, "qwen2.5:3b", got.Model)
	assert.False(t, got.Stream)
	assert.Contains(t, got.Prompt, "Общее время: 30 минут")
	assert.Contains(t, got.Prompt, `Шкаф "ШУ-1": 30 минут`)
	assert.Contains(t, got.Prompt, "Неизвестная деталь")
}

func TestOllamaClient_RetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "готово"})
	}))
	defer srv.Close()

	c := newTestOllamaClient(srv.URL)
	text, err := c.FormatChatOnly(context.Background(), "привет", nil)
	require.NoError(t, err)
	assert.Equal(t, "готово", text)
	assert.Equal(t, 3, calls)
}

func TestOllamaClient_GivesUpAfterRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestOllamaClient(srv.URL)
	_, err := c.FormatChatOnly(context.Background(), "привет", nil)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "после 3 попыток")
}

func TestOllamaClient_EmptyResponseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "   "})
	}))
	defer srv.Close()

	c := newTestOllamaClient(srv.URL)
	_, err := c.FormatChatOnly(context.Background(), "привет", nil)
	require.Error(t, err)
}

func TestRenderReport_Stable(t *testing.T) {
	report := sampleReport()
	first := renderReport(report)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, renderReport(report))
	}
}

func TestRenderHistory_KeepsLastFive(t *testing.T) {
	var history []ChatMessage
	for i := 0; i < 8; i++ {
		history = append(history, ChatMessage{Role: "user", Content: string(rune('а' + i))})
	}
	got := renderHistory(history)
	assert.NotContains(t, got, "Пользователь: а")
	assert.Contains(t, got, "Пользователь: з")

	// неизвестные роли отбрасываются
	got = renderHistory([]ChatMessage{{Role: "system", Content: "скрыто"}})
	assert.Empty(t, got)
}
