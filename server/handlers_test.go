package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estimator/database"
	"estimator/internal/config"
	"estimator/matching"
)

// fakeCatalog заглушка базы каталога для тестов транспорта.
type fakeCatalog struct {
	items    []matching.CatalogItem
	failWith error
}

func (f *fakeCatalog) FetchCatalog(ctx context.Context) ([]matching.CatalogItem, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.items, nil
}

func (f *fakeCatalog) FetchCandidatesByTrigrams(ctx context.Context, trigrams []string, limit int, projectCode, cabinetCode string) ([]matching.CatalogItem, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	// Шкаф учитывается только вместе с проектом, как в хранилище
	var out []matching.CatalogItem
	for _, item := range f.items {
		if projectCode == "" {
			out = append(out, item)
			continue
		}
		if item.ProjectCode != projectCode {
			continue
		}
		if cabinetCode != "" && item.CabinetCode != cabinetCode {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeCatalog) Stats(ctx context.Context) (*database.CatalogStats, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &database.CatalogStats{Items: len(f.items)}, nil
}

// fakeTextGen детерминированный генератор текста.
type fakeTextGen struct {
	failWith error
}

func (f *fakeTextGen) FormatReport(ctx context.Context, report *matching.Report) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	return "отчет готов", nil
}

func (f *fakeTextGen) FormatChatReply(ctx context.Context, message string, history []ChatMessage, report *matching.Report) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	return "ответ с данными", nil
}

func (f *fakeTextGen) FormatChatOnly(ctx context.Context, message string, history []ChatMessage) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	return "просто ответ", nil
}

func testServer(catalog *fakeCatalog, textGen TextGenerator) *Server {
	cfg := &config.Config{
		Port:            "8080",
		StaticDir:       "web",
		DatabasePath:    "catalog.db",
		FuzzyThreshold:  0.3,
		NGramSize:       3,
		MaxCandidates:   50,
		UseTrigramIndex: true,
		OllamaTimeout:   time.Minute,
		OllamaRPS:       1,
	}
	s := NewServer(cfg, catalog)
	s.textGen = textGen
	return s
}

func catalogItems() []matching.CatalogItem {
	norm := matching.NewNormalizer("")
	name := "Щит вводной 3ф 25А"
	return []matching.CatalogItem{{
		Article:             "A1",
		Name:                name,
		NameNorm:            norm.Normalize(name),
		CabinetCode:         "ШУ-1",
		ProjectCode:         "П-100",
		AssemblyTimeMinutes: 30,
	}}
}

func doJSON(t *testing.T, s *Server, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestHandleEstimate(t *testing.T) {
	s := testServer(&fakeCatalog{items: catalogItems()}, nil)

	w := doJSON(t, s, "/api/v1/estimate", EstimateRequest{
		Names: []string{"Щит вводной 3ф 25А", "Неизвестная деталь"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp EstimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Len(t, resp.FoundItems, 1)
	assert.Equal(t, "A1", resp.FoundItems[0].Article)
	assert.Equal(t, 1.0, resp.FoundItems[0].Score)
	assert.Equal(t, []string{"Неизвестная деталь"}, resp.NotFoundItems)
	assert.Equal(t, 30, resp.TotalTimeByCabinet["ШУ-1"])
}

func TestHandleEstimate_EmptyNames(t *testing.T) {
	s := testServer(&fakeCatalog{items: catalogItems()}, nil)

	w := doJSON(t, s, "/api/v1/estimate", map[string]interface{}{"names": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEstimate_StoreUnavailable(t *testing.T) {
	s := testServer(&fakeCatalog{failWith: errors.New("диск отвалился")}, nil)

	w := doJSON(t, s, "/api/v1/estimate", EstimateRequest{Names: []string{"Щит"}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["error"])
}

func TestHandleEstimate_ReportText(t *testing.T) {
	s := testServer(&fakeCatalog{items: catalogItems()}, &fakeTextGen{})

	w := doJSON(t, s, "/api/v1/estimate", EstimateRequest{
		Names:        []string{"Щит вводной 3ф 25А"},
		FormatReport: true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp EstimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "отчет готов", resp.ReportText)
	assert.Empty(t, resp.Warnings)
}

// Отказ генератора текста не ломает расчет: числа возвращаются всегда.
func TestHandleEstimate_ReportTextDegrades(t *testing.T) {
	s := testServer(&fakeCatalog{items: catalogItems()},
		&fakeTextGen{failWith: errors.New("таймаут")})

	w := doJSON(t, s, "/api/v1/estimate", EstimateRequest{
		Names:        []string{"Щит вводной 3ф 25А"},
		FormatReport: true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp EstimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.ReportText)
	assert.NotEmpty(t, resp.Warnings)
	require.Len(t, resp.FoundItems, 1)
}

func TestHandleChat_ModeChatSkipsPipeline(t *testing.T) {
	s := testServer(&fakeCatalog{items: catalogItems()}, &fakeTextGen{})

	// Наименования переданы, но режим chat запрещает поиск
	w := doJSON(t, s, "/api/v1/chat", ChatRequest{
		Message: "привет",
		Names:   []string{"Щит вводной 3ф 25А"},
		Mode:    "chat",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "просто ответ", resp.Reply)
	assert.Empty(t, resp.Data.FoundItems)
}

func TestHandleChat_ModeAuto(t *testing.T) {
	s := testServer(&fakeCatalog{items: catalogItems()}, &fakeTextGen{})

	// auto с наименованиями: поиск выполняется
	w := doJSON(t, s, "/api/v1/chat", ChatRequest{
		Message: "посчитай",
		Names:   []string{"Щит вводной 3ф 25А"},
		Mode:    "auto",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ответ с данными", resp.Reply)
	require.Len(t, resp.Data.FoundItems, 1)

	// auto без наименований: разговорная ветка
	w = doJSON(t, s, "/api/v1/chat", ChatRequest{Message: "привет", Mode: "auto"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "просто ответ", resp.Reply)
}

// estimate без наименований — пустой отчет, не ошибка.
func TestHandleChat_ModeEstimateWithoutNames(t *testing.T) {
	s := testServer(&fakeCatalog{items: catalogItems()}, &fakeTextGen{})

	w := doJSON(t, s, "/api/v1/chat", ChatRequest{Message: "посчитай", Mode: "estimate"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data.FoundItems)
	assert.Empty(t, resp.Data.NotFoundItems)
	assert.NotEmpty(t, resp.Data.Warnings)
}

func TestHandleChat_UnknownMode(t *testing.T) {
	s := testServer(&fakeCatalog{items: catalogItems()}, &fakeTextGen{})

	w := doJSON(t, s, "/api/v1/chat", ChatRequest{Message: "привет", Mode: "search"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat_StoreUnavailable(t *testing.T) {
	s := testServer(&fakeCatalog{failWith: errors.New("база заблокирована")}, &fakeTextGen{})

	w := doJSON(t, s, "/api/v1/chat", ChatRequest{
		Message: "посчитай",
		Names:   []string{"Щит"},
		Mode:    "estimate",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Reply, "Попробуйте")
}

func TestHandleHealth(t *testing.T) {
	s := testServer(&fakeCatalog{items: catalogItems()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHandleHealth_Degraded(t *testing.T) {
	s := testServer(&fakeCatalog{failWith: errors.New("нет файла")}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
