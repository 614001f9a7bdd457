package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"estimator/internal/config"
	"estimator/matching"
)

// TextGenerator превращает отчет расчета в текст для пользователя.
// Любая его ошибка не критична: числа отчета возвращаются в любом случае.
type TextGenerator interface {
	FormatReport(ctx context.Context, report *matching.Report) (string, error)
	FormatChatReply(ctx context.Context, message string, history []ChatMessage, report *matching.Report) (string, error)
	FormatChatOnly(ctx context.Context, message string, history []ChatMessage) (string, error)
}

const reportSystemPrompt = "Ты — помощник-аналитик. Ты получаешь структурированные данные о найденных " +
	"позициях оборудования и расчете времени сборки. Составь ясный отчет: " +
	"краткая сводка, детали по проектам и шкафам, предупреждение о ненайденных позициях. " +
	"Используй только предоставленные данные. Будь лаконичен."

const chatSystemPrompt = "Ты — ассистент для расчета времени сборки оборудования. " +
	"Отвечай на русском языке, начинай с общего времени, затем разбивка по шкафам и проектам. " +
	"Используй только данные из результатов расчета."

// RetryConfig конфигурация повторных попыток
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// OllamaClient клиент локального сервиса генерации текста Ollama.
type OllamaClient struct {
	baseURL     string
	model       string
	httpClient  *http.Client
	limiter     *rate.Limiter
	retryConfig RetryConfig
}

// NewOllamaClient создает клиент Ollama из конфигурации сервиса.
// Ограничитель частоты защищает локальный инстанс от шквала запросов.
func NewOllamaClient(cfg *config.Config) *OllamaClient {
	return &OllamaClient{
		baseURL: strings.TrimRight(cfg.OllamaBaseURL, "/"),
		model:   cfg.OllamaModel,
		httpClient: &http.Client{
			Timeout: cfg.OllamaTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.OllamaRPS), 1),
		retryConfig: RetryConfig{
			MaxRetries:   2,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
		},
	}
}

// ollamaGenerateRequest тело запроса POST /api/generate.
type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// ollamaGenerateResponse ответ Ollama.
type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// generate выполняет один запрос генерации с повторными попытками.
func (c *OllamaClient) generate(ctx context.Context, system, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  c.model,
		System: system,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	var lastErr error
	delay := c.retryConfig.InitialDelay
	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.retryConfig.MaxDelay {
				delay = c.retryConfig.MaxDelay
			}
		}

		result, err := c.doGenerate(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("ollama не ответил после %d попыток: %w",
		c.retryConfig.MaxRetries+1, lastErr)
}

func (c *OllamaClient) doGenerate(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama вернул статус %d: %s", resp.StatusCode, string(data))
	}

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("не удалось разобрать ответ ollama: %w", err)
	}

	result := strings.TrimSpace(parsed.Response)
	if result == "" {
		return "", fmt.Errorf("ollama вернул пустой ответ")
	}
	return result, nil
}

// FormatReport формирует текстовый отчет по результатам расчета.
func (c *OllamaClient) FormatReport(ctx context.Context, report *matching.Report) (string, error) {
	prompt := fmt.Sprintf("Вот данные расчета:\n%s\nСоставь отчет.", renderReport(report))
	return c.generate(ctx, reportSystemPrompt, prompt)
}

// FormatChatReply формирует ответ чата с учетом результатов расчета.
func (c *OllamaClient) FormatChatReply(ctx context.Context, message string, history []ChatMessage, report *matching.Report) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Пользователь написал: %s\n\n", message)
	if h := renderHistory(history); h != "" {
		fmt.Fprintf(&b, "История разговора:\n%s\n\n", h)
	}
	fmt.Fprintf(&b, "Результаты расчета времени сборки:\n%s\n", renderReport(report))
	b.WriteString("Сформируй понятный ответ: сначала общее время, затем разбивка по шкафам и проектам.")
	return c.generate(ctx, chatSystemPrompt, b.String())
}

// FormatChatOnly формирует ответ чата без запуска поиска.
func (c *OllamaClient) FormatChatOnly(ctx context.Context, message string, history []ChatMessage) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Пользователь написал: %s\n\n", message)
	if h := renderHistory(history); h != "" {
		fmt.Fprintf(&b, "История разговора:\n%s\n\n", h)
	}
	b.WriteString("Ответь как ассистент по расчету времени сборки. " +
		"Если пользователь спрашивает о расчете, напомни, что нужно отправить список позиций.")
	return c.generate(ctx, chatSystemPrompt, b.String())
}

// renderReport разворачивает отчет в текст промпта. Ключи разбивок
// сортируются, чтобы промпт был стабилен между запросами.
func renderReport(report *matching.Report) string {
	total := report.TotalMinutes()

	var b strings.Builder
	fmt.Fprintf(&b, "Найдено позиций: %d\n", len(report.FoundItems))
	fmt.Fprintf(&b, "Общее время: %d минут (~%d ч %d мин)\n", total, total/60, total%60)

	b.WriteString("Время по шкафам:\n")
	for _, code := range sortedKeys(report.TotalTimeByCabinet) {
		fmt.Fprintf(&b, "- Шкаф %q: %d минут\n", code, report.TotalTimeByCabinet[code])
	}
	b.WriteString("Время по проектам:\n")
	for _, code := range sortedKeys(report.TotalTimeByProject) {
		fmt.Fprintf(&b, "- Проект %q: %d минут\n", code, report.TotalTimeByProject[code])
	}

	if len(report.NotFoundItems) > 0 {
		fmt.Fprintf(&b, "Ненайденные позиции: %s\n", strings.Join(report.NotFoundItems, ", "))
	} else {
		b.WriteString("Ненайденные позиции: нет\n")
	}
	return b.String()
}

// renderHistory возвращает последние сообщения истории в текстовом виде.
func renderHistory(history []ChatMessage) string {
	const maxMessages = 5
	if len(history) > maxMessages {
		history = history[len(history)-maxMessages:]
	}

	var lines []string
	for _, msg := range history {
		switch msg.Role {
		case "user":
			lines = append(lines, "Пользователь: "+msg.Content)
		case "assistant":
			lines = append(lines, "Ассистент: "+msg.Content)
		}
	}
	return strings.Join(lines, "\n")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
