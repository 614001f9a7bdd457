package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config конфигурация сервиса расчета времени сборки.
// Загружается из переменных окружения один раз при старте.
type Config struct {
	// Сервер
	Port      string `json:"port"`
	StaticDir string `json:"static_dir"`

	// База данных каталога
	DatabasePath    string        `json:"database_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// Поиск
	FuzzyThreshold       float64 `json:"fuzzy_threshold"`
	NGramSize            int     `json:"ngram_size"`
	NormalizerSeparators string  `json:"normalizer_separators"`
	MaxCandidates        int     `json:"max_candidates"`
	UseTrigramIndex      bool    `json:"use_trigram_index"`

	// Генерация текста (Ollama)
	EnableLLM     bool          `json:"enable_llm"`
	OllamaBaseURL string        `json:"ollama_base_url"`
	OllamaModel   string        `json:"ollama_model"`
	OllamaTimeout time.Duration `json:"ollama_timeout"`
	OllamaRPS     float64       `json:"ollama_rps"`

	// Логирование
	LogLevel string `json:"log_level"`
}

// LoadConfig загружает конфигурацию из переменных окружения
// и сразу валидирует ее. Некорректная конфигурация — ошибка старта,
// а не ошибка обработки запроса.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("SERVER_PORT", "8080"),
		StaticDir: getEnv("STATIC_DIR", "web"),

		DatabasePath:    getEnv("DATABASE_PATH", "catalog.db"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),

		FuzzyThreshold:       getEnvFloat("FUZZY_THRESHOLD", 0.3),
		NGramSize:            getEnvInt("NGRAM_SIZE", 3),
		NormalizerSeparators: getEnv("NORMALIZER_SEPARATORS", " -"),
		MaxCandidates:        getEnvInt("MAX_CANDIDATES", 200),
		UseTrigramIndex:      getEnvBool("USE_TRIGRAM_INDEX", true),

		EnableLLM:     getEnvBool("ENABLE_LLM", true),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "qwen2.5:3b"),
		OllamaTimeout: getEnvDuration("OLLAMA_TIMEOUT", 120*time.Second),
		OllamaRPS:     getEnvFloat("OLLAMA_RPS", 1.0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность конфигурации.
func (c *Config) Validate() error {
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("FUZZY_THRESHOLD должен быть в диапазоне (0, 1], получено %v", c.FuzzyThreshold)
	}
	if c.NGramSize < 2 {
		return fmt.Errorf("NGRAM_SIZE должен быть не меньше 2, получено %d", c.NGramSize)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("MAX_CANDIDATES должен быть положительным, получено %d", c.MaxCandidates)
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("SERVER_PORT должен быть числом, получено %q", c.Port)
	}
	if c.OllamaTimeout <= 0 {
		return fmt.Errorf("OLLAMA_TIMEOUT должен быть положительным, получено %v", c.OllamaTimeout)
	}
	if c.OllamaRPS <= 0 {
		return fmt.Errorf("OLLAMA_RPS должен быть положительным, получено %v", c.OllamaRPS)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH не может быть пустым")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
