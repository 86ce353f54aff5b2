package config

import (
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	DebugMode bool `env:"DEBUG_MODE"` // Режим дебага: development-логгер

	// Модель и бюджет контекста
	Model               string `env:"OPENAI_MODEL"`          // Идентификатор модели
	MaxInputTokens      int    `env:"MAX_INPUT_TOKENS"`      // Лимит входных токенов модели
	PromptReserveTokens int    `env:"PROMPT_RESERVE_TOKENS"` // Запас под шаблон и новый промпт, вычитается из бюджета истории
	TokenizerMode       string `env:"TOKENIZER_MODE"`        // tiktoken|chars
	TokenizerEncoding   string `env:"TOKENIZER_ENCODING"`    // Кодировка tiktoken, напр. o200k_base
	TokenizerOffline    bool   `env:"TOKENIZER_OFFLINE"`     // Словари tiktoken из бинарника, без загрузки по сети

	// Клиент OpenAI
	OpenAI OpenAIConfig

	// Вложения
	AllowedFileTypes []string `env:"ALLOWED_FILE_TYPES" envSeparator:";"` // Разрешённые расширения файлов
	MaxUploadBytes   int64    `env:"MAX_UPLOAD_BYTES"`                    // Максимальный размер multipart-запроса

	// HTTP-оболочка
	HTTPAddr string `env:"HTTP_ADDR"` // Адрес слушателя, напр. 127.0.0.1:8080
}

// OpenAIConfig настройки клиента OpenAI.
type OpenAIConfig struct {
	APIKey         string        `env:"OPENAI_API_KEY"`         // Пусто — используется заглушка
	BaseURL        string        `env:"OPENAI_BASE_URL"`        // Пусто — адрес по умолчанию
	MaxRetries     int           `env:"OPENAI_MAX_RETRIES"`     // Повторы на стороне клиента; ядро само не повторяет
	RequestTimeout time.Duration `env:"OPENAI_REQUEST_TIMEOUT"` // 0 — без таймаута
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode:           false,
		Model:               "gpt-4o-mini",
		MaxInputTokens:      128000,
		PromptReserveTokens: 0, // как в исходном поведении: вся ёмкость уходит на историю
		TokenizerMode:       "tiktoken",
		TokenizerEncoding:   "o200k_base",
		TokenizerOffline:    true,
		AllowedFileTypes:    []string{"jpg", "jpeg", "png"},
		MaxUploadBytes:      20 << 20,
		HTTPAddr:            "127.0.0.1:8080",
	}
}

// NewConfig загружает конфигурацию приложения из .env, окружения и флагов командной строки.
func NewConfig(args []string) (*Config, error) {
	_ = godotenv.Load()
	return Load(args)
}

// Load накладывает окружение и флаги на Defaults и проверяет результат.
func Load(args []string) (*Config, error) {
	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "идентификатор модели")
	fs.IntVar(&cfg.MaxInputTokens, "max-input-tokens", cfg.MaxInputTokens, "лимит входных токенов модели")
	fs.IntVar(&cfg.PromptReserveTokens, "prompt-reserve-tokens", cfg.PromptReserveTokens, "запас токенов под шаблон и новый промпт")
	fs.StringVar(&cfg.TokenizerMode, "tokenizer", cfg.TokenizerMode, "счётчик токенов: tiktoken|chars")
	fs.StringVar(&cfg.TokenizerEncoding, "tokenizer-encoding", cfg.TokenizerEncoding, "кодировка tiktoken")
	fs.BoolVar(&cfg.TokenizerOffline, "tokenizer-offline", cfg.TokenizerOffline, "не скачивать словари tiktoken")
	// список расширений одной строкой через ';'
	allowedFlag := strings.Join(cfg.AllowedFileTypes, ";")
	fs.StringVar(&allowedFlag, "allowed-file-types", allowedFlag, "разрешённые расширения файлов, через ';'")
	fs.Int64Var(&cfg.MaxUploadBytes, "max-upload-bytes", cfg.MaxUploadBytes, "максимальный размер загрузки, байт")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "адрес HTTP-оболочки")
	fs.StringVar(&cfg.OpenAI.APIKey, "openai-api-key", cfg.OpenAI.APIKey, "API ключ OpenAI (перекрывает ENV)")
	fs.StringVar(&cfg.OpenAI.BaseURL, "openai-base-url", cfg.OpenAI.BaseURL, "базовый URL API OpenAI")
	fs.IntVar(&cfg.OpenAI.MaxRetries, "openai-max-retries", cfg.OpenAI.MaxRetries, "повторы запросов в клиенте OpenAI")
	fs.DurationVar(&cfg.OpenAI.RequestTimeout, "openai-request-timeout", cfg.OpenAI.RequestTimeout, "таймаут запроса к OpenAI, напр. 60s")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.AllowedFileTypes = parseListFlag(allowedFlag, Defaults().AllowedFileTypes)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model is empty"))
	}
	if c.MaxInputTokens <= 0 {
		errs = append(errs, fmt.Errorf("max input tokens must be positive, got %d", c.MaxInputTokens))
	}
	if c.PromptReserveTokens < 0 || c.PromptReserveTokens >= c.MaxInputTokens {
		errs = append(errs, fmt.Errorf("prompt reserve %d must be in [0, %d)", c.PromptReserveTokens, c.MaxInputTokens))
	}
	switch strings.ToLower(c.TokenizerMode) {
	case "tiktoken", "chars":
	default:
		errs = append(errs, fmt.Errorf("unknown tokenizer %q: want tiktoken|chars", c.TokenizerMode))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes))
	}
	return errors.Join(errs...)
}

// HistoryTokenBudget — бюджет токенов, отведённый под историю диалога.
func (c *Config) HistoryTokenBudget() int {
	return c.MaxInputTokens - c.PromptReserveTokens
}

// Allows сообщает, разрешено ли расширение файла.
func (c *Config) Allows(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range c.AllowedFileTypes {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return true
		}
	}
	return false
}

// parseListFlag разбирает значение флага со списком, разделённым ';'
func parseListFlag(v string, def []string) []string {
	// Пустая строка → дефолт
	if v == "" {
		return def
	}
	parts := strings.Split(v, ";")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return def
	}
	return cleaned
}
