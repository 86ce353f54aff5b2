// Package app собирает компоненты диалога из конфигурации.
package app

import (
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"MultimodalChat/internal/ai"
	"MultimodalChat/internal/app/session"
	"MultimodalChat/internal/config"
	"MultimodalChat/internal/conversation"
	"MultimodalChat/internal/prompt"
	"MultimodalChat/internal/request"
	"MultimodalChat/internal/tokenizer"
	"MultimodalChat/internal/window"
)

// NewLogger создаёт предустановленный регистратор zap: development в режиме дебага, иначе production.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewCounter выбирает счётчик токенов по конфигурации.
func NewCounter(cfg *config.Config) (tokenizer.Counter, error) {
	switch strings.ToLower(cfg.TokenizerMode) {
	case "chars":
		return tokenizer.CharCounter{}, nil
	case "tiktoken", "":
		if cfg.TokenizerOffline {
			tokenizer.UseOfflineRanks()
		}
		return tokenizer.NewTiktoken(cfg.TokenizerEncoding)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", cfg.TokenizerMode)
	}
}

// NewInvoker создаёт клиента OpenAI; без ключа — заглушку.
func NewInvoker(cfg *config.Config, logger *zap.SugaredLogger) ai.Invoker {
	if cfg.OpenAI.APIKey == "" {
		logger.Warnw("OPENAI_API_KEY не задан, используется заглушка")
		return ai.NewStubInvoker()
	}
	client := openai.NewClient(ai.ClientOptions(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.MaxRetries, cfg.OpenAI.RequestTimeout)...)
	return ai.NewResponsesInvoker(&client, cfg.Model, logger)
}

// Factory создаёт новые сессии с общими компонентами без состояния.
type Factory struct {
	builder *request.Builder
	invoker ai.Invoker
	logger  *zap.SugaredLogger
}

// NewFactory собирает конвейер: счётчик -> окно -> композитор -> сборщик.
func NewFactory(cfg *config.Config, counter tokenizer.Counter, invoker ai.Invoker, logger *zap.SugaredLogger) *Factory {
	composer := prompt.NewComposer(window.NewManager(counter), cfg.HistoryTokenBudget(), nil, logger)
	return &Factory{
		builder: request.NewBuilder(composer),
		invoker: invoker,
		logger:  logger,
	}
}

// NewSession начинает диалог с пустым журналом.
func (f *Factory) NewSession() *session.Session {
	return session.New(conversation.New(), f.builder, f.invoker, f.logger)
}
