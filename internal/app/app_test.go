package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"MultimodalChat/internal/ai"
	"MultimodalChat/internal/app"
	"MultimodalChat/internal/config"
	"MultimodalChat/internal/input"
	"MultimodalChat/internal/tokenizer"
)

func TestNewCounterChars(t *testing.T) {
	cfg := config.Defaults()
	cfg.TokenizerMode = "chars"

	counter, err := app.NewCounter(cfg)
	require.NoError(t, err)
	assert.IsType(t, tokenizer.CharCounter{}, counter)

	cfg.TokenizerMode = "bogus"
	_, err = app.NewCounter(cfg)
	assert.Error(t, err)
}

func TestNewCounterTiktokenOffline(t *testing.T) {
	cfg := config.Defaults()
	require.True(t, cfg.TokenizerOffline)

	counter, err := app.NewCounter(cfg)
	require.NoError(t, err)
	assert.IsType(t, &tokenizer.Tiktoken{}, counter)
	assert.Positive(t, counter.Count("user: Hi\n"))
}

func TestNewInvokerWithoutKeyIsStub(t *testing.T) {
	cfg := config.Defaults()
	inv := app.NewInvoker(cfg, zap.NewNop().Sugar())
	assert.IsType(t, &ai.StubInvoker{}, inv)

	cfg.OpenAI.APIKey = "sk-test"
	inv = app.NewInvoker(cfg, zap.NewNop().Sugar())
	assert.IsType(t, &ai.ResponsesInvoker{}, inv)
}

func TestFactorySessionsAreIsolated(t *testing.T) {
	cfg := config.Defaults()
	f := app.NewFactory(cfg, tokenizer.CharCounter{}, ai.NewStubInvoker(), zap.NewNop().Sugar())

	first := f.NewSession()
	second := f.NewSession()

	_, err := first.HandleTurn(context.Background(), input.PlainText{Text: "hello"})
	require.NoError(t, err)

	assert.Len(t, first.History(), 2)
	assert.Empty(t, second.History())
}
