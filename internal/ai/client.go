package ai

import (
	"context"
	"errors"
	"fmt"

	"MultimodalChat/internal/request"
)

// Invoker отправляет готовый запрос в сервис генерации. Все реализации взаимозаменяемы.
// Вызывается один раз на реплику пользователя; повторы — забота самой реализации.
type Invoker interface {
	Invoke(ctx context.Context, req request.Request) (string, error)
}

// ErrEmptyResponse — сервис ответил без текста.
var ErrEmptyResponse = errors.New("empty response from model")

// CompletionServiceError — сбой вызова сервиса генерации по любой причине.
type CompletionServiceError struct {
	Cause error
}

func (e *CompletionServiceError) Error() string {
	return fmt.Sprintf("completion service: %v", e.Cause)
}

func (e *CompletionServiceError) Unwrap() error { return e.Cause }

func completionError(err error) error {
	var already *CompletionServiceError
	if errors.As(err, &already) {
		return err
	}
	return &CompletionServiceError{Cause: err}
}
