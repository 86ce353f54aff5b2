package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"MultimodalChat/internal/ai"
	"MultimodalChat/internal/conversation"
	"MultimodalChat/internal/input"
	"MultimodalChat/internal/request"
)

// ErrInternal возвращается вместо паники внутри обработки реплики.
var ErrInternal = errors.New("internal error")

// Reply — результат успешной реплики для UI.
type Reply struct {
	Text    string
	Dropped []string // вложения, которые не удалось закодировать
	History []conversation.Turn
}

// Session — один пользовательский диалог. Реплики обрабатываются строго по одной.
type Session struct {
	store   *conversation.Store
	builder *request.Builder
	invoker ai.Invoker
	logger  *zap.SugaredLogger

	mu sync.Mutex
}

func New(store *conversation.Store, builder *request.Builder, invoker ai.Invoker, logger *zap.SugaredLogger) *Session {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Session{
		store:   store,
		builder: builder,
		invoker: invoker,
		logger:  logger,
	}
}

// History возвращает копию журнала для отображения.
func (s *Session) History() []conversation.Turn {
	return s.store.Snapshot()
}

// HandleTurn выполняет сценарий «реплика пользователя»: собрать запрос, вызвать модель
// и, только при успехе, записать обе реплики в журнал.
func (s *Session) HandleTurn(ctx context.Context, in input.UserInput) (reply Reply, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("Критическая ошибка обработки реплики", "severity", "critical", "panic", r)
			reply, err = Reply{}, ErrInternal
		}
	}()

	// 1. Разобрать ввод
	prompt, blobs, err := input.Unpack(in)
	if err != nil {
		s.logger.Warnw("Некорректный ввод", "error", err)
		return Reply{}, err
	}

	// 2. Закодировать вложения; сбойные пропускаем
	results := input.EncodeImages(blobs)
	var dropped []string
	for _, res := range results {
		if !res.OK() {
			s.logger.Errorw("Не удалось обработать файл", "name", res.Name, "error", res.Err.Cause)
			dropped = append(dropped, res.Name)
		}
	}
	images := input.Successful(results)

	// 3. Собрать запрос с историей
	req := s.builder.Build(prompt, s.store.Snapshot(), images)

	// 4. Отправить
	s.logger.Infow("Отправка..", "images", len(images), "history", s.store.Len())
	text, err := s.invoker.Invoke(ctx, req)
	if err != nil {
		var svcErr *ai.CompletionServiceError
		if !errors.As(err, &svcErr) {
			err = &ai.CompletionServiceError{Cause: err}
		}
		s.logger.Errorw("Ошибка генерации ответа", "error", err)
		return Reply{}, err
	}

	// 5. Записать пару реплик
	s.store.AppendExchange(prompt, input.Names(blobs), text)

	return Reply{Text: text, Dropped: dropped, History: s.store.Snapshot()}, nil
}

// UserMessage превращает ошибку в текст, который можно показать пользователю.
func UserMessage(err error) string {
	var (
		inputErr *input.InputError
		svcErr   *ai.CompletionServiceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &inputErr):
		return fmt.Sprintf("An error occurred: %v", inputErr)
	case errors.As(err, &svcErr):
		return fmt.Sprintf("Error: failed to get response from AI model: %v", svcErr.Cause)
	default:
		return "Application error: something went wrong, please try again"
	}
}
