package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"go.uber.org/zap"

	"MultimodalChat/internal/request"
)

// ResponsesInvoker отправляет текст и картинки в OpenAI через Responses API
type ResponsesInvoker struct {
	client *openai.Client
	model  openai.ChatModel
	logger *zap.SugaredLogger
}

func NewResponsesInvoker(client *openai.Client, model string, logger *zap.SugaredLogger) *ResponsesInvoker {
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ResponsesInvoker{client: client, model: openai.ChatModel(model), logger: logger}
}

// ClientOptions собирает опции клиента OpenAI. Пустой apiKey — ключ из OPENAI_API_KEY.
func ClientOptions(apiKey, baseURL string, maxRetries int, timeout time.Duration) []option.RequestOption {
	opts := []option.RequestOption{option.WithMaxRetries(max(maxRetries, 0))}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return opts
}

func (c *ResponsesInvoker) Invoke(ctx context.Context, req request.Request) (string, error) {
	if c.client == nil {
		return "", completionError(errors.New("nil openai client"))
	}

	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(contentParams(req), responses.EasyInputMessageRoleUser),
			},
		},
	}

	start := time.Now()
	c.logger.Infow("Запрос в OpenAI...", "model", c.model, "images", len(req.Images()))
	resp, err := c.client.Responses.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		fields := []any{"duration", dur.String(), "error", err}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			fields = append(fields, "status", apiErr.StatusCode)
		}
		c.logger.Errorw("Ошибка ответа OpenAI", fields...)
		return "", completionError(err)
	}
	c.logger.Infow("Ответ OpenAI получен", "duration", dur.String())

	out := resp.OutputText()
	if out == "" {
		return "", completionError(ErrEmptyResponse)
	}
	return out, nil
}

// contentParams переводит элементы запроса в контент сообщения; порядок сохраняется.
func contentParams(req request.Request) responses.ResponseInputMessageContentListParam {
	content := make(responses.ResponseInputMessageContentListParam, 0, len(req.Content))
	for _, item := range req.Content {
		switch item.Kind {
		case request.KindText:
			content = append(content, responses.ResponseInputMessageContentListParam{
				{OfInputText: &responses.ResponseInputTextParam{Text: item.Text}},
			}...)
		case request.KindImage:
			content = append(content, responses.ResponseInputMessageContentListParam{
				{
					OfInputImage: &responses.ResponseInputImageParam{
						Detail:   responses.ResponseInputImageDetailAuto,
						ImageURL: openai.String(DataURL(item)),
					},
				},
			}...)
		}
	}
	return content
}

// DataURL кодирует изображение как data URL: data:image/{format};base64,{data}.
func DataURL(item request.Item) string {
	format := item.Format
	if format == "" {
		format = "jpeg"
	}
	return fmt.Sprintf("data:image/%s;base64,%s", format, item.Data)
}
