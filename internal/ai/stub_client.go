package ai

import (
	"context"

	"MultimodalChat/internal/request"
)

// StubInvoker заглушка, которая не делает реальных запросов
type StubInvoker struct {
	Reply string
}

func NewStubInvoker() *StubInvoker { return &StubInvoker{Reply: "запрос получен"} }

func (c *StubInvoker) Invoke(_ context.Context, _ request.Request) (string, error) {
	return c.Reply, nil
}
