// Package request собирает итоговое сообщение для сервиса генерации: текст и изображения.
package request

import (
	"MultimodalChat/internal/conversation"
	"MultimodalChat/internal/input"
)

// Kind — тип элемента контента.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Item — элемент контента: текст (Text) или изображение (Format, Data).
type Item struct {
	Kind   Kind   `json:"kind"`
	Text   string `json:"text,omitempty"`
	Format string `json:"format,omitempty"`
	Data   string `json:"data,omitempty"`
}

// Request — одно сообщение роли user. Если есть текст, он всегда первый.
type Request struct {
	Role    conversation.Role `json:"role"`
	Content []Item            `json:"content"`
}

// Text возвращает текстовый элемент запроса.
func (r Request) Text() string {
	for _, it := range r.Content {
		if it.Kind == KindText {
			return it.Text
		}
	}
	return ""
}

// Images возвращает элементы-изображения в исходном порядке.
func (r Request) Images() []Item {
	var out []Item
	for _, it := range r.Content {
		if it.Kind == KindImage {
			out = append(out, it)
		}
	}
	return out
}

// Composer — то, что нужно сборщику от композитора промптов.
type Composer interface {
	Enhance(prompt string, history []conversation.Turn) string
	Sanitize(text string) string
}

// Builder собирает Request. Чистая функция входных данных, без ввода-вывода.
type Builder struct {
	composer Composer
}

func NewBuilder(composer Composer) *Builder {
	return &Builder{composer: composer}
}

// Build: сначала изображения в порядке поступления, затем промпт с историей
// после Enhance и Sanitize, и текст ставится первым элементом.
func (b *Builder) Build(prompt string, history []conversation.Turn, images []input.Image) Request {
	content := make([]Item, 1, len(images)+1)
	for _, img := range images {
		content = append(content, Item{Kind: KindImage, Format: img.Format, Data: img.Data})
	}

	text := b.composer.Sanitize(b.composer.Enhance(prompt, history))
	content[0] = Item{Kind: KindText, Text: text}

	return Request{Role: conversation.RoleUser, Content: content}
}
