package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding — кодировка семейства gpt-4o.
const DefaultEncoding = "o200k_base"

// Counter считает токены текста. Результат детерминирован для одного текста и одной модели.
type Counter interface {
	Count(text string) int
}

var offlineOnce sync.Once

// UseOfflineRanks переключает tiktoken на словари, встроенные в бинарник,
// чтобы NewTiktoken не ходил в сеть. Действует на весь процесс.
func UseOfflineRanks() {
	offlineOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
}

// Tiktoken считает токены через BPE-словарь tiktoken.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken загружает кодировку по имени. Пустое имя — DefaultEncoding.
// Ошибка здесь означает неверную конфигурацию: без счётчика окно истории не построить.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: get encoding %q: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// CharCounter — грубая оценка без словаря: один токен на CharsPerToken байт, с округлением вверх.
type CharCounter struct {
	CharsPerToken int // 4, если не задано
}

func (c CharCounter) Count(text string) int {
	ratio := c.CharsPerToken
	if ratio <= 0 {
		ratio = 4
	}
	return (len(text) + ratio - 1) / ratio
}

// Func позволяет использовать обычную функцию как Counter.
type Func func(text string) int

func (f Func) Count(text string) int { return f(text) }
