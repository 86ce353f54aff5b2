// Package window выбирает самые свежие реплики диалога, которые помещаются в бюджет токенов.
package window

import (
	"strings"

	"MultimodalChat/internal/conversation"
	"MultimodalChat/internal/tokenizer"
)

// Manager строит текст истории для повторной отправки модели.
type Manager struct {
	counter tokenizer.Counter
}

func NewManager(counter tokenizer.Counter) *Manager {
	return &Manager{counter: counter}
}

// Selection — выбранный хвост диалога.
type Selection struct {
	Turns   []conversation.Turn // в хронологическом порядке
	Lines   []string            // отрендеренные "{role}: {content}\n", параллельно Turns
	Tokens  int                 // суммарно по Lines
	Dropped int                 // сколько старых реплик не вошло
}

// Text склеивает выбранные реплики в одну строку.
func (s Selection) Text() string {
	return strings.Join(s.Lines, "")
}

// Window идёт от новых реплик к старым и останавливается на первой, с которой
// сумма превысила бы maxTokens. Реплики не обрезаются: либо целиком, либо никак.
func (m *Manager) Window(turns []conversation.Turn, maxTokens int) Selection {
	if len(turns) == 0 || maxTokens <= 0 {
		return Selection{Dropped: len(turns)}
	}

	total := 0
	start := len(turns)
	lines := make([]string, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		line := Render(turns[i])
		tokens := m.counter.Count(line)
		if total+tokens > maxTokens {
			break
		}
		total += tokens
		lines[i] = line
		start = i
	}

	return Selection{
		Turns:   turns[start:],
		Lines:   lines[start:],
		Tokens:  total,
		Dropped: start,
	}
}

// FormatHistory возвращает самый длинный хвост диалога, влезающий в maxTokens,
// в хронологическом порядке. Пустая история или неподходящая последняя реплика дают "".
func (m *Manager) FormatHistory(turns []conversation.Turn, maxTokens int) string {
	return m.Window(turns, maxTokens).Text()
}

// Render форматирует реплику так, как она попадает в историю.
func Render(t conversation.Turn) string {
	return string(t.Role) + ": " + t.Content + "\n"
}
