package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role — автор реплики.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn — одна реплика диалога. После добавления в Store не меняется.
type Turn struct {
	ID              string    `json:"id"`
	Role            Role      `json:"role"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	AttachmentNames []string  `json:"attachmentNames,omitempty"`
}

// Store — журнал реплик одной сессии, только на дозапись.
// Создаётся при старте сессии и живёт до её окончания; между сессиями не разделяется.
type Store struct {
	mu    sync.RWMutex
	turns []Turn
	now   func() time.Time
	newID func() string
}

// Option настраивает Store.
type Option func(*Store)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New создаёт пустой журнал.
func New(opts ...Option) *Store {
	s := &Store{
		turns: make([]Turn, 0, 16),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append добавляет реплику с новым id и текущим временем и возвращает её.
func (s *Store) Append(role Role, content string, attachmentNames ...string) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(role, content, attachmentNames)
}

// AppendExchange добавляет пару «пользователь — ассистент» под одной блокировкой,
// так что за каждой репликой пользователя сразу следует ответ.
func (s *Store) AppendExchange(userContent string, attachmentNames []string, reply string) (Turn, Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.appendLocked(RoleUser, userContent, attachmentNames)
	assistant := s.appendLocked(RoleAssistant, reply, nil)
	return user, assistant
}

func (s *Store) appendLocked(role Role, content string, attachmentNames []string) Turn {
	ts := s.now()
	// время в журнале не убывает, даже если системные часы шагнули назад
	if n := len(s.turns); n > 0 && ts.Before(s.turns[n-1].Timestamp) {
		ts = s.turns[n-1].Timestamp
	}
	turn := Turn{
		ID:        s.newID(),
		Role:      role,
		Content:   content,
		Timestamp: ts,
	}
	if len(attachmentNames) > 0 {
		turn.AttachmentNames = append([]string(nil), attachmentNames...)
	}
	s.turns = append(s.turns, turn)
	return cloneTurn(turn)
}

// Snapshot возвращает копию журнала в порядке добавления.
func (s *Store) Snapshot() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	for i, t := range s.turns {
		out[i] = cloneTurn(t)
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

func cloneTurn(t Turn) Turn {
	if t.AttachmentNames != nil {
		t.AttachmentNames = append([]string(nil), t.AttachmentNames...)
	}
	return t
}
