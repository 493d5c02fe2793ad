// sessionstore.go — хранилище метаданных в server-side состоянии сессии.
// Каждая сессия видит только собственный набор записей; блобы при этом
// лежат на общем диске. Наборы живут в expirable LRU: ограничение по
// количеству сессий + TTL защищают память от брошенных сессий.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bigkaa/filedrop/internal/domain/model"
)

// sessionData — набор записей одной сессии со своим мьютексом.
// Мьютекс удерживается на весь цикл Update данной сессии.
type sessionData struct {
	mu      sync.Mutex
	records []model.FileRecord
}

// SessionStore — хранилище метаданных, разделённое по сессиям.
type SessionStore struct {
	mu       sync.Mutex // защита создания sessionData
	sessions *expirable.LRU[string, *sessionData]
	logger   *slog.Logger
}

// NewSessionStore создаёт сессионное хранилище.
// maxSessions — максимальное число одновременных сессий,
// ttl — время жизни набора записей сессии после создания.
func NewSessionStore(maxSessions int, ttl time.Duration, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		sessions: expirable.NewLRU[string, *sessionData](maxSessions, nil, ttl),
		logger:   logger.With(slog.String("component", "sessionstore")),
	}
}

// For возвращает Store, ограниченный указанной сессией.
// Для неизвестной сессии создаётся пустой набор.
func (s *SessionStore) For(scope string) Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.sessions.Get(scope)
	if !ok {
		data = &sessionData{}
		s.sessions.Add(scope, data)
	}
	return &scopedStore{data: data}
}

// scopedStore — Store одной сессии.
type scopedStore struct {
	data *sessionData
}

// Load возвращает копию набора записей сессии.
func (s *scopedStore) Load() ([]model.FileRecord, error) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	return cloneRecords(s.data.records), nil
}

// Save заменяет набор записей сессии.
func (s *scopedStore) Save(records []model.FileRecord) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	s.data.records = cloneRecords(records)
	return nil
}

// Update выполняет сериализованный цикл load → fn → save в рамках сессии.
func (s *scopedStore) Update(fn func(records []model.FileRecord) ([]model.FileRecord, error)) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	updated, err := fn(cloneRecords(s.data.records))
	if err != nil {
		return err
	}
	s.data.records = cloneRecords(updated)
	return nil
}

// cloneRecords возвращает копию среза, чтобы избежать data race
// при внешних изменениях.
func cloneRecords(records []model.FileRecord) []model.FileRecord {
	if records == nil {
		return nil
	}
	copied := make([]model.FileRecord, len(records))
	copy(copied, records)
	return copied
}

var (
	_ Store    = (*scopedStore)(nil)
	_ Provider = (*SessionStore)(nil)
)
