// jsonstore.go — хранилище метаданных в одном JSON-файле (files.json).
// Формат: упорядоченный JSON-массив FileRecord, перезаписывается целиком
// при каждой мутации. Запись атомарна: temp → fsync → rename.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bigkaa/filedrop/internal/domain/model"
)

// JSONStore — хранилище метаданных в общем files.json.
// Mutex удерживается на весь цикл Update: конкурентные циклы
// load → mutate → save не пересекаются и не теряют записи.
type JSONStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewJSONStore создаёт хранилище поверх указанного файла.
// Сам файл создаётся лениво при первом Save.
func NewJSONStore(path string, logger *slog.Logger) *JSONStore {
	return &JSONStore{
		path:   path,
		logger: logger.With(slog.String("component", "jsonstore")),
	}
}

// Load возвращает текущий набор записей.
// Отсутствующий или повреждённый файл деградирует до пустого набора.
func (s *JSONStore) Load() ([]model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// load читает файл без блокировки. Вызывающий держит mu.
func (s *JSONStore) load() []model.FileRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Ошибка чтения файла метаданных, используется пустой набор",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	var records []model.FileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("Повреждённый файл метаданных, используется пустой набор",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return records
}

// Save атомарно заменяет весь набор записей на диске.
func (s *JSONStore) Save(records []model.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(records)
}

// save пишет файл без блокировки. Вызывающий держит mu.
// Паттерн: JSON → temp файл → fsync → atomic rename.
func (s *JSONStore) save(records []model.FileRecord) error {
	if records == nil {
		records = []model.FileRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	tmpPath := s.path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// Update выполняет сериализованный цикл load → fn → save.
func (s *JSONStore) Update(fn func(records []model.FileRecord) ([]model.FileRecord, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	updated, err := fn(records)
	if err != nil {
		return err
	}
	return s.save(updated)
}

// For реализует Provider: общее хранилище игнорирует scope.
func (s *JSONStore) For(_ string) Store {
	return s
}

// Проверки на этапе компиляции.
var (
	_ Store    = (*JSONStore)(nil)
	_ Provider = (*JSONStore)(nil)
)
