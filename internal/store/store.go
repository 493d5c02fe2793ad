// Пакет store — хранилище метаданных файлов.
//
// Контракт: load → mutate → save поверх полного набора записей.
// Частичных обновлений нет; Save всегда заменяет весь набор целиком.
// Все циклы чтения-изменения-записи сериализуются внутри реализации
// (Update), иначе два конкурентных цикла теряют записи друг друга.
//
// Реализации: jsonstore (общий files.json), sessionstore (набор записей
// на сессию), pgstore (PostgreSQL).
package store

import "github.com/bigkaa/filedrop/internal/domain/model"

// Store — контракт хранилища метаданных.
type Store interface {
	// Load возвращает текущий набор записей.
	// Отсутствующий или повреждённый носитель — не ошибка:
	// возвращается пустой набор (доступность важнее строгости).
	Load() ([]model.FileRecord, error)

	// Save атомарно заменяет весь персистентный набор записей.
	Save(records []model.FileRecord) error

	// Update выполняет сериализованный цикл load → fn → save.
	// Если fn возвращает ошибку, набор не сохраняется и ошибка
	// возвращается вызывающему. Конкурентные Update не пересекаются.
	Update(fn func(records []model.FileRecord) ([]model.FileRecord, error)) error
}

// Provider выдаёт Store для области видимости запроса.
// Общие бэкенды (json, postgres) игнорируют scope; сессионный бэкенд
// использует scope как идентификатор сессии.
type Provider interface {
	For(scope string) Store
}
