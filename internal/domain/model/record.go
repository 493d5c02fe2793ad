// Пакет model — доменные модели filedrop.
// FileRecord — единая структура метаданных загруженного файла, используется
// как in-memory представление и как формат записи в files.json на диске.
package model

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayout — формат времени в files.json.
// Унаследован от исходного формата хранилища, менять нельзя:
// существующие files.json должны читаться без миграции.
const timestampLayout = "2006-01-02 15:04:05"

// Timestamp — время в legacy-формате files.json ("2006-01-02 15:04:05").
// Обёртка над time.Time с кастомной JSON-сериализацией.
type Timestamp struct {
	time.Time
}

// NewTimestamp создаёт Timestamp, усекая время до секунд (точность формата).
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Second)}
}

// String возвращает время в формате "2006-01-02 15:04:05".
func (t Timestamp) String() string {
	return t.UTC().Format(timestampLayout)
}

// MarshalJSON сериализует время в формат "2006-01-02 15:04:05".
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(timestampLayout) + `"`), nil
}

// UnmarshalJSON читает время из формата "2006-01-02 15:04:05".
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := time.Parse(timestampLayout, s)
	if err != nil {
		return fmt.Errorf("некорректный формат времени %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// FileRecord — метаданные одного загруженного файла.
// JSON-теги соответствуют legacy-формату files.json: имена полей
// должны совпадать байт-в-байт для совместимости с существующими данными.
type FileRecord struct {
	// DisplayName — отображаемое имя файла, задаётся пользователем
	DisplayName string `json:"name"`

	// Description — описание файла (опционально)
	Description string `json:"description"`

	// Avatar — декоративная картинка записи (путь вида "profile/cat.png").
	// Чисто косметическое поле, не влияет на идентичность и жизненный цикл.
	Avatar string `json:"profilePic"`

	// OriginalName — оригинальное имя файла при загрузке
	OriginalName string `json:"originalname"`

	// StorageKey — уникальный ключ хранения: имя блоба на диске
	// и внешний идентификатор в URL скачивания/удаления.
	// Формат: {unix-millis}-{uuid8}-{sanitized-name}{ext}
	StorageKey string `json:"filename"`

	// Extension — расширение оригинального имени в нижнем регистре (".pdf")
	Extension string `json:"fileType"`

	// UploadedAt — дата и время загрузки (UTC), неизменяемое
	UploadedAt Timestamp `json:"uploadedAt"`

	// ExpiresAt — дата истечения (uploadedAt + N минут), неизменяемое.
	// Строго больше UploadedAt.
	ExpiresAt Timestamp `json:"expiresIn"`

	// Secret — пароль удаления, сравнивается verbatim при удалении.
	// Никогда не отображается обратно пользователю.
	Secret string `json:"password"`
}

// IsExpired проверяет, истёк ли срок хранения записи.
// Запись считается истёкшей при expiresAt <= now.
func (r *FileRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt.Time)
}
