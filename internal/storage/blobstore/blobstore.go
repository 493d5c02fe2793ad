// Пакет blobstore — операции с блобами (содержимым файлов) на диске.
// Ключ хранения одновременно служит именем файла в директории загрузок
// и внешним идентификатором в URL скачивания/удаления.
// Запись атомарна: temp → fsync → rename. Удаление идемпотентно.
package blobstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidKey — ключ содержит разделители пути или пуст.
var ErrInvalidKey = errors.New("некорректный ключ хранения")

// BlobStore — управление блобами в директории загрузок.
type BlobStore struct {
	// dataDir — директория хранения блобов (FD_UPLOAD_DIR)
	dataDir string
}

// SaveResult — результат сохранения блоба на диск.
type SaveResult struct {
	// StorageKey — сгенерированный ключ хранения (имя файла в dataDir)
	StorageKey string
	// Size — размер записанных данных в байтах
	Size int64
}

// New создаёт BlobStore. Создаёт директорию, если она не существует.
func New(dataDir string) (*BlobStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию загрузок %s: %w", dataDir, err)
	}
	return &BlobStore{dataDir: dataDir}, nil
}

// Save записывает данные из reader на диск под свежим ключом.
// Формат ключа: {unix-millis}-{uuid8}-{sanitized-name}{ext}.
// Исходная схема {timestamp}-{originalname} усилена коротким UUID:
// коллизии конкурентных загрузок в одну миллисекунду исключены.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (bs *BlobStore) Save(reader io.Reader, originalName string) (*SaveResult, error) {
	key := generateKey(originalName)
	fullPath := filepath.Join(bs.dataDir, key)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{StorageKey: key, Size: size}, nil
}

// Open открывает блоб для чтения и возвращает *os.File.
// Файловый дескриптор отдаётся напрямую в http.ServeContent:
// поток читается по мере потребления клиентом, без буферизации в памяти.
// Вызывающий код обязан закрыть файл.
func (bs *BlobStore) Open(key string) (*os.File, error) {
	fullPath, err := bs.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		// %w сохраняет fs.ErrNotExist для errors.Is на вызывающей стороне
		return nil, fmt.Errorf("ошибка открытия блоба %s: %w", key, err)
	}
	return f, nil
}

// Delete удаляет блоб с диска.
// Идемпотентно: nil, если блоб уже не существует.
func (bs *BlobStore) Delete(key string) error {
	fullPath, err := bs.resolve(key)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления блоба %s: %w", key, err)
	}
	return nil
}

// Exists проверяет существование блоба на диске.
func (bs *BlobStore) Exists(key string) bool {
	fullPath, err := bs.resolve(key)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(fullPath)
	return statErr == nil
}

// Size возвращает размер блоба в байтах.
func (bs *BlobStore) Size(key string) (int64, error) {
	fullPath, err := bs.resolve(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о блобе %s: %w", key, err)
	}
	return info.Size(), nil
}

// DataDir возвращает путь к директории загрузок.
func (bs *BlobStore) DataDir() string {
	return bs.dataDir
}

// resolve превращает ключ в абсолютный путь, отклоняя выход за dataDir.
// Ключ приходит из URL, поэтому разделители пути и ".." недопустимы.
func (bs *BlobStore) resolve(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || key == "." || key == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(bs.dataDir, key), nil
}

// generateKey генерирует ключ хранения блоба.
// Формат: {unix-millis}-{uuid8}-{sanitized-name}{ext}
// Пример: 1767225600123-a1b2c3d4-report.pdf
func generateKey(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	name := strings.TrimSuffix(originalName, filepath.Ext(originalName))

	name = sanitize(name)
	if len(name) > 50 {
		name = name[:50]
	}

	ms := time.Now().UTC().UnixMilli()
	uid := uuid.New().String()[:8] // Короткий UUID для уникальности

	return fmt.Sprintf("%d-%s-%s%s", ms, uid, name, ext)
}

// sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}
