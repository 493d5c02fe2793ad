// upload.go — сервис загрузки файлов.
package service

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/bigkaa/filedrop/internal/api/errors"
	"github.com/bigkaa/filedrop/internal/avatar"
	"github.com/bigkaa/filedrop/internal/domain/model"
	"github.com/bigkaa/filedrop/internal/storage/blobstore"
	"github.com/bigkaa/filedrop/internal/store"
)

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// DisplayName — отображаемое имя (поле формы "name")
	DisplayName string
	// Description — описание файла (опционально)
	Description string
	// DurationRaw — срок хранения в минутах, как пришёл из формы
	DurationRaw string
	// Secret — пароль удаления (поле формы "password")
	Secret string
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalName — оригинальное имя файла
	OriginalName string
	// Size — размер файла (из multipart part)
	Size int64
}

// UploadError — ошибка загрузки с HTTP-кодом.
type UploadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UploadService — сервис загрузки файлов.
type UploadService struct {
	blobs         *blobstore.BlobStore
	avatars       *avatar.Pool
	requireSecret bool
	maxFileSize   int64
	logger        *slog.Logger
}

// NewUploadService создаёт сервис загрузки файлов.
// requireSecret — требовать ли пароль удаления при загрузке.
func NewUploadService(
	blobs *blobstore.BlobStore,
	avatars *avatar.Pool,
	requireSecret bool,
	maxFileSize int64,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		blobs:         blobs,
		avatars:       avatars,
		requireSecret: requireSecret,
		maxFileSize:   maxFileSize,
		logger:        logger.With(slog.String("component", "upload_service")),
	}
}

// Upload загружает файл и добавляет запись метаданных.
//
// Валидация по порядку, с остановкой на первом нарушении:
//  1. DisplayName не пуст
//  2. DurationRaw — положительное целое число минут
//  3. Secret не пуст (если пароль удаления включён)
//  4. Файл присутствует и не пуст
//
// Блоб физически записывается на диск ДО появления записи метаданных:
// запись никогда не ссылается на несуществующий блоб. При ошибке
// сохранения метаданных блоб удаляется (best-effort).
func (s *UploadService) Upload(st store.Store, params UploadParams) (*model.FileRecord, *UploadError) {
	// 1. Валидация полей формы
	if strings.TrimSpace(params.DisplayName) == "" {
		return nil, &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Поле 'name' обязательно",
		}
	}

	minutes, err := strconv.Atoi(strings.TrimSpace(params.DurationRaw))
	if err != nil || minutes <= 0 {
		return nil, &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Поле 'expiresInMinutes' должно быть положительным целым числом, получено %q", params.DurationRaw),
		}
	}

	if s.requireSecret && params.Secret == "" {
		return nil, &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Поле 'password' обязательно",
		}
	}

	if params.Reader == nil || params.OriginalName == "" || params.Size == 0 {
		return nil, &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Поле 'file' обязательно и не может быть пустым",
		}
	}

	if s.maxFileSize > 0 && params.Size > s.maxFileSize {
		return nil, &UploadError{
			StatusCode: 413,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", params.Size, s.maxFileSize),
		}
	}

	// 2. Записываем блоб на диск (до метаданных)
	saved, err := s.blobs.Save(params.Reader, params.OriginalName)
	if err != nil {
		s.logger.Error("Ошибка сохранения блоба",
			slog.String("operation", "upload"),
			slog.String("filename", params.OriginalName),
			slog.String("error", err.Error()),
		)
		operationsTotal.WithLabelValues("upload", "error").Inc()
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка сохранения файла на диск",
		}
	}

	// Пустой файл обнаруживается только после чтения потока
	if saved.Size == 0 {
		_ = s.blobs.Delete(saved.StorageKey)
		return nil, &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Поле 'file' обязательно и не может быть пустым",
		}
	}

	// 3. Формируем запись метаданных
	now := time.Now().UTC()
	record := model.FileRecord{
		DisplayName:  params.DisplayName,
		Description:  params.Description,
		Avatar:       s.avatars.Pick(),
		OriginalName: params.OriginalName,
		StorageKey:   saved.StorageKey,
		Extension:    strings.ToLower(filepath.Ext(params.OriginalName)),
		UploadedAt:   model.NewTimestamp(now),
		ExpiresAt:    model.NewTimestamp(now.Add(time.Duration(minutes) * time.Minute)),
		Secret:       params.Secret,
	}

	// 4. Добавляем запись в хранилище (сериализованный цикл)
	updateErr := st.Update(func(records []model.FileRecord) ([]model.FileRecord, error) {
		return append(records, record), nil
	})
	if updateErr != nil {
		// Блоб без записи бесполезен — убираем (best-effort)
		if delErr := s.blobs.Delete(saved.StorageKey); delErr != nil {
			s.logger.Error("Ошибка удаления блоба при откате загрузки",
				slog.String("storage_key", saved.StorageKey),
				slog.String("error", delErr.Error()),
			)
		}
		s.logger.Error("Ошибка сохранения метаданных",
			slog.String("operation", "upload"),
			slog.String("storage_key", saved.StorageKey),
			slog.String("error", updateErr.Error()),
		)
		operationsTotal.WithLabelValues("upload", "error").Inc()
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка сохранения метаданных",
		}
	}

	operationsTotal.WithLabelValues("upload", "success").Inc()

	s.logger.Info("Файл загружен",
		slog.String("storage_key", saved.StorageKey),
		slog.String("name", params.DisplayName),
		slog.String("filename", params.OriginalName),
		slog.Int64("size", saved.Size),
		slog.Time("expires_at", record.ExpiresAt.Time),
	)

	return &record, nil
}
