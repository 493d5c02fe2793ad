// delete.go — сервис досрочного удаления файлов по паролю.
package service

import (
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/bigkaa/filedrop/internal/domain/model"
	"github.com/bigkaa/filedrop/internal/storage/blobstore"
	"github.com/bigkaa/filedrop/internal/store"
)

// Ошибки сервиса удаления.
var (
	// ErrNotFound — запись с указанным ключом отсутствует.
	ErrNotFound = errors.New("запись не найдена")
	// ErrForbidden — пароль удаления не совпал.
	ErrForbidden = errors.New("неверный пароль удаления")
)

// DeleteService — сервис досрочного удаления файлов.
type DeleteService struct {
	blobs         *blobstore.BlobStore
	requireSecret bool
	logger        *slog.Logger
}

// NewDeleteService создаёт сервис удаления.
// requireSecret — сверять ли пароль удаления (вариант без пароля
// пропускает проверку).
func NewDeleteService(blobs *blobstore.BlobStore, requireSecret bool, logger *slog.Logger) *DeleteService {
	return &DeleteService{
		blobs:         blobs,
		requireSecret: requireSecret,
		logger:        logger.With(slog.String("component", "delete_service")),
	}
}

// Delete удаляет запись по ключу хранения после проверки пароля.
//
// Поиск, проверка пароля и удаление записи выполняются внутри одного
// сериализованного Update-цикла: у конкурентных удалений одного ключа
// ровно один победитель, проигравший получает ErrNotFound.
//
// Порядок: запись метаданных удаляется и сохраняется ПЕРВОЙ, затем
// блоб удаляется с диска best-effort. Ошибка удаления блоба логируется
// и не откатывает удаление метаданных.
func (s *DeleteService) Delete(st store.Store, storageKey, suppliedSecret string) error {
	var storageKeyFound bool

	err := st.Update(func(records []model.FileRecord) ([]model.FileRecord, error) {
		idx := -1
		for i := range records {
			if records[i].StorageKey == storageKey {
				idx = i
				break
			}
		}
		if idx == -1 {
			return nil, ErrNotFound
		}

		if s.requireSecret {
			// Сравнение за константное время: не подтекает длина совпавшего префикса
			if subtle.ConstantTimeCompare([]byte(records[idx].Secret), []byte(suppliedSecret)) != 1 {
				return nil, ErrForbidden
			}
		}

		storageKeyFound = true
		return append(records[:idx], records[idx+1:]...), nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrForbidden) {
			s.logger.Error("Ошибка сохранения метаданных при удалении",
				slog.String("operation", "delete"),
				slog.String("storage_key", storageKey),
				slog.String("error", err.Error()),
			)
			operationsTotal.WithLabelValues("delete", "error").Inc()
		}
		return err
	}

	if storageKeyFound {
		if delErr := s.blobs.Delete(storageKey); delErr != nil {
			// Метаданные уже удалены, блоб подчистит следующая попытка вручную
			s.logger.Error("Ошибка удаления блоба",
				slog.String("operation", "delete"),
				slog.String("storage_key", storageKey),
				slog.String("error", delErr.Error()),
			)
		}

		operationsTotal.WithLabelValues("delete", "success").Inc()

		s.logger.Info("Файл удалён",
			slog.String("storage_key", storageKey),
		)
	}

	return nil
}
