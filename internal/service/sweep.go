// Пакет service — бизнес-логика filedrop.
// sweep.go — сервис вычистки истёкших файлов.
//
// Sweep выполняется синхронно перед каждым прикладным запросом
// (middleware), фонового таймера нет: для низконагруженного сервиса
// планировщик не нужен, ценой того, что истёкшие файлы лежат на диске
// до следующего визита.
package service

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/filedrop/internal/domain/model"
	"github.com/bigkaa/filedrop/internal/storage/blobstore"
	"github.com/bigkaa/filedrop/internal/store"
)

// Prometheus метрики sweep
var (
	// sweepRunsTotal — количество запусков sweep.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fd_sweep_runs_total",
		Help: "Общее количество запусков вычистки истёкших файлов",
	})

	// sweepFilesRemovedTotal — количество вычищенных записей.
	sweepFilesRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fd_sweep_files_removed_total",
		Help: "Общее количество записей, удалённых вычисткой",
	})

	// sweepBlobErrorsTotal — количество ошибок удаления блобов.
	sweepBlobErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fd_sweep_blob_errors_total",
		Help: "Общее количество ошибок удаления блобов при вычистке",
	})

	// sweepDurationSeconds — длительность выполнения sweep.
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fd_sweep_duration_seconds",
		Help:    "Длительность вычистки истёкших файлов в секундах",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// SweepResult — результат одного запуска sweep.
type SweepResult struct {
	// Kept — количество оставшихся записей
	Kept int
	// Removed — количество удалённых записей
	Removed int
	// BlobErrors — количество ошибок удаления блобов (best-effort)
	BlobErrors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// Sweeper — сервис вычистки истёкших файлов.
type Sweeper struct {
	blobs  *blobstore.BlobStore
	logger *slog.Logger
}

// NewSweeper создаёт сервис вычистки.
func NewSweeper(blobs *blobstore.BlobStore, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		blobs:  blobs,
		logger: logger.With(slog.String("component", "sweeper")),
	}
}

// Sweep выполняет один цикл вычистки поверх указанного хранилища.
//
// Внутри одного сериализованного Update-цикла:
//  1. Разбиение набора: expiresAt <= now → на удаление
//  2. Best-effort удаление блоба каждой истёкшей записи
//     (отсутствующий блоб — не ошибка; ошибка логируется и не прерывает)
//  3. Сохранение оставшегося набора
//
// Оставшиеся записи не модифицируются.
func (s *Sweeper) Sweep(st store.Store, now time.Time) (*SweepResult, error) {
	start := time.Now()
	result := &SweepResult{}

	err := st.Update(func(records []model.FileRecord) ([]model.FileRecord, error) {
		kept := records[:0:0]
		for _, rec := range records {
			if !rec.IsExpired(now) {
				kept = append(kept, rec)
				continue
			}

			if delErr := s.blobs.Delete(rec.StorageKey); delErr != nil {
				// Блоб остаётся на диске, но запись всё равно вычищается:
				// очистка best-effort, метаданные — первичный результат
				s.logger.Error("Ошибка удаления блоба истёкшей записи",
					slog.String("operation", "sweep"),
					slog.String("storage_key", rec.StorageKey),
					slog.String("error", delErr.Error()),
				)
				result.BlobErrors++
			}

			s.logger.Debug("Истёкшая запись вычищена",
				slog.String("storage_key", rec.StorageKey),
				slog.String("name", rec.DisplayName),
				slog.Time("expired_at", rec.ExpiresAt.Time),
			)
			result.Removed++
		}
		result.Kept = len(kept)
		return kept, nil
	})
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepFilesRemovedTotal.Add(float64(result.Removed))
	sweepBlobErrorsTotal.Add(float64(result.BlobErrors))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	if result.Removed > 0 {
		s.logger.Info("Вычистка завершена",
			slog.Int("kept", result.Kept),
			slog.Int("removed", result.Removed),
			slog.Int("blob_errors", result.BlobErrors),
			slog.Duration("duration", result.Duration),
		)
	}

	return result, nil
}
