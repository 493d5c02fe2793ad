// Точка входа filedrop — сервиса временного обмена файлами.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bigkaa/filedrop/internal/api/contract"
	"github.com/bigkaa/filedrop/internal/api/handlers"
	"github.com/bigkaa/filedrop/internal/avatar"
	"github.com/bigkaa/filedrop/internal/config"
	"github.com/bigkaa/filedrop/internal/server"
	"github.com/bigkaa/filedrop/internal/service"
	"github.com/bigkaa/filedrop/internal/storage/blobstore"
	"github.com/bigkaa/filedrop/internal/store"
	"github.com/bigkaa/filedrop/internal/web"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("filedrop запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("upload_dir", cfg.UploadDir),
	)

	// --- Инициализация компонентов ---

	ctx := context.Background()

	// 1. OpenAPI контракт: валидируем до приёма трафика
	apiContract, err := contract.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Пул аватаров
	avatars, err := avatar.NewPool(cfg.AvatarDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации пула аватаров", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// SIGHUP — перечитать каталог аватаров без рестарта
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if refreshErr := avatars.Refresh(); refreshErr != nil {
				logger.Error("Ошибка перечитывания пула аватаров",
					slog.String("error", refreshErr.Error()),
				)
				continue
			}
			logger.Info("Пул аватаров перечитан",
				slog.Int("size", avatars.Size()),
			)
		}
	}()

	// 3. Хранилище блобов
	blobs, err := blobstore.New(cfg.UploadDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища блобов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Хранилище метаданных
	var (
		provider store.Provider
		pinger   handlers.Pinger
	)
	switch cfg.StoreBackend {
	case config.BackendJSON:
		provider = store.NewJSONStore(cfg.DataFile, logger)

	case config.BackendSession:
		provider = store.NewSessionStore(cfg.SessionMax, cfg.SessionTTL, logger)

	case config.BackendPostgres:
		pool, connErr := store.Connect(ctx, cfg.DatabaseURL, logger)
		if connErr != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", connErr.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		if migErr := store.Migrate(migrateURL(cfg.DatabaseURL), logger); migErr != nil {
			logger.Error("Ошибка применения миграций", slog.String("error", migErr.Error()))
			os.Exit(1)
		}

		provider = store.NewPGStore(pool, logger)
		pinger = pool
	}

	// 5. Сервисы
	sweeper := service.NewSweeper(blobs, logger)
	uploadSvc := service.NewUploadService(blobs, avatars, cfg.RequireDeletePassword, cfg.MaxFileSize, logger)
	deleteSvc := service.NewDeleteService(blobs, cfg.RequireDeletePassword, logger)

	// 6. Веб-интерфейс
	renderer, err := web.NewRenderer()
	if err != nil {
		logger.Error("Ошибка инициализации шаблонов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Handlers
	filesHandler := handlers.NewFilesHandler(
		uploadSvc, deleteSvc, blobs, renderer,
		cfg.RequireDeletePassword, cfg.MaxFileSize, logger,
	)
	healthHandler := handlers.NewHealthHandler(blobs, pinger, logger)

	// 8. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, server.Deps{
		Files:    filesHandler,
		Health:   healthHandler,
		Provider: provider,
		Sweeper:  sweeper,
		Contract: apiContract,
	})

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("filedrop остановлен")
}

// migrateURL приводит DSN к схеме драйвера golang-migrate (pgx/v5).
func migrateURL(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "postgres://"); ok {
		return "pgx5://" + rest
	}
	if rest, ok := strings.CutPrefix(dsn, "postgresql://"); ok {
		return "pgx5://" + rest
	}
	return dsn
}
