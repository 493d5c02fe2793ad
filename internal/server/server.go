// Пакет server — HTTP-сервер filedrop с TLS и graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/filedrop/internal/api/contract"
	"github.com/bigkaa/filedrop/internal/api/handlers"
	"github.com/bigkaa/filedrop/internal/api/middleware"
	"github.com/bigkaa/filedrop/internal/config"
	"github.com/bigkaa/filedrop/internal/service"
	"github.com/bigkaa/filedrop/internal/store"
)

// Server — HTTP-сервер filedrop.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// Deps — зависимости для сборки маршрутов.
type Deps struct {
	Files    *handlers.FilesHandler
	Health   *handlers.HealthHandler
	Provider store.Provider
	Sweeper  *service.Sweeper
	Contract *openapi3.T
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
//
// Служебные маршруты (/metrics, /health/*, /api/openapi.json, статика
// аватаров) обслуживаются без сессии и без вычистки: они не должны
// зависеть от состояния хранилища метаданных.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	router := chi.NewRouter()

	// Общие middleware
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware)

	// Служебные маршруты
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health/live", deps.Health.Live)
	router.Get("/health/ready", deps.Health.Ready)
	router.Get("/api/openapi.json", contract.Handler(deps.Contract))
	router.Handle("/profile/*", http.StripPrefix("/profile/",
		http.FileServer(http.Dir(cfg.AvatarDir))))

	// Прикладные маршруты: сессия + вычистка перед каждым запросом
	router.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(deps.Provider))
		r.Use(middleware.SweepMiddleware(deps.Sweeper, logger))

		r.Get("/", deps.Files.Index)
		r.Post("/upload", deps.Files.Upload)
		r.Get("/download/{storageKey}", deps.Files.Download)
		r.Post("/delete/{storageKey}", deps.Files.Delete)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Настройка TLS
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом
// из конфигурации.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", s.cfg.TLSCert != ""),
			slog.String("store_backend", s.cfg.StoreBackend),
		)

		var err error
		if s.cfg.TLSCert != "" && s.cfg.TLSKey != "" {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
