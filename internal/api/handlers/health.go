// health.go — обработчики проверок живости и готовности.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/filedrop/internal/storage/blobstore"
)

// Pinger — проверка доступности внешнего хранилища (пул соединений БД).
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler — обработчики /health/live и /health/ready.
type HealthHandler struct {
	blobs *blobstore.BlobStore
	// pinger — nil для бэкендов без внешних зависимостей
	pinger Pinger
	logger *slog.Logger
}

// NewHealthHandler создаёт обработчики health-проверок.
func NewHealthHandler(blobs *blobstore.BlobStore, pinger Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		blobs:  blobs,
		pinger: pinger,
		logger: logger.With(slog.String("component", "health_handler")),
	}
}

func writeHealth(w http.ResponseWriter, statusCode int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// Live обрабатывает GET /health/live — процесс работает.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, http.StatusOK, "ok")
}

// Ready обрабатывает GET /health/ready — сервис готов принимать трафик:
// каталог блобов доступен на запись, БД (если используется) отвечает на ping.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	probe := filepath.Join(h.blobs.DataDir(), ".ready-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		h.logger.Error("Каталог блобов недоступен на запись",
			slog.String("dir", h.blobs.DataDir()),
			slog.String("error", err.Error()),
		)
		writeHealth(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	_ = os.Remove(probe)

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Error("БД не отвечает на ping",
				slog.String("error", err.Error()),
			)
			writeHealth(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}

	writeHealth(w, http.StatusOK, "ok")
}
