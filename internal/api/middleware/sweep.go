// sweep.go — middleware вычистки истёкших файлов.
//
// Вычистка выполняется синхронно перед каждым прикладным запросом,
// поэтому ни листинг, ни скачивание никогда не видят истёкшую запись.
// Служебные маршруты (/metrics, /health, статика) вычистку не запускают.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/filedrop/internal/service"
)

// SweepMiddleware запускает вычистку истёкших файлов перед обработкой
// запроса. Хранилище берётся из контекста (SessionMiddleware обязан
// стоять раньше в цепочке). Ошибка вычистки логируется, но запрос
// обрабатывается дальше: устаревший листинг лучше, чем отказ.
func SweepMiddleware(sweeper *service.Sweeper, logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "sweep_middleware"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := StoreFrom(r.Context())
			if _, err := sweeper.Sweep(st, time.Now().UTC()); err != nil {
				log.Error("Ошибка вычистки перед запросом",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}
