// Пакет middleware — HTTP middleware filedrop: логирование запросов,
// метрики Prometheus, сессии и вычистка истёкших файлов.
//
// metrics.go — метрики HTTP-запросов и прикладных операций.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fd_http_requests_total",
		Help: "Общее количество HTTP-запросов",
	}, []string{"method", "path", "status"})

	// httpRequestDuration — длительность HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fd_http_request_duration_seconds",
		Help:    "Длительность обработки HTTP-запросов в секундах",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"method", "path"})
)

// normalizePath сворачивает пути с ключами хранения в шаблоны,
// чтобы не взрывать кардинальность метрик.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/download/"):
		return "/download/{storageKey}"
	case strings.HasPrefix(path, "/delete/"):
		return "/delete/{storageKey}"
	case strings.HasPrefix(path, "/profile/"):
		return "/profile/{name}"
	}
	return path
}

// MetricsMiddleware собирает метрики по каждому HTTP-запросу.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := newResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)
		httpRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(wrapped.statusCode),
		).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
