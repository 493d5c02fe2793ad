// session.go — middleware сессий.
//
// Каждому посетителю выдаётся cookie с идентификатором сессии.
// Идентификатор определяет область видимости хранилища метаданных:
// session-бэкенд держит отдельный набор записей на каждую сессию,
// файловый и postgres-бэкенды игнорируют область и разделяют один набор.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/bigkaa/filedrop/internal/store"
)

// SessionCookieName — имя cookie с идентификатором сессии.
const SessionCookieName = "fd_session"

type contextKey string

const storeContextKey contextKey = "filedrop-store"

// SessionMiddleware выдаёт cookie сессии и кладёт в контекст запроса
// хранилище, разрешённое провайдером для этой сессии.
func SessionMiddleware(provider store.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string

			cookie, err := r.Cookie(SessionCookieName)
			if err == nil && cookie.Value != "" {
				sessionID = cookie.Value
			} else {
				sessionID = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    sessionID,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			st := provider.For(sessionID)
			ctx := context.WithValue(r.Context(), storeContextKey, st)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StoreFrom возвращает хранилище метаданных из контекста запроса.
// Паникует, если SessionMiddleware не был подключён: это ошибка
// конфигурации маршрутов, а не ситуация времени выполнения.
func StoreFrom(ctx context.Context) store.Store {
	st, ok := ctx.Value(storeContextKey).(store.Store)
	if !ok {
		panic("middleware: хранилище отсутствует в контексте запроса")
	}
	return st
}
