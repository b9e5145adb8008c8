// Package middlewarectx содержит HTTP middleware панели администратора.
//
// JWTMiddleware проверяет токен администратора в заголовке Authorization и
// кладет в контекст его идентификатор и имя. RateLimitMiddleware ограничивает
// частоту запросов к открытым конечным точкам.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/Uz11ps/markethelper/internal/http/response"
	customjwt "github.com/Uz11ps/markethelper/internal/lib/jwt"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// AdminID ключ идентификатора администратора в контексте
	AdminID Key = "admin_id"
	// AdminUsername ключ имени администратора в контексте
	AdminUsername Key = "admin_username"
)

// TokenParser проверяет подпись и срок действия токена.
type TokenParser interface {
	ParseToken(token string) (*customjwt.CustomClaims, error)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
//
// Если токен валиден, добавляет идентификатор и имя администратора в контекст запроса,
// иначе возвращает ошибку с HTTP статусом 401 Unauthorized.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := parser.ParseToken(tokenStr)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), AdminID, claims.AdminID)
			ctx = context.WithValue(ctx, AdminUsername, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminIDFromContext возвращает идентификатор администратора, положенный JWTMiddleware.
func AdminIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(AdminID).(int)
	return id, ok && id > 0
}
