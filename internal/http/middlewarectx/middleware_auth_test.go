package middlewarectx_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Uz11ps/markethelper/internal/http/middlewarectx"
	customjwt "github.com/Uz11ps/markethelper/internal/lib/jwt"
)

type ParserMock struct {
	mock.Mock
}

func (m *ParserMock) ParseToken(token string) (*customjwt.CustomClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*customjwt.CustomClaims)
	return claims, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestJWTMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		authHeader     string
		claims         *customjwt.CustomClaims
		parseErr       error
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:           "нет заголовка Authorization",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "неверная схема",
			authHeader:     "Basic sometoken",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "токен не прошел проверку",
			authHeader:     "Bearer expired",
			parseErr:       errors.New("token is expired"),
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "валидный токен",
			authHeader:     "Bearer valid",
			claims:         &customjwt.CustomClaims{AdminID: 7, Username: "root"},
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &ParserMock{}
			if tt.claims != nil || tt.parseErr != nil {
				parser.On("ParseToken", tt.authHeader[len("Bearer "):]).Return(tt.claims, tt.parseErr).Once()
			}

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				id, ok := middlewarectx.AdminIDFromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, 7, id)
				assert.Equal(t, "root", r.Context().Value(middlewarectx.AdminUsername))
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/admin/requests", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			middlewarectx.JWTMiddleware(parser, newNoopLogger())(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			parser.AssertExpectations(t)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := middlewarectx.RateLimitMiddleware(newNoopLogger(), 0.001, 2)(next)

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/login", nil))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
