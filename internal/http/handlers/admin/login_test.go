package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
	adminservice "github.com/Uz11ps/markethelper/internal/services/admin"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Login(ctx context.Context, username, password string) (*adminservice.LoginResult, error) {
	args := m.Called(ctx, username, password)
	resp, _ := args.Get(0).(*adminservice.LoginResult)
	return resp, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		mockResp       *adminservice.LoginResult
		mockErr        error
		wantStatusCode int
		wantToken      string
		wantError      string
		wantStatus     string
	}{
		{
			name:        "успешный вход",
			requestBody: Request{Username: "root", Password: "secret"},
			mockResp: &adminservice.LoginResult{
				Token: "jwt-token",
				Admin: &models.Admin{ID: 1, Username: "root", IsActive: true},
			},
			wantStatusCode: http.StatusOK,
			wantToken:      "jwt-token",
			wantStatus:     "OK",
		},
		{
			name:           "битый json",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
			wantStatus:     "Error",
		},
		{
			name:           "нет пароля",
			requestBody:    Request{Username: "root"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Password is a required field",
			wantStatus:     "Error",
		},
		{
			name:        "неверные учетные данные",
			requestBody: Request{Username: "root", Password: "wrong"},
			mockErr: fmt.Errorf("services.admin.Login: %w",
				apperr.New(apperr.ErrUnauthenticated, "Неверный логин или пароль")),
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "Неверный логин или пароль",
			wantStatus:     "Error",
		},
		{
			name:           "внутренняя ошибка",
			requestBody:    Request{Username: "root", Password: "secret"},
			mockErr:        errors.New("db down"),
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "invalid credentials",
			wantStatus:     "Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &AuthServiceMock{}
			if tt.mockResp != nil || tt.mockErr != nil {
				body := tt.requestBody.(Request)
				svc.On("Login", mock.Anything, body.Username, body.Password).Return(tt.mockResp, tt.mockErr).Once()
			}

			var bodyBytes []byte
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				var err error
				bodyBytes, err = json.Marshal(v)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			rec := httptest.NewRecorder()

			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantStatus, got["status"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				data := got["data"].(map[string]any)
				assert.Equal(t, tt.wantToken, data["access_token"])
				assert.NotContains(t, data["admin"], "PasswordHash")
			}
			svc.AssertExpectations(t)
		})
	}
}
