package cookies

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Uz11ps/markethelper/internal/config"
	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/lib/netscape"
)

func newTestClient(url string, timeout time.Duration) *LoginClient {
	return NewLoginClient(config.CookieBroker{
		LoginURL:     url + "/signIn",
		CheckURL:     url + "/getUser",
		CookieDomain: "salesfinder.ru",
		LoginTimeout: timeout,
		CheckTimeout: timeout,
	})
}

func TestLoginClient_Login(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantKind    error
		wantSession string
	}{
		{
			name: "кука сессии из Set-Cookie",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var body loginRequest
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email != "user@mail.ru" || body.Password != "pass" {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "from-header", Path: "/", HttpOnly: true})
				w.WriteHeader(http.StatusOK)
			},
			wantSession: "from-header",
		},
		{
			name: "кука сессии из поля sid",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"sid":"from-body"}`))
			},
			wantSession: "from-body",
		},
		{
			name: "сервис не найден",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantKind: apperr.ErrNotFound,
		},
		{
			name: "неверные учетные данные",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"bad password"}`))
			},
			wantKind: apperr.ErrUnauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			cookies, err := newTestClient(srv.URL, 5*time.Second).Login(context.Background(), "user@mail.ru", "pass")
			if tt.wantKind != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantKind))
				return
			}
			require.NoError(t, err)
			require.True(t, netscape.Has(cookies, SessionCookie))
			for _, c := range cookies {
				if c.Name == SessionCookie {
					assert.Equal(t, tt.wantSession, c.Value)
				}
			}
		})
	}
}

func TestLoginClient_LoginErrorsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("denied"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 5*time.Second).Login(context.Background(), "a", "b")
	require.Error(t, err)
	assert.Equal(t, "Ошибка авторизации на внешнем сервисе (HTTP 401): denied", apperr.Message(err, ""))
}

func TestLoginClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestClient(srv.URL, 50*time.Millisecond).Login(context.Background(), "a", "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrDeadlineExceeded))
	assert.Equal(t, http.StatusGatewayTimeout, apperr.HTTPStatus(err))
}

func TestLoginClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, time.Second).Login(context.Background(), "a", "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, apperr.HTTPStatus(err))
}

func TestLoginClient_Check(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err != nil || c.Value != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, time.Second)

	ok, msg := client.Check(context.Background(), []*http.Cookie{{Name: SessionCookie, Value: "good"}})
	assert.True(t, ok)
	assert.Equal(t, "Куки действительны", msg)

	ok, msg = client.Check(context.Background(), []*http.Cookie{{Name: SessionCookie, Value: "stale"}})
	assert.False(t, ok)
	assert.Equal(t, "Сервер отказал, код 401", msg)
}
