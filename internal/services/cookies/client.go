package cookies

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Uz11ps/markethelper/internal/config"
	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/lib/netscape"
)

// SessionCookie кука сессии внешнего сервиса.
const SessionCookie = "connect.sid"

const maxErrorBody = 500

type loginRequest struct {
	Email    string `json:"user_email_address"`
	Password string `json:"user_password"`
}

// LoginClient авторизуется во внешнем сервисе и проверяет полученные куки.
type LoginClient struct {
	client       *http.Client
	loginURL     string
	checkURL     string
	domain       string
	loginTimeout time.Duration
	checkTimeout time.Duration
}

// NewLoginClient создает клиента внешнего сервиса авторизации.
func NewLoginClient(cfg config.CookieBroker) *LoginClient {
	return &LoginClient{
		client:       &http.Client{},
		loginURL:     cfg.LoginURL,
		checkURL:     cfg.CheckURL,
		domain:       cfg.CookieDomain,
		loginTimeout: cfg.LoginTimeout,
		checkTimeout: cfg.CheckTimeout,
	}
}

// Login выполняет вход с логином и паролем файла и возвращает куки сессии.
// Если сервис не выставил connect.sid, кука собирается из полей sid или connect.sid ответа.
func (c *LoginClient) Login(ctx context.Context, login, password string) ([]*http.Cookie, error) {
	const op = "services.cookies.Login"

	ctx, cancel := context.WithTimeout(ctx, c.loginTimeout)
	defer cancel()

	body, err := json.Marshal(loginRequest{Email: login, Password: password})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, transportError(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, transportError(err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrNotFound,
			"Сервис авторизации недоступен (404). Возможно, URL изменился или сервис временно недоступен"))
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrUnauthenticated,
			fmt.Sprintf("Ошибка авторизации на внешнем сервисе (HTTP %d): %s", resp.StatusCode, snippet(raw))))
	}

	cookies := resp.Cookies()
	if !netscape.Has(cookies, SessionCookie) {
		if sid := sessionFromBody(raw); sid != "" {
			cookies = append(cookies, &http.Cookie{Name: SessionCookie, Value: sid, Domain: c.domain, Path: "/"})
		}
	}
	return cookies, nil
}

// Check запрашивает профиль пользователя с куками и сообщает, принял ли их сервис.
func (c *LoginClient) Check(ctx context.Context, cookies []*http.Cookie) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.checkURL, nil)
	if err != nil {
		return false, fmt.Sprintf("Ошибка проверки: %v", err)
	}
	for _, ck := range cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("Ошибка проверки: %v", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusOK {
		return true, "Куки действительны"
	}
	return false, fmt.Sprintf("Сервер отказал, код %d", resp.StatusCode)
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperr.New(apperr.ErrDeadlineExceeded, "Превышено время ожидания ответа от сервиса авторизации")
	}
	return fmt.Errorf("%w: %w", apperr.New(apperr.ErrUnavailable, "Не удалось подключиться к сервису авторизации"), err)
}

func sessionFromBody(raw []byte) string {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return ""
	}
	for _, key := range []string{"sid", SessionCookie} {
		v, ok := data[key]
		if !ok || v == nil {
			continue
		}
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return ""
}

func snippet(raw []byte) string {
	if len(raw) == 0 {
		return "Нет деталей ошибки"
	}
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	return string(bytes.ToValidUTF8(raw, nil))
}
