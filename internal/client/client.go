// client — REST-клиент бэкенда Rewire: аутентификация, регистрация,
// восстановление пароля и цитата дня. Все запросы к API проходят через
// AuthTransport (см. transport.go), который прозрачно обновляет
// access-токен и прикладывает заголовок Authorization.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rewire-app/rewire-client/internal/config"
	"github.com/rewire-app/rewire-client/internal/models"
	"github.com/rewire-app/rewire-client/internal/tokens"
)

// Пути эндпоинтов бэкенда (см. маршруты Django-приложения).
const (
	pathLogin          = "/login"
	pathTokenObtain    = "/api/token/"
	pathTokenRefresh   = "/api/token/refresh/"
	pathSignupStepOne  = "/signup/step-one"
	pathSignupStepTwo  = "/signup/step-two"
	pathForgotPassword = "/forget-password"
)

// Ответ /login считается успешным только с этим сообщением.
const loginSuccessMessage = "Login successful"

var (
	// ErrInvalidCredentials — бэкенд отверг пару e-mail/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnexpectedStatus — не-2xx ответ, не относящийся к учётным данным.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Client — типизированный доступ к REST-эндпоинтам.
type Client struct {
	baseURL  string
	quoteURL string

	// api — клиент с AuthTransport; quote — обычный клиент для
	// внешнего сервиса цитат, которому наш bearer не принадлежит.
	api   *http.Client
	quote *http.Client
}

// New создаёт клиент по конфигурации. Хранилище токенов нужно
// AuthTransport для проверки истечения и обновления access-токена.
func New(cfg config.APIConfig, ts *tokens.Store) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		quoteURL: cfg.QuoteURL,
		api: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: NewAuthTransport(http.DefaultTransport, ts, cfg.BaseURL),
		},
		quote: &http.Client{Timeout: cfg.Timeout},
	}
}

// SignupStepOneRequest — данные первого шага регистрации.
type SignupStepOneRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	UserName  string `json:"user_name"`
}

// SignupStepTwoRequest — данные второго шага регистрации.
type SignupStepTwoRequest struct {
	TempUserID      string `json:"temp_user_id"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Login проверяет учётные данные на /login и, при успехе, получает
// пару JWT на /api/token/.
func (c *Client) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	const op = "client.Login"

	creds := map[string]string{"email": email, "password": password}

	var loginResp struct {
		Message string `json:"message"`
	}
	if err := c.postJSON(ctx, pathLogin, creds, &loginResp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if loginResp.Message != loginSuccessMessage {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	var pair models.TokenPair
	if err := c.postJSON(ctx, pathTokenObtain, creds, &pair); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &pair, nil
}

// RefreshAccess обменивает refresh-токен на новый access-токен.
func (c *Client) RefreshAccess(ctx context.Context, refreshToken string) (string, error) {
	const op = "client.RefreshAccess"

	var resp struct {
		Access string `json:"access"`
	}
	err := c.postJSON(ctx, pathTokenRefresh, map[string]string{"refresh": refreshToken}, &resp)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return resp.Access, nil
}

// SignupStepOne отправляет имя/фамилию/логин и возвращает temp_user_id
// для второго шага.
func (c *Client) SignupStepOne(ctx context.Context, req SignupStepOneRequest) (string, error) {
	const op = "client.SignupStepOne"

	var resp struct {
		TempUserID string `json:"temp_user_id"`
	}
	if err := c.postJSON(ctx, pathSignupStepOne, req, &resp); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return resp.TempUserID, nil
}

// SignupStepTwo завершает регистрацию. Если бэкенд сразу выдал пару
// токенов, она возвращается; иначе поля пары пусты и вход выполняется
// отдельным Login.
func (c *Client) SignupStepTwo(ctx context.Context, req SignupStepTwoRequest) (*models.TokenPair, error) {
	const op = "client.SignupStepTwo"

	var pair models.TokenPair
	if err := c.postJSON(ctx, pathSignupStepTwo, req, &pair); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &pair, nil
}

// ForgotPassword запрашивает письмо для восстановления пароля.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	const op = "client.ForgotPassword"

	if err := c.postJSON(ctx, pathForgotPassword, map[string]string{"email": email}, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ResetPassword устанавливает новый пароль по ссылке из письма.
func (c *Client) ResetPassword(ctx context.Context, uid, token, newPassword string) error {
	const op = "client.ResetPassword"

	path := fmt.Sprintf("/reset-password/%s/%s", url.PathEscape(uid), url.PathEscape(token))
	body := map[string]string{"new_password": newPassword}
	if err := c.postJSON(ctx, path, body, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RandomQuote возвращает случайную цитату из внешнего сервиса.
// Ответ сервиса — массив из одного объекта {"q": ..., "a": ...}.
func (c *Client) RandomQuote(ctx context.Context) (*models.Quote, error) {
	const op = "client.RandomQuote"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.quoteURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.quote.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %w: %d", op, ErrUnexpectedStatus, resp.StatusCode)
	}

	var payload []struct {
		Q string `json:"q"`
		A string `json:"a"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%s: empty quote response", op)
	}

	return &models.Quote{Text: payload[0].Q, Author: payload[0].A}, nil
}

// postJSON выполняет POST с JSON-телом и разбирает JSON-ответ в out
// (out == nil — тело ответа не интересует).
//
// Классификация статусов: 400/401 считаются отказом по учётным данным
// (ErrInvalidCredentials), остальные не-2xx — ErrUnexpectedStatus.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.api.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
