package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rewire-app/rewire-client/internal/pkg/log"
	"github.com/rewire-app/rewire-client/internal/tokens"
)

// AuthTransport — http.RoundTripper, прозрачно поддерживающий
// валидный access-токен на исходящих запросах к API.
//
// Поведение (для всех запросов, кроме самих токен-эндпоинтов):
//   - если сохранённый access-токен просрочен — ровно одна попытка
//     обновления по refresh-токену;
//   - успех обновления — новый access-токен сохраняется и прикладывается;
//   - отказ обновления — оба токена очищаются, запрос уходит без
//     Authorization и отвергается бэкендом штатным auth-ответом.
//     Очереди запросов и повторов после неудачного обновления нет.
type AuthTransport struct {
	base   http.RoundTripper
	tokens *tokens.Store

	// refreshURL — абсолютный адрес эндпоинта обновления.
	refreshURL string

	// now подменяется в тестах.
	now func() time.Time
}

// NewAuthTransport создаёт транспорт поверх base (nil — http.DefaultTransport).
func NewAuthTransport(base http.RoundTripper, ts *tokens.Store, apiBaseURL string) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &AuthTransport{
		base:       base,
		tokens:     ts,
		refreshURL: strings.TrimRight(apiBaseURL, "/") + pathTokenRefresh,
		now:        time.Now,
	}
}

// RoundTrip реализует http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	const op = "client.AuthTransport.RoundTrip"

	// Токен-эндпоинты аутентифицируются телом запроса, не заголовком.
	if p := req.URL.Path; p == pathTokenObtain || p == pathTokenRefresh {
		return t.base.RoundTrip(req)
	}

	ctx := req.Context()

	if t.tokens.IsExpired(ctx, t.now()) {
		if refresh, ok := t.tokens.Refresh(ctx); ok {
			access, err := t.refreshAccess(req, refresh)
			if err != nil {
				log.From(ctx).Warn("token_refresh_failed",
					slog.String("op", op),
					slog.String("err", err.Error()),
				)
				t.tokens.Clear(ctx)
			} else if err := t.tokens.Save(ctx, access, ""); err != nil {
				log.From(ctx).Warn("token_save_failed",
					slog.String("op", op),
					slog.String("err", err.Error()),
				)
			}
		}
	}

	// RoundTrip не должен мутировать исходный запрос.
	if access, ok := t.tokens.Access(ctx); ok {
		req = req.Clone(ctx)
		req.Header.Set("Authorization", "Bearer "+access)
	}

	return t.base.RoundTrip(req)
}

// refreshAccess выполняет POST на эндпоинт обновления через базовый
// транспорт (минуя перехват, чтобы исключить рекурсию).
func (t *AuthTransport) refreshAccess(orig *http.Request, refreshToken string) (string, error) {
	raw, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(orig.Context(), http.MethodPost, t.refreshURL, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var body struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Access == "" {
		return "", fmt.Errorf("refresh response without access token")
	}

	return body.Access, nil
}
