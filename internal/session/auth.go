package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rewire-app/rewire-client/internal/models"
	"github.com/rewire-app/rewire-client/internal/pkg/log"
	"github.com/rewire-app/rewire-client/internal/pkg/redact"
	"github.com/rewire-app/rewire-client/internal/storage"
)

// Initialize выполняет стартовую сверку состояния. Вызывается один раз
// при запуске процесса.
//
// Алгоритм:
//  1. действующий access-токен: грузим кэшированного пользователя,
//     LoggedIn = true;
//  2. иначе при наличии refresh-токена — одна попытка обновления;
//     отказ обновления очищает оба токена;
//  3. нет токенов — разлогинены.
//
// Loading снимается в defer на каждом пути выхода: UI не должен
// застревать в состоянии загрузки ни при каких ошибках.
func (m *Manager) Initialize(ctx context.Context) {
	const op = "session.Manager.Initialize"

	defer m.setLoading(false)

	lg := log.From(ctx)

	if _, ok := m.tokens.Access(ctx); ok && !m.tokens.IsExpired(ctx, m.now()) {
		user := m.loadUser(ctx)
		m.setState(true, user)
		lg.Debug("session_restored", slog.String("op", op))
		return
	}

	refresh, ok := m.tokens.Refresh(ctx)
	if !ok {
		m.setState(false, nil)
		lg.Debug("session_absent", slog.String("op", op))
		return
	}

	access, err := m.api.RefreshAccess(ctx, refresh)
	if err != nil {
		m.tokens.Clear(ctx)
		m.setState(false, nil)
		lg.Info("session_refresh_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return
	}

	// Эндпоинт обновления возвращает только access; refresh остаётся прежним.
	if err := m.tokens.Save(ctx, access, ""); err != nil {
		lg.Warn("token_save_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	m.setState(true, m.loadUser(ctx))
	lg.Debug("session_refreshed", slog.String("op", op))
}

// Login выполняет вход по e-mail и паролю.
//
// Отказ по учётным данным и сетевые ошибки всплывают как есть
// (client.ErrInvalidCredentials и пр.); неудачная запись в хранилище
// после успешной аутентификации — отдельная ошибка ErrStorage.
// До успешного завершения состояние не меняется.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	const op = "session.Manager.Login"

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return fmt.Errorf("%s: empty email or password: %w", op, ErrValidation)
	}

	pair, err := m.api.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.tokens.Save(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return fmt.Errorf("%s: save tokens: %w", op, errors.Join(ErrStorage, err))
	}

	user := &models.User{Email: email}
	if err := m.saveUser(ctx, user); err != nil {
		return fmt.Errorf("%s: save user: %w", op, errors.Join(ErrStorage, err))
	}

	m.setState(true, user)
	log.From(ctx).Info("login_ok",
		slog.String("op", op),
		slog.String("email", redact.Email(email)),
	)

	return nil
}

// Logout очищает токены и запись о пользователе. Ошибки удаления
// логируются, но не возвращаются: с точки зрения вызывающего выход
// завершается всегда.
func (m *Manager) Logout(ctx context.Context) {
	const op = "session.Manager.Logout"

	m.tokens.Clear(ctx)

	if err := m.kv.Delete(ctx, storage.KeyUser); err != nil {
		log.From(ctx).Warn("user_record_clear_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	m.setState(false, nil)
	log.From(ctx).Info("logout_ok", slog.String("op", op))
}

// IsTokenExpired сообщает, просрочен ли сохранённый access-токен сейчас.
func (m *Manager) IsTokenExpired(ctx context.Context) bool {
	return m.tokens.IsExpired(ctx, m.now())
}

// loadUser читает кэшированную запись о пользователе.
// Любая ошибка (чтения или разбора) логируется и даёт nil.
func (m *Manager) loadUser(ctx context.Context) *models.User {
	const op = "session.Manager.loadUser"

	raw, err := m.kv.Get(ctx, storage.KeyUser)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Warn("user_record_read_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
		return nil
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		log.From(ctx).Warn("user_record_parse_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil
	}

	return &user
}

// saveUser сериализует и сохраняет запись о пользователе.
func (m *Manager) saveUser(ctx context.Context, user *models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}

	return m.kv.Set(ctx, storage.KeyUser, string(raw))
}
