// tokens управляет персистентной парой access/refresh-токенов:
// сохранение и очистка в локальном хранилище, декодирование claims
// access-токена и проверка истечения срока действия.
//
// Декодирование здесь намеренно без проверки подписи: клиент не владеет
// секретом бэкенда, ему нужен только срок действия из claims.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rewire-app/rewire-client/internal/pkg/log"
	"github.com/rewire-app/rewire-client/internal/storage"
)

var (
	// ErrMalformedToken — строка не является JWT или не содержит exp-claim.
	ErrMalformedToken = errors.New("malformed token")
	// ErrNoRefreshToken — refresh-токен отсутствует в хранилище.
	ErrNoRefreshToken = errors.New("no refresh token")
)

// Claims — интересующая клиента часть полезной нагрузки access-токена.
type Claims struct {
	// ExpiresAt — момент истечения (UTC); всегда заполнен.
	ExpiresAt time.Time
	// Subject — идентификатор пользователя, если бэкенд его кладёт.
	Subject string
	// Email — e-mail из claims, если присутствует.
	Email string
}

type accessClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// DecodeClaims декодирует claims access-токена без проверки подписи.
// Любая проблема формы (не-JWT, отсутствующий exp) — ErrMalformedToken.
func DecodeClaims(token string) (Claims, error) {
	const op = "tokens.DecodeClaims"

	if token == "" {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	if claims.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%s: missing exp: %w", op, ErrMalformedToken)
	}

	return Claims{
		ExpiresAt: claims.ExpiresAt.Time,
		Subject:   claims.Subject,
		Email:     claims.Email,
	}, nil
}

// Store — операции над сохранённой парой токенов.
type Store struct {
	kv storage.KeyValue
}

// NewStore создаёт Store поверх key-value-хранилища.
func NewStore(kv storage.KeyValue) *Store {
	return &Store{kv: kv}
}

// Save сохраняет access-токен и, если передан непустой refresh-токен,
// заменяет и его. Пустой refresh оставляет сохранённый без изменений —
// эндпоинт обновления возвращает только новый access-токен.
func (s *Store) Save(ctx context.Context, access, refresh string) error {
	const op = "tokens.Store.Save"

	if err := s.kv.Set(ctx, storage.KeyAccessToken, access); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if refresh != "" {
		if err := s.kv.Set(ctx, storage.KeyRefreshToken, refresh); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

// Access возвращает сохранённый access-токен.
// Любая ошибка чтения трактуется как «токена нет» и логируется.
func (s *Store) Access(ctx context.Context) (string, bool) {
	const op = "tokens.Store.Access"

	v, err := s.kv.Get(ctx, storage.KeyAccessToken)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Warn("access_token_read_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
		return "", false
	}

	return v, v != ""
}

// Refresh возвращает сохранённый refresh-токен (семантика как у Access).
func (s *Store) Refresh(ctx context.Context) (string, bool) {
	const op = "tokens.Store.Refresh"

	v, err := s.kv.Get(ctx, storage.KeyRefreshToken)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Warn("refresh_token_read_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
		return "", false
	}

	return v, v != ""
}

// Clear удаляет оба токена. Ошибки удаления логируются, но не возвращаются:
// с точки зрения вызывающего очистка завершается всегда.
func (s *Store) Clear(ctx context.Context) {
	const op = "tokens.Store.Clear"

	lg := log.From(ctx)

	if err := s.kv.Delete(ctx, storage.KeyAccessToken); err != nil {
		lg.Warn("access_token_clear_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	if err := s.kv.Delete(ctx, storage.KeyRefreshToken); err != nil {
		lg.Warn("refresh_token_clear_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}
}

// IsExpired сообщает, просрочен ли сохранённый access-токен на момент now:
// true, если токен отсутствует, некорректен или exp <= now.
func (s *Store) IsExpired(ctx context.Context, now time.Time) bool {
	access, ok := s.Access(ctx)
	if !ok {
		return true
	}

	claims, err := DecodeClaims(access)
	if err != nil {
		return true
	}

	return !claims.ExpiresAt.After(now)
}
