// storage задаёт контракт устройства локального key-value-хранилища,
// в котором клиент держит токены и кэшированную запись о пользователе.
//
// Хранилище — единое разделяемое пространство имён с фиксированными
// ключами; единственный его писатель — session.Manager.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound — по ключу ничего не сохранено.
	ErrNotFound = errors.New("not found")
)

// Фиксированные ключи хранилища.
const (
	// KeyAccessToken — access-токен (строка).
	KeyAccessToken = "access_token"
	// KeyRefreshToken — refresh-токен (строка).
	KeyRefreshToken = "refresh_token"
	// KeyUser — JSON-сериализованная запись models.User.
	KeyUser = "user"
)

// KeyValue — операции над локальным key-value-хранилищем.
type KeyValue interface {
	// Get возвращает значение по ключу или ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set сохраняет значение по ключу, перезаписывая существующее.
	Set(ctx context.Context, key, value string) error
	// Delete удаляет значение по ключу; отсутствие ключа — не ошибка.
	Delete(ctx context.Context, key string) error
}
