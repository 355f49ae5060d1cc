// file — файловая реализация storage.KeyValue: плоский JSON-объект
// по настраиваемому пути. Аналог device-local хранилища мобильного
// приложения для десктопного клиента.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rewire-app/rewire-client/internal/storage"
)

// Store — файловое key-value-хранилище.
//
// Всё содержимое держится в памяти и целиком переписывается на диск
// при каждой мутации (записей — единицы, это дешевле журнала).
// Запись атомарна: временный файл + rename. Файл создаётся с правами 0600,
// т.к. содержит токены.
type Store struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// New открывает (или создаёт) хранилище по пути path.
// Отсутствующий файл — это пустое хранилище, не ошибка.
func New(path string) (*Store, error) {
	const op = "storage/file/New"

	if path == "" {
		return nil, fmt.Errorf("%s: empty path", op)
	}

	s := &Store{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}

		return nil, fmt.Errorf("%s: read %q: %w", op, path, err)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("%s: parse %q: %w", op, path, err)
		}
	}

	return s, nil
}

// Get возвращает значение по ключу или storage.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	const op = "storage/file/Get"

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.data[key]
	if !ok {
		return "", fmt.Errorf("%s: key %q: %w", op, key, storage.ErrNotFound)
	}

	return v, nil
}

// Set сохраняет значение и синхронно переписывает файл.
func (s *Store) Set(_ context.Context, key, value string) error {
	const op = "storage/file/Set"

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	if err := s.flush(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Delete удаляет ключ; отсутствие ключа — не ошибка.
func (s *Store) Delete(_ context.Context, key string) error {
	const op = "storage/file/Delete"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}

	delete(s.data, key)
	if err := s.flush(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// flush переписывает файл целиком; вызывается под mu.
func (s *Store) flush() error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".store-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, s.path)
}
