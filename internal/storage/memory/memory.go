// memory — реализация storage.KeyValue в памяти процесса.
// Используется в тестах и для эфемерных сессий без сохранения на диск.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rewire-app/rewire-client/internal/storage"
)

// Store — потокобезопасное in-memory key-value-хранилище.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

// Get возвращает значение по ключу или storage.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", fmt.Errorf("storage/memory: key %q: %w", key, storage.ErrNotFound)
	}

	return v, nil
}

// Set сохраняет значение по ключу.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// Delete удаляет ключ; отсутствие ключа — не ошибка.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Len возвращает число сохранённых ключей (для assert'ов в тестах).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}
