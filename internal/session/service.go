// session содержит менеджер пользовательской сессии — единственный
// источник истины «аутентифицирован ли пользователь» и единственного
// писателя локального хранилища токенов и записи о пользователе.
//
// Основные аспекты:
//   - Состояние (LoggedIn/Loading/User) читается снимком через State();
//     UI его не мутирует.
//   - Ошибки чтения хранилища перехватываются и трактуются как
//     «данных нет» (fail safe в разлогиненное состояние); наружу они
//     не всплывают.
//   - Экземпляр Manager безопасен для конкурентного использования.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rewire-app/rewire-client/internal/client"
	"github.com/rewire-app/rewire-client/internal/models"
	"github.com/rewire-app/rewire-client/internal/storage"
	"github.com/rewire-app/rewire-client/internal/tokens"
)

var (
	// ErrValidation — пустые поля, несовпадающие пароли, отсутствующие
	// идентификаторы. Запрос к бэкенду не выполнялся.
	ErrValidation = errors.New("validation failed")

	// ErrStorage — запись в локальное хранилище не удалась после успешной
	// аутентификации. Отличима от отказа по учётным данным
	// (client.ErrInvalidCredentials), который всплывает как есть.
	ErrStorage = errors.New("storage failure")
)

// API — потребляемая менеджером часть REST-клиента.
// Выделено в интерфейс для подмены в тестах.
type API interface {
	Login(ctx context.Context, email, password string) (*models.TokenPair, error)
	RefreshAccess(ctx context.Context, refreshToken string) (string, error)
	SignupStepOne(ctx context.Context, req client.SignupStepOneRequest) (string, error)
	SignupStepTwo(ctx context.Context, req client.SignupStepTwoRequest) (*models.TokenPair, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, uid, token, newPassword string) error
}

// State — наблюдаемое состояние сессии.
//
// Loading == true только во время стартовой сверки Initialize;
// LoggedIn == true после успешного входа/регистрации либо когда при
// старте найден действующий (или обновляемый) access-токен.
type State struct {
	LoggedIn bool
	Loading  bool
	User     *models.User
}

// Manager — менеджер сессии.
type Manager struct {
	kv     storage.KeyValue
	tokens *tokens.Store
	api    API

	// now подменяется в тестах.
	now func() time.Time

	mu sync.Mutex
	st State
}

// New создаёт менеджер. До вызова Initialize состояние — Loading.
func New(kv storage.KeyValue, ts *tokens.Store, api API) *Manager {
	return &Manager{
		kv:     kv,
		tokens: ts,
		api:    api,
		now:    time.Now,
		st:     State{Loading: true},
	}
}

// State возвращает снимок состояния.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.st
	if st.User != nil {
		u := *st.User
		st.User = &u
	}

	return st
}

func (m *Manager) setState(loggedIn bool, user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.st.LoggedIn = loggedIn
	m.st.User = user
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.st.Loading = v
}
