package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rewire-app/rewire-client/internal/client"
	"github.com/rewire-app/rewire-client/internal/models"
	"github.com/rewire-app/rewire-client/internal/pkg/log"
	"github.com/rewire-app/rewire-client/internal/pkg/redact"
)

// SignupStepOne отправляет имя/фамилию/логин и возвращает temp_user_id,
// который нужен второму шагу.
func (m *Manager) SignupStepOne(ctx context.Context, firstName, lastName, userName string) (string, error) {
	const op = "session.Manager.SignupStepOne"

	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	userName = strings.TrimSpace(userName)
	if firstName == "" || lastName == "" || userName == "" {
		return "", fmt.Errorf("%s: empty name fields: %w", op, ErrValidation)
	}

	tempID, err := m.api.SignupStepOne(ctx, client.SignupStepOneRequest{
		FirstName: firstName,
		LastName:  lastName,
		UserName:  userName,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if tempID == "" {
		return "", fmt.Errorf("%s: backend returned no temp_user_id", op)
	}

	return tempID, nil
}

// SignupStepTwo завершает регистрацию. Если бэкенд вернул пару токенов,
// она сохраняется и сессия считается открытой — отдельный Login не нужен.
func (m *Manager) SignupStepTwo(ctx context.Context, tempUserID, email, password, confirmPassword string) error {
	const op = "session.Manager.SignupStepTwo"

	if strings.TrimSpace(tempUserID) == "" {
		return fmt.Errorf("%s: missing temp_user_id: %w", op, ErrValidation)
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return fmt.Errorf("%s: empty email or password: %w", op, ErrValidation)
	}
	if password != confirmPassword {
		return fmt.Errorf("%s: passwords do not match: %w", op, ErrValidation)
	}

	pair, err := m.api.SignupStepTwo(ctx, client.SignupStepTwoRequest{
		TempUserID:      tempUserID,
		Email:           email,
		Password:        password,
		ConfirmPassword: confirmPassword,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if pair.AccessToken == "" {
		// Бэкенд не выдал токены: регистрация завершена, вход отдельным Login.
		return nil
	}

	if err := m.tokens.Save(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return fmt.Errorf("%s: save tokens: %w", op, err)
	}

	user := &models.User{Email: email}
	if err := m.saveUser(ctx, user); err != nil {
		return fmt.Errorf("%s: save user: %w", op, err)
	}

	m.setState(true, user)
	log.From(ctx).Info("signup_ok",
		slog.String("op", op),
		slog.String("email", redact.Email(email)),
	)

	return nil
}

// ForgotPassword запрашивает письмо восстановления пароля.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	const op = "session.Manager.ForgotPassword"

	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%s: empty email: %w", op, ErrValidation)
	}

	if err := m.api.ForgotPassword(ctx, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ResetPassword устанавливает новый пароль по идентификаторам из письма.
func (m *Manager) ResetPassword(ctx context.Context, uid, token, newPassword string) error {
	const op = "session.Manager.ResetPassword"

	if uid == "" || token == "" {
		return fmt.Errorf("%s: missing reset identifiers: %w", op, ErrValidation)
	}
	if newPassword == "" {
		return fmt.Errorf("%s: empty password: %w", op, ErrValidation)
	}

	if err := m.api.ResetPassword(ctx, uid, token, newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
