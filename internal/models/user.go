package models

// User — минимальная кэшируемая запись о пользователе.
//
// Записывается в локальное хранилище после успешного входа/регистрации
// и читается при старте приложения. Единственное обязательное поле — Email;
// остальные появляются после второго шага регистрации и могут быть пустыми.
type User struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}
