package models

// TokenPair — пара токенов, выдаваемая бэкендом при аутентификации.
//
// Описание:
//   - AccessToken — короткоживущий JWT, прикладывается к запросам
//     заголовком Authorization: Bearer;
//   - RefreshToken — долгоживущий секрет, предъявляется только эндпоинту
//     обновления для выпуска нового access-токена.
type TokenPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}
