package models

// Sender — источник сообщения в чате с точки зрения локального клиента.
type Sender string

const (
	// SenderSelf — сообщение, отправленное этим клиентом.
	SenderSelf Sender = "self"
	// SenderRemote — сообщение, пришедшее по каналу от удалённой стороны.
	SenderRemote Sender = "remote"
)

// ChatMessage — одно сообщение в ленте чата.
//
// Создаётся либо локально при отправке (оптимистично, без ожидания
// подтверждения сервера), либо при получении кадра по каналу.
// После создания неизменяемо; живёт в памяти на время сессии чата.
type ChatMessage struct {
	// ID — уникальный идентификатор для стабильного порядка в ленте.
	ID string
	// Sender — self или remote.
	Sender Sender
	// Text — тело сообщения; для локально отправленных всегда непустое.
	Text string
}
