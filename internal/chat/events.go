package chat

import "github.com/rewire-app/rewire-client/internal/models"

// ConnectionState — состояние realtime-канала.
type ConnectionState int32

const (
	// Disconnected — соединения нет; возможен запланированный reconnect.
	Disconnected ConnectionState = iota
	// Connecting — идёт установка соединения.
	Connecting
	// Connected — соединение открыто, отправка разрешена.
	Connected
)

// String реализует fmt.Stringer.
func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// EventKind — вид события канала.
type EventKind int

const (
	// EventMessage — в ленту добавлено сообщение (своё или удалённое).
	EventMessage EventKind = iota
	// EventState — изменилось состояние соединения.
	EventState
	// EventError — сервер прислал in-band ошибку (type:"error");
	// на состояние соединения и ленту не влияет.
	EventError
	// EventSystem — информационное сообщение сервера (type:"system").
	EventSystem
)

// Event — единица наблюдаемого потока канала для UI.
type Event struct {
	Kind    EventKind
	Message models.ChatMessage // заполнено для EventMessage
	State   ConnectionState    // заполнено для EventState
	Text    string             // заполнено для EventError/EventSystem
}

// Типы кадров-конвертов realtime-протокола.
const (
	frameMessage      = "message"
	frameError        = "error"
	frameSystem       = "system"
	frameClearHistory = "clear_history"
)

// envelope — JSON-конверт кадра. Входящие кадры различаются полем type;
// исходящее сообщение несёт content и дробный epoch-timestamp в секундах.
type envelope struct {
	Type      string  `json:"type"`
	Sender    string  `json:"sender,omitempty"`
	Content   string  `json:"content,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
}
