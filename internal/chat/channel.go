// chat поддерживает best-effort постоянное соединение с realtime-эндпоинтом
// комнаты: доставляет append-only ленту сообщений, сам восстанавливается
// после обрывов и отдаёт UI наблюдаемый поток событий.
//
// Переподключение — явный конечный автомат в одной горутине run
// (dial -> чтение -> ожидание с backoff), а не рекурсивный колбэк:
// это делает teardown и тесты управляемыми. Задержка растёт экспоненциально
// от начальной до максимальной и сбрасывается после успешного подключения.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rewire-app/rewire-client/internal/config"
	"github.com/rewire-app/rewire-client/internal/models"
	"github.com/rewire-app/rewire-client/internal/pkg/log"
)

var (
	// ErrEmptyMessage — текст сообщения пуст после TrimSpace.
	ErrEmptyMessage = errors.New("empty message")
	// ErrNotConnected — отправка при состоянии, отличном от Connected.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyStarted — повторный Connect на работающем канале.
	ErrAlreadyStarted = errors.New("channel already started")
	// ErrClosed — операция над закрытым каналом.
	ErrClosed = errors.New("channel closed")
)

// Вместимость буфера событий: UI, не успевающий читать, теряет старые
// события, но не блокирует цикл чтения.
const eventBuffer = 64

// Channel — канал чата одной комнаты.
type Channel struct {
	url    string
	dialer *websocket.Dialer
	rc     config.ReconnectConfig

	cancel context.CancelFunc

	mu           sync.Mutex
	state        ConnectionState
	conn         *websocket.Conn
	msgs         []models.ChatMessage
	started      bool
	closed       bool
	eventsClosed bool

	events chan Event
	done   chan struct{}
}

// New создаёт канал для комнаты room. Соединение не открывается до Connect.
func New(cfg config.ChatConfig, rc config.ReconnectConfig, room string) *Channel {
	if room == "" {
		room = cfg.DefaultRoom
	}

	return &Channel{
		url:    cfg.RoomURL(room),
		dialer: websocket.DefaultDialer,
		rc:     rc,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

// Connect запускает цикл подключения. Повторный вызов на уже работающем
// или закрытом канале — ошибка: одновременно живёт не более одного
// соединения на комнату.
func (c *Channel) Connect(ctx context.Context) error {
	const op = "chat.Channel.Connect"

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrAlreadyStarted)
	}
	c.started = true
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.run(runCtx)
	return nil
}

// Events возвращает поток событий канала. Канал закрывается после
// завершения цикла подключения (teardown).
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Done закрывается, когда цикл подключения полностью остановлен.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// State возвращает текущее состояние соединения.
func (c *Channel) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Messages возвращает снимок ленты сообщений.
func (c *Channel) Messages() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.ChatMessage, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Send отправляет сообщение: синхронно добавляет его в ленту
// (оптимистично, без ожидания подтверждения) и передаёт кадр в канал.
//
// Предусловия: текст непуст после TrimSpace и состояние Connected;
// иначе — ошибка без каких-либо побочных эффектов.
func (c *Channel) Send(ctx context.Context, text string) error {
	const op = "chat.Channel.Send"

	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyMessage)
	}

	c.mu.Lock()
	if c.state != Connected || c.conn == nil {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrNotConnected)
	}

	msg := models.ChatMessage{
		ID:     uuid.NewString(),
		Sender: models.SenderSelf,
		Text:   text,
	}
	c.msgs = append(c.msgs, msg)

	conn := c.conn
	frame := envelope{
		Type:      frameMessage,
		Content:   text,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}
	// Пишем под mu: у websocket-соединения может быть только один писатель.
	err := conn.WriteJSON(frame)
	c.mu.Unlock()

	c.emit(Event{Kind: EventMessage, Message: msg})

	if err != nil {
		// Обрыв транспорта доедет до читателя и запустит reconnect;
		// вызов считается выполненным — сообщение уже в ленте.
		log.From(ctx).Warn("chat_write_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	return nil
}

// ClearHistory очищает локальную ленту и, при открытом соединении,
// просит сервер забыть историю разговора.
func (c *Channel) ClearHistory(ctx context.Context) {
	const op = "chat.Channel.ClearHistory"

	c.mu.Lock()
	c.msgs = nil
	conn := c.conn
	var err error
	if conn != nil && c.state == Connected {
		err = conn.WriteJSON(envelope{Type: frameClearHistory})
	}
	c.mu.Unlock()

	if err != nil {
		log.From(ctx).Warn("chat_clear_history_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}
}

// Close останавливает канал: отменяет цикл подключения вместе с
// ожидающим reconnect-таймером и закрывает соединение. Идемпотентен.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	started := c.started
	conn := c.conn
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if !started {
		// Цикл не запускался — закрываем поток событий сами.
		c.closeEvents()
		close(c.done)
	}
}

// run — конечный автомат подключения; единственный владелец dial/чтения.
func (c *Channel) run(ctx context.Context) {
	const op = "chat.Channel.run"

	defer func() {
		c.setState(Disconnected)
		c.closeEvents()
		close(c.done)
	}()

	lg := log.From(ctx)
	delay := c.rc.InitialDelay

	for {
		if ctx.Err() != nil {
			return
		}

		c.setState(Connecting)

		conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			c.setState(Disconnected)
			lg.Warn("chat_dial_failed",
				slog.String("op", op),
				slog.String("url", c.url),
				slog.String("err", err.Error()),
			)

			if !c.wait(ctx, delay) {
				return
			}
			delay = nextDelay(delay, c.rc.MaxDelay)
			continue
		}

		c.setConn(conn)
		c.setState(Connected)
		lg.Debug("chat_connected", slog.String("op", op), slog.String("url", c.url))

		// Сброс задержки после успешного подключения.
		delay = c.rc.InitialDelay

		c.readLoop(ctx, conn)

		c.setConn(nil)
		_ = conn.Close()
		c.setState(Disconnected)

		if ctx.Err() != nil {
			return
		}

		lg.Debug("chat_reconnect_scheduled",
			slog.String("op", op),
			slog.Duration("delay", delay),
		)
		if !c.wait(ctx, delay) {
			return
		}
		delay = nextDelay(delay, c.rc.MaxDelay)
	}
}

// readLoop читает кадры до ошибки транспорта или закрытия.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	const op = "chat.Channel.readLoop"

	lg := log.From(ctx)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				lg.Warn("chat_read_failed",
					slog.String("op", op),
					slog.String("err", err.Error()),
				)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			lg.Warn("chat_frame_invalid",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			continue
		}

		switch env.Type {
		case frameMessage:
			// Всё, что не отправлено этим клиентом, — remote, независимо
			// от поля sender: доверять маркировке ролей с той стороны
			// нельзя, иначе чужие сообщения выглядели бы своими.
			msg := models.ChatMessage{
				ID:     uuid.NewString(),
				Sender: models.SenderRemote,
				Text:   env.Content,
			}

			c.mu.Lock()
			c.msgs = append(c.msgs, msg)
			c.mu.Unlock()

			c.emit(Event{Kind: EventMessage, Message: msg})

		case frameError:
			c.emit(Event{Kind: EventError, Text: env.Content})

		case frameSystem:
			lg.Debug("chat_system_message",
				slog.String("op", op),
				slog.String("content", env.Content),
			)
			c.emit(Event{Kind: EventSystem, Text: env.Content})

		default:
			// Неизвестный тип кадра игнорируется.
		}
	}
}

// wait ждёт delay или отмены; false — контекст отменён (teardown),
// запланированное переподключение не состоится.
func (c *Channel) wait(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = conn
}

func (c *Channel) setState(st ConnectionState) {
	c.mu.Lock()
	if c.state == st {
		c.mu.Unlock()
		return
	}
	c.state = st
	c.mu.Unlock()

	c.emit(Event{Kind: EventState, State: st})
}

// emit доставляет событие без блокировки: переполненный буфер роняет
// событие, а не цикл чтения. Держит mu, чтобы отправка не пересеклась
// с закрытием потока событий.
func (c *Channel) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eventsClosed {
		return
	}

	select {
	case c.events <- ev:
	default:
	}
}

func (c *Channel) closeEvents() {
	c.mu.Lock()
	if c.eventsClosed {
		c.mu.Unlock()
		return
	}
	c.eventsClosed = true
	c.mu.Unlock()

	close(c.events)
}

func nextDelay(cur, ceil time.Duration) time.Duration {
	next := cur * 2
	if next > ceil {
		return ceil
	}
	return next
}
