package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/rewire-app/rewire-client/internal/config"
	"github.com/rewire-app/rewire-client/internal/models"
)

// newWSServer поднимает websocket-сервер; handler вызывается на каждое
// принятое соединение в отдельной горутине.
func newWSServer(t *testing.T, handler func(conn *websocket.Conn)) (config.ChatConfig, *atomic.Int32) {
	t.Helper()

	var dials atomic.Int32
	up := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if handler != nil {
			handler(conn)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := config.ChatConfig{
		BaseURL:     "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rebot",
		DefaultRoom: "default",
	}

	return cfg, &dials
}

func fastReconnect() config.ReconnectConfig {
	return config.ReconnectConfig{
		InitialDelay: 30 * time.Millisecond,
		MaxDelay:     120 * time.Millisecond,
	}
}

// waitEvent читает события до первого заданного вида.
func waitEvent(t *testing.T, ch *Channel, kind EventKind) Event {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				t.Fatal("events channel closed while waiting")
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
		}
	}
}

func waitState(t *testing.T, ch *Channel, st ConnectionState) {
	t.Helper()

	require.Eventually(t, func() bool {
		return ch.State() == st
	}, 3*time.Second, 5*time.Millisecond)
}

func TestConnect_ReceivesRemoteMessage(t *testing.T) {
	t.Parallel()

	cfg, _ := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(envelope{Type: frameMessage, Sender: "therapist", Content: "hello"})
	})

	ch := New(cfg, fastReconnect(), "room-1")
	t.Cleanup(ch.Close)

	require.NoError(t, ch.Connect(context.Background()))

	ev := waitEvent(t, ch, EventMessage)
	require.Equal(t, models.SenderRemote, ev.Message.Sender)
	require.Equal(t, "hello", ev.Message.Text)

	msgs := ch.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, models.SenderRemote, msgs[0].Sender)
	require.Equal(t, "hello", msgs[0].Text)
	require.NotEmpty(t, msgs[0].ID)
}

// TestRemoteMapping_NonTherapistSender — любой входящий кадр type:"message"
// считается удалённым, какую бы роль ни указала та сторона.
func TestRemoteMapping_NonTherapistSender(t *testing.T) {
	t.Parallel()

	cfg, _ := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(envelope{Type: frameMessage, Sender: "user", Content: "from elsewhere"})
	})

	ch := New(cfg, fastReconnect(), "room-1")
	t.Cleanup(ch.Close)

	require.NoError(t, ch.Connect(context.Background()))

	ev := waitEvent(t, ch, EventMessage)
	require.Equal(t, models.SenderRemote, ev.Message.Sender)
}

func TestSend_Preconditions(t *testing.T) {
	t.Parallel()

	cfg := config.ChatConfig{BaseURL: "ws://localhost:1/ws/rebot", DefaultRoom: "default"}

	// Канал не подключён: отправка невозможна, лента не меняется.
	ch := New(cfg, fastReconnect(), "room-1")
	t.Cleanup(ch.Close)
	ctx := context.Background()

	require.ErrorIs(t, ch.Send(ctx, "hi"), ErrNotConnected)
	require.ErrorIs(t, ch.Send(ctx, ""), ErrEmptyMessage)
	require.ErrorIs(t, ch.Send(ctx, "   "), ErrEmptyMessage)
	require.Empty(t, ch.Messages())
}

func TestSend_OK_AppendsAndTransmits(t *testing.T) {
	t.Parallel()

	frames := make(chan envelope, 1)
	cfg, _ := newWSServer(t, func(conn *websocket.Conn) {
		var env envelope
		if err := conn.ReadJSON(&env); err == nil {
			frames <- env
		}
	})

	ch := New(cfg, fastReconnect(), "room-1")
	t.Cleanup(ch.Close)

	require.NoError(t, ch.Connect(context.Background()))
	waitState(t, ch, Connected)

	require.NoError(t, ch.Send(context.Background(), "hi there"))

	// Локальная лента пополняется синхронно.
	msgs := ch.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, models.SenderSelf, msgs[0].Sender)
	require.Equal(t, "hi there", msgs[0].Text)

	select {
	case env := <-frames:
		require.Equal(t, frameMessage, env.Type)
		require.Equal(t, "hi there", env.Content)
		require.Greater(t, env.Timestamp, 0.0)
	case <-time.After(3 * time.Second):
		t.Fatal("frame not transmitted")
	}
}

func TestErrorFrame_SurfacesWithoutStateChange(t *testing.T) {
	t.Parallel()

	cfg, _ := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(envelope{Type: frameError, Content: "room is full"})
	})

	ch := New(cfg, fastReconnect(), "room-1")
	t.Cleanup(ch.Close)

	require.NoError(t, ch.Connect(context.Background()))

	ev := waitEvent(t, ch, EventError)
	require.Equal(t, "room is full", ev.Text)
	require.Equal(t, Connected, ch.State())
	require.Empty(t, ch.Messages())
}

func TestSystemAndUnknownFrames(t *testing.T) {
	t.Parallel()

	cfg, _ := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(envelope{Type: "presence", Content: "ignored"})
		_ = conn.WriteJSON(envelope{Type: frameSystem, Content: "history cleared"})
		_ = conn.WriteJSON(envelope{Type: frameMessage, Content: "after"})
	})

	ch := New(cfg, fastReconnect(), "room-1")
	t.Cleanup(ch.Close)

	require.NoError(t, ch.Connect(context.Background()))

	// system доставляется событием, неизвестный тип пропадает молча,
	// а лента пополняется только сообщением.
	ev := waitEvent(t, ch, EventSystem)
	require.Equal(t, "history cleared", ev.Text)

	waitEvent(t, ch, EventMessage)
	msgs := ch.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "after", msgs[0].Text)
}

func TestReconnect_AfterServerDrop(t *testing.T) {
	t.Parallel()

	cfg, dials := newWSServer(t, func(conn *websocket.Conn) {
		// Сервер сразу рвёт соединение.
		_ = conn.Close()
	})

	ch := New(cfg, fastReconnect(), "room-1")
	t.Cleanup(ch.Close)

	require.NoError(t, ch.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return dials.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond)
}

// TestClose_CancelsPendingReconnect — teardown во время паузы между
// попытками гасит reconnect-таймер: новых подключений не будет.
func TestClose_CancelsPendingReconnect(t *testing.T) {
	t.Parallel()

	rc := config.ReconnectConfig{
		InitialDelay: 150 * time.Millisecond,
		MaxDelay:     600 * time.Millisecond,
	}

	cfg, dials := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.Close()
	})

	ch := New(cfg, rc, "room-1")
	require.NoError(t, ch.Connect(context.Background()))

	// Дожидаемся первой попытки и обрыва, закрываем во время паузы.
	require.Eventually(t, func() bool {
		return dials.Load() == 1 && ch.State() == Disconnected
	}, 3*time.Second, 5*time.Millisecond)

	ch.Close()

	select {
	case <-ch.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("run loop did not stop after Close")
	}

	// Выжидаем дольше задержки: новых dial'ов быть не должно.
	time.Sleep(2 * rc.InitialDelay)
	require.Equal(t, int32(1), dials.Load())

	// Поток событий закрыт.
	for {
		if _, ok := <-ch.Events(); !ok {
			break
		}
	}
}

func TestConnect_Guards(t *testing.T) {
	t.Parallel()

	cfg, _ := newWSServer(t, func(conn *websocket.Conn) {
		// Держим соединение открытым до закрытия клиентом.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ch := New(cfg, fastReconnect(), "room-1")
	ctx := context.Background()

	require.NoError(t, ch.Connect(ctx))
	require.ErrorIs(t, ch.Connect(ctx), ErrAlreadyStarted)

	ch.Close()
	require.ErrorIs(t, ch.Connect(ctx), ErrClosed)
}

func TestClose_Idempotent_WithoutConnect(t *testing.T) {
	t.Parallel()

	cfg := config.ChatConfig{BaseURL: "ws://localhost:1/ws/rebot", DefaultRoom: "default"}
	ch := New(cfg, fastReconnect(), "room-1")

	ch.Close()
	ch.Close()

	_, ok := <-ch.Events()
	require.False(t, ok)

	select {
	case <-ch.Done():
	default:
		t.Fatal("done must be closed after Close")
	}
}

func TestClearHistory(t *testing.T) {
	t.Parallel()

	frames := make(chan envelope, 2)
	cfg, _ := newWSServer(t, func(conn *websocket.Conn) {
		for {
			var env envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			frames <- env
		}
	})

	ch := New(cfg, fastReconnect(), "room-1")
	t.Cleanup(ch.Close)

	require.NoError(t, ch.Connect(context.Background()))
	waitState(t, ch, Connected)

	ctx := context.Background()
	require.NoError(t, ch.Send(ctx, "to be erased"))
	<-frames

	ch.ClearHistory(ctx)
	require.Empty(t, ch.Messages())

	select {
	case env := <-frames:
		require.Equal(t, frameClearHistory, env.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("clear_history frame not transmitted")
	}
}

func TestNextDelay_Caps(t *testing.T) {
	t.Parallel()

	require.Equal(t, 6*time.Second, nextDelay(3*time.Second, 48*time.Second))
	require.Equal(t, 48*time.Second, nextDelay(30*time.Second, 48*time.Second))
	require.Equal(t, 48*time.Second, nextDelay(48*time.Second, 48*time.Second))
}
