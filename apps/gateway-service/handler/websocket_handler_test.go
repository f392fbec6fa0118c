package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"chatlink/apps/gateway-service/service"
	"chatlink/pkg/auth"
	"chatlink/pkg/logger"
	"chatlink/pkg/presence"
	"chatlink/pkg/pubsub"
)

const testSecret = "test-secret"

// nopStore 最小presence.Store实现，计数行为与单连接场景一致
type nopStore struct{}

func (nopStore) Incr(context.Context, string) (int64, error)          { return 1, nil }
func (nopStore) Decr(context.Context, string) (int64, error)          { return 0, nil }
func (nopStore) Del(context.Context, ...string) error                 { return nil }
func (nopStore) Set(context.Context, string, interface{}, time.Duration) error {
	return nil
}
func (nopStore) ZAdd(context.Context, string, ...*goredis.Z) (int64, error) { return 1, nil }
func (nopStore) ZRem(context.Context, string, ...interface{}) error         { return nil }
func (nopStore) ZScore(context.Context, string, string) (float64, error) {
	return 0, goredis.Nil
}
func (nopStore) ZRange(context.Context, string, int64, int64) ([]string, error) {
	return nil, nil
}
func (nopStore) ZRemRangeByScore(context.Context, string, string, string) error { return nil }

// recordBus 记录发布事件的总线
type recordBus struct {
	mu     sync.Mutex
	events []pubsub.Event
}

func (b *recordBus) Publish(_ context.Context, ev pubsub.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordBus) OnMessage(pubsub.Channel, pubsub.Handler)  {}
func (b *recordBus) OffMessage(pubsub.Channel, pubsub.Handler) {}
func (b *recordBus) Close() error                              { return nil }

// waitFor 轮询等待第n个事件出现
func (b *recordBus) waitFor(t *testing.T, n int) []pubsub.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		if len(b.events) >= n {
			out := make([]pubsub.Event, len(b.events))
			copy(out, b.events)
			b.mu.Unlock()
			return out
		}
		b.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d bus events", n)
	return nil
}

func startWSServer(t *testing.T, h *WSHandler) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		h.HandleConnection(conn, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// TestUnauthorizedConnection 测试无效token收到unauthorized帧后连接关闭
func TestUnauthorizedConnection(t *testing.T) {
	h := NewWSHandler(nil, testSecret, logger.GetLogger())
	wsURL := startWSServer(t, h)

	client, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=garbage", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame service.Frame
	if err := client.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Event != "unauthorized" {
		t.Fatalf("expected unauthorized frame, got %q", frame.Event)
	}

	// 服务端随后关闭连接
	if _, _, err := client.ReadMessage(); err == nil {
		t.Fatal("connection should be closed after unauthorized")
	}
}

// TestAuthorizedConnectionLifecycle 测试合法token的完整连接生命周期
func TestAuthorizedConnectionLifecycle(t *testing.T) {
	bus := &recordBus{}
	tracker := presence.NewTracker(nopStore{}, logger.GetLogger(), 0)
	svc := service.NewService(tracker, bus, logger.GetLogger(), time.Minute)
	h := NewWSHandler(svc, testSecret, logger.GetLogger())
	wsURL := startWSServer(t, h)

	token, err := auth.NewJWTConfig(testSecret).GenerateToken("u42", nil)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	client, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	// 上线边沿
	events := bus.waitFor(t, 1)
	online, ok := events[0].(*pubsub.UserStatusPayload)
	if !ok || online.UserID != "u42" || !online.IsOnline {
		t.Fatalf("expected online status for u42, got %+v", events[0])
	}

	// typing帧转成总线事件，userId以token身份为准
	err = client.WriteJSON(map[string]interface{}{
		"event": "typingStart",
		"payload": map[string]interface{}{
			"chatId":      "chat1",
			"receiverIds": []string{"u7"},
		},
	})
	if err != nil {
		t.Fatalf("write typing frame: %v", err)
	}

	events = bus.waitFor(t, 2)
	typing, ok := events[1].(*pubsub.UserTypingPayload)
	if !ok {
		t.Fatalf("expected typing event, got %+v", events[1])
	}
	if typing.UserID != "u42" || typing.ChatID != "chat1" || !typing.IsTyping {
		t.Fatalf("unexpected typing event: %+v", typing)
	}

	// 断开后发布下线边沿
	client.Close()
	events = bus.waitFor(t, 3)
	offline, ok := events[2].(*pubsub.UserStatusPayload)
	if !ok || offline.UserID != "u42" || offline.IsOnline {
		t.Fatalf("expected offline status for u42, got %+v", events[2])
	}
}

// TestExtractToken 测试token的三种来源
func TestExtractToken(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer abc")
	if got := extractToken(r); got != "abc" {
		t.Fatalf("bearer token: got %q", got)
	}

	r, _ = http.NewRequest(http.MethodGet, "/ws?token=qrs", nil)
	if got := extractToken(r); got != "qrs" {
		t.Fatalf("query token: got %q", got)
	}

	r, _ = http.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Sec-WebSocket-Protocol", "xyz")
	if got := extractToken(r); got != "xyz" {
		t.Fatalf("subprotocol token: got %q", got)
	}
}
