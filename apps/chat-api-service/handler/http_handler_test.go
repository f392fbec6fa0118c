package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"

	"chatlink/apps/chat-api-service/service"
	"chatlink/pkg/logger"
	"chatlink/pkg/presence"
	"chatlink/pkg/pubsub"
)

// staticStore 返回固定在线列表的presence.Store
type staticStore struct {
	users []string
}

func (s *staticStore) Incr(context.Context, string) (int64, error) { return 1, nil }
func (s *staticStore) Decr(context.Context, string) (int64, error) { return 0, nil }
func (s *staticStore) Del(context.Context, ...string) error        { return nil }
func (s *staticStore) Set(context.Context, string, interface{}, time.Duration) error {
	return nil
}
func (s *staticStore) ZAdd(context.Context, string, ...*goredis.Z) (int64, error) { return 0, nil }
func (s *staticStore) ZRem(context.Context, string, ...interface{}) error         { return nil }
func (s *staticStore) ZScore(context.Context, string, string) (float64, error) {
	return 0, goredis.Nil
}
func (s *staticStore) ZRange(context.Context, string, int64, int64) ([]string, error) {
	return s.users, nil
}
func (s *staticStore) ZRemRangeByScore(context.Context, string, string, string) error { return nil }

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

func newTestRouter(bus pubsub.Bus, store presence.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	tracker := presence.NewTracker(store, logger.GetLogger(), 0)
	svc := service.NewService(bus, tracker, logger.GetLogger())
	NewHTTPHandler(svc, logger.GetLogger()).RegisterRoutes(engine)
	return engine
}

func postJSON(t *testing.T, engine *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// TestPublishMessage 测试新消息发布端点
func TestPublishMessage(t *testing.T) {
	bus := &recordBus{}
	engine := newTestRouter(bus, &staticStore{})

	w := postJSON(t, engine, "/internal/events/message", map[string]interface{}{
		"chatId":      "c1",
		"messageId":   "m1",
		"senderId":    "u1",
		"receiverIds": []string{"u2"},
		"text":        "hello",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}

	if len(bus.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(bus.events))
	}
	msg := bus.events[0].(*pubsub.NewMessagePayload)
	if msg.ChatID != "c1" || msg.Text != "hello" {
		t.Fatalf("unexpected event: %+v", msg)
	}
	if msg.CreatedAt == "" {
		t.Fatal("createdAt should be defaulted")
	}
}

// TestPublishMessageValidation 测试缺字段的请求被拒绝
func TestPublishMessageValidation(t *testing.T) {
	bus := &recordBus{}
	engine := newTestRouter(bus, &staticStore{})

	w := postJSON(t, engine, "/internal/events/message", map[string]interface{}{
		"chatId": "c1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", w.Code)
	}
	if len(bus.events) != 0 {
		t.Fatal("invalid request should not publish")
	}
}

// TestPublishChatDeleted 测试会话删除事件携带载荷中的接收者
func TestPublishChatDeleted(t *testing.T) {
	bus := &recordBus{}
	engine := newTestRouter(bus, &staticStore{})

	w := postJSON(t, engine, "/internal/events/chat/delete", map[string]interface{}{
		"chatId":      "c9",
		"userId":      "u1",
		"receiverIds": []string{"u2", "u3"},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}

	deleted := bus.events[0].(*pubsub.ChatDeletedPayload)
	if len(deleted.ReceiverIDs) != 2 {
		t.Fatalf("receivers should come from the request, got %v", deleted.ReceiverIDs)
	}
}

// TestPublishTyping 测试typing事件发布
func TestPublishTyping(t *testing.T) {
	bus := &recordBus{}
	engine := newTestRouter(bus, &staticStore{})

	w := postJSON(t, engine, "/internal/events/typing", map[string]interface{}{
		"userId":      "u1",
		"chatId":      "c1",
		"isTyping":    true,
		"receiverIds": []string{"u2"},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}

	typing := bus.events[0].(*pubsub.UserTypingPayload)
	if !typing.IsTyping || typing.UserID != "u1" {
		t.Fatalf("unexpected typing event: %+v", typing)
	}
}

// TestGetOnlineUsers 测试在线用户查询端点
func TestGetOnlineUsers(t *testing.T) {
	bus := &recordBus{}
	engine := newTestRouter(bus, &staticStore{users: []string{"u1", "u2"}})

	req := httptest.NewRequest(http.MethodGet, "/internal/presence/online", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}

	var resp struct {
		UserIDs []string `json:"userIds"`
		Count   int      `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.UserIDs) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
