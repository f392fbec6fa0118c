package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"chatlink/pkg/logger"
)

// TestRegistryIdempotentAdd 测试同一处理函数重复注册只生效一次
func TestRegistryIdempotentAdd(t *testing.T) {
	d := newDispatcher(logger.GetLogger())

	calls := 0
	h := func(ctx context.Context, ev Event) { calls++ }

	d.registry.add(ChannelNewMessage, h)
	d.registry.add(ChannelNewMessage, h)
	d.registry.add(ChannelNewMessage, h)

	payload, _ := json.Marshal(&NewMessagePayload{ChatID: "c1", MessageID: "m1"})
	d.dispatch(context.Background(), ChannelNewMessage, payload)

	if calls != 1 {
		t.Fatalf("handler should be invoked once, got %d", calls)
	}
}

// TestRegistryRemove 测试注销后不再分发，注销未注册的函数为no-op
func TestRegistryRemove(t *testing.T) {
	d := newDispatcher(logger.GetLogger())

	calls := 0
	h := func(ctx context.Context, ev Event) { calls++ }
	other := func(ctx context.Context, ev Event) {}

	d.registry.add(ChannelNewMessage, h)
	d.registry.remove(ChannelNewMessage, other) // 未注册过
	d.registry.remove(ChannelUserStatus, h)     // 不同频道

	payload, _ := json.Marshal(&NewMessagePayload{ChatID: "c1"})
	d.dispatch(context.Background(), ChannelNewMessage, payload)
	if calls != 1 {
		t.Fatalf("handler should still be registered, got %d calls", calls)
	}

	d.registry.remove(ChannelNewMessage, h)
	d.dispatch(context.Background(), ChannelNewMessage, payload)
	if calls != 1 {
		t.Fatalf("removed handler should not be invoked, got %d calls", calls)
	}
}

// TestDispatchMultipleHandlers 测试同频道多个处理函数都被调用
func TestDispatchMultipleHandlers(t *testing.T) {
	d := newDispatcher(logger.GetLogger())

	var got []string
	d.registry.add(ChannelUserStatus, func(ctx context.Context, ev Event) {
		got = append(got, "a")
	})
	d.registry.add(ChannelUserStatus, func(ctx context.Context, ev Event) {
		got = append(got, "b")
	})

	payload, _ := json.Marshal(&UserStatusPayload{UserID: "u1", IsOnline: true})
	d.dispatch(context.Background(), ChannelUserStatus, payload)

	if len(got) != 2 {
		t.Fatalf("expected 2 handler invocations, got %d", len(got))
	}
}

// TestDispatchTypedEvent 测试分发给处理函数的是强类型事件
func TestDispatchTypedEvent(t *testing.T) {
	d := newDispatcher(logger.GetLogger())

	var received *NewMessagePayload
	d.registry.add(ChannelNewMessage, func(ctx context.Context, ev Event) {
		msg, ok := ev.(*NewMessagePayload)
		if !ok {
			t.Fatalf("expected *NewMessagePayload, got %T", ev)
		}
		received = msg
	})

	payload := []byte(`{"chatId":"c1","messageId":"m1","senderId":"u1","receiverIds":["u2","u3"],"text":"hi"}`)
	d.dispatch(context.Background(), ChannelNewMessage, payload)

	if received == nil {
		t.Fatal("handler not invoked")
	}
	if received.ChatID != "c1" || received.SenderID != "u1" {
		t.Fatalf("unexpected payload: %+v", received)
	}
	if len(received.ReceiverIDs) != 2 {
		t.Fatalf("expected 2 receivers, got %v", received.ReceiverIDs)
	}
}

// TestDispatchMalformedPayload 测试坏载荷被丢弃，不影响后续消息
func TestDispatchMalformedPayload(t *testing.T) {
	d := newDispatcher(logger.GetLogger())

	calls := 0
	d.registry.add(ChannelNewMessage, func(ctx context.Context, ev Event) { calls++ })

	d.dispatch(context.Background(), ChannelNewMessage, []byte(`{not json`))
	if calls != 0 {
		t.Fatal("malformed payload should not reach handlers")
	}

	payload, _ := json.Marshal(&NewMessagePayload{ChatID: "c1"})
	d.dispatch(context.Background(), ChannelNewMessage, payload)
	if calls != 1 {
		t.Fatal("valid payload after a malformed one should still be dispatched")
	}
}

// TestDispatchUnknownChannel 测试未知频道的消息被丢弃
func TestDispatchUnknownChannel(t *testing.T) {
	d := newDispatcher(logger.GetLogger())

	calls := 0
	d.registry.add(ChannelNewMessage, func(ctx context.Context, ev Event) { calls++ })

	d.dispatch(context.Background(), Channel("bogus"), []byte(`{}`))
	if calls != 0 {
		t.Fatal("unknown channel should not dispatch")
	}
}

// TestDecodeEventChannels 测试每个频道解码出对应的事件类型
func TestDecodeEventChannels(t *testing.T) {
	for _, ch := range AllChannels() {
		ev, err := DecodeEvent(ch, []byte(`{}`))
		if err != nil {
			t.Fatalf("DecodeEvent(%s): %v", ch, err)
		}
		if ev.EventChannel() != ch {
			t.Fatalf("decoded event reports channel %s, want %s", ev.EventChannel(), ch)
		}
	}

	if _, err := DecodeEvent(Channel("bogus"), []byte(`{}`)); err == nil {
		t.Fatal("unknown channel should fail to decode")
	}
}

// TestChatDeletedReceivers 测试chat_deleted的投递范围来自载荷
func TestChatDeletedReceivers(t *testing.T) {
	payload := []byte(`{"chatId":"c9","userId":"u1","receiverIds":["u2","u3","u4"]}`)
	ev, err := DecodeEvent(ChannelChatDeleted, payload)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	deleted := ev.(*ChatDeletedPayload)
	if len(deleted.ReceiverIDs) != 3 {
		t.Fatalf("expected 3 receivers from payload, got %v", deleted.ReceiverIDs)
	}
}
