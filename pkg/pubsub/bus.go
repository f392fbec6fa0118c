package pubsub

import (
	"context"
	"reflect"
	"sync"

	"chatlink/pkg/logger"
)

// Handler 频道事件处理函数
type Handler func(ctx context.Context, ev Event)

// Bus 事件总线，发布强类型事件并把收到的事件分发给已注册的处理函数
// 同一频道可注册多个处理函数，同一个函数重复注册只生效一次
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	OnMessage(channel Channel, h Handler)
	OffMessage(channel Channel, h Handler)
	Close() error
}

// registry 处理函数注册表
// 以函数指针作为身份标识，实现按引用去重的幂等注册
type registry struct {
	mu       sync.RWMutex
	handlers map[Channel]map[uintptr]Handler
}

func newRegistry() *registry {
	return &registry{
		handlers: make(map[Channel]map[uintptr]Handler),
	}
}

// add 注册处理函数，重复注册同一引用为no-op
func (r *registry) add(channel Channel, h Handler) {
	if h == nil {
		return
	}
	key := reflect.ValueOf(h).Pointer()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers[channel] == nil {
		r.handlers[channel] = make(map[uintptr]Handler)
	}
	r.handlers[channel][key] = h
}

// remove 注销处理函数，未注册过的引用为no-op
func (r *registry) remove(channel Channel, h Handler) {
	if h == nil {
		return
	}
	key := reflect.ValueOf(h).Pointer()

	r.mu.Lock()
	defer r.mu.Unlock()
	if hs := r.handlers[channel]; hs != nil {
		delete(hs, key)
	}
}

// snapshot 拷贝频道当前的处理函数列表，分发时不持有锁
func (r *registry) snapshot(channel Channel) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hs := r.handlers[channel]
	if len(hs) == 0 {
		return nil
	}
	out := make([]Handler, 0, len(hs))
	for _, h := range hs {
		out = append(out, h)
	}
	return out
}

// dispatcher 解码并分发收到的原始消息，redis和kafka后端共用
type dispatcher struct {
	registry *registry
	logger   logger.Logger
}

func newDispatcher(log logger.Logger) *dispatcher {
	return &dispatcher{
		registry: newRegistry(),
		logger:   log,
	}
}

// dispatch 按频道解码载荷并逐个调用处理函数
// 解码失败只记日志丢弃该条消息，不中断订阅循环
func (d *dispatcher) dispatch(ctx context.Context, channel Channel, data []byte) {
	if !channel.IsValid() {
		d.logger.Warn(ctx, "Dropping message from unknown channel",
			logger.F("channel", channel.String()))
		return
	}

	ev, err := DecodeEvent(channel, data)
	if err != nil {
		d.logger.Error(ctx, "Failed to decode event payload",
			logger.F("channel", channel.String()),
			logger.F("error", err.Error()))
		return
	}

	for _, h := range d.registry.snapshot(channel) {
		h(ctx, ev)
	}
}
