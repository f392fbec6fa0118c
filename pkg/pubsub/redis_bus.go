package pubsub

import (
	"context"
	"fmt"
	"sync"

	goredis "github.com/go-redis/redis/v8"

	"chatlink/pkg/logger"
	"chatlink/pkg/redis"
)

// RedisBus 基于Redis pub/sub的事件总线
// 订阅采用广播语义，每个进程实例都会收到全量事件
type RedisBus struct {
	client     *redis.RedisClient
	dispatcher *dispatcher
	logger     logger.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRedisBus 创建Redis事件总线并启动订阅循环
// 启动时一次性订阅全部固定频道，处理函数可在运行期间随时注册
func NewRedisBus(ctx context.Context, client *redis.RedisClient, log logger.Logger) (*RedisBus, error) {
	busCtx, cancel := context.WithCancel(context.Background())

	b := &RedisBus{
		client:     client,
		dispatcher: newDispatcher(log),
		logger:     log,
		cancel:     cancel,
	}

	channels := make([]string, 0, len(AllChannels()))
	for _, ch := range AllChannels() {
		channels = append(channels, ch.String())
	}

	sub := client.Subscribe(busCtx, channels...)
	// 确认订阅建立成功再返回，避免启动早期丢事件
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe event channels: %w", err)
	}

	b.wg.Add(1)
	go b.receiveLoop(busCtx, sub)

	log.Info(ctx, "Redis event bus started", logger.F("channels", len(channels)))
	return b, nil
}

// receiveLoop 订阅循环，上下文取消后退出
func (b *RedisBus) receiveLoop(ctx context.Context, sub *goredis.PubSub) {
	defer b.wg.Done()
	defer sub.Close()

	msgCh := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			b.dispatcher.dispatch(ctx, Channel(msg.Channel), []byte(msg.Payload))
		}
	}
}

// Publish 序列化事件并发布到对应频道
func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	data, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, ev.EventChannel().String(), data); err != nil {
		return fmt.Errorf("publish to %s: %w", ev.EventChannel(), err)
	}
	return nil
}

// OnMessage 注册频道处理函数
func (b *RedisBus) OnMessage(channel Channel, h Handler) {
	b.dispatcher.registry.add(channel, h)
}

// OffMessage 注销频道处理函数
func (b *RedisBus) OffMessage(channel Channel, h Handler) {
	b.dispatcher.registry.remove(channel, h)
}

// Close 停止订阅循环
func (b *RedisBus) Close() error {
	b.closeOnce.Do(func() {
		b.cancel()
		b.wg.Wait()
	})
	return nil
}
