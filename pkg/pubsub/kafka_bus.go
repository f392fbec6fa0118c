package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"chatlink/pkg/logger"
)

// KafkaBus 基于Kafka的事件总线，与RedisBus语义对齐
// 全部事件发往单个topic，消息Key为频道名，按Key分区保证同频道有序
// 每个实例使用独立的消费组ID，获得与Redis pub/sub一致的广播语义
type KafkaBus struct {
	producer   sarama.SyncProducer
	group      sarama.ConsumerGroup
	topic      string
	dispatcher *dispatcher
	logger     logger.Logger

	ready     chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewKafkaBus 创建Kafka事件总线并启动消费循环
func NewKafkaBus(ctx context.Context, brokers []string, topic string, log logger.Logger) (*KafkaBus, error) {
	producerCfg := sarama.NewConfig()
	producerCfg.Producer.Return.Successes = true
	producerCfg.Producer.Partitioner = sarama.NewHashPartitioner

	// 同步生产者，broker侧失败直接回传给发布方
	producer, err := sarama.NewSyncProducer(brokers, producerCfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	consumerCfg := sarama.NewConfig()
	consumerCfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	// 实例独占消费组，否则同组内只有一个实例能收到事件
	groupID := "chatlink-bus-" + uuid.New().String()
	group, err := sarama.NewConsumerGroup(brokers, groupID, consumerCfg)
	if err != nil {
		_ = producer.Close()
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	busCtx, cancel := context.WithCancel(context.Background())
	b := &KafkaBus{
		producer:   producer,
		group:      group,
		topic:      topic,
		dispatcher: newDispatcher(log),
		logger:     log,
		ready:      make(chan struct{}),
		cancel:     cancel,
	}

	b.wg.Add(1)
	go b.consumeLoop(busCtx)

	select {
	case <-b.ready:
	case <-ctx.Done():
		_ = b.Close()
		return nil, ctx.Err()
	}

	log.Info(ctx, "Kafka event bus started",
		logger.F("topic", topic),
		logger.F("group_id", groupID))
	return b, nil
}

// consumeLoop 消费循环，rebalance后自动重入
func (b *KafkaBus) consumeLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		if err := b.group.Consume(ctx, []string{b.topic}, b); err != nil {
			b.logger.Error(ctx, "Kafka consume error", logger.F("error", err.Error()))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Publish 序列化事件并发往总线topic，频道名作为消息Key
// broker确认失败时返回错误，由调用方决定如何处理
func (b *KafkaBus) Publish(ctx context.Context, ev Event) error {
	data, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	_, _, err = b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(ev.EventChannel().String()),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", ev.EventChannel(), err)
	}
	return nil
}

// OnMessage 注册频道处理函数
func (b *KafkaBus) OnMessage(channel Channel, h Handler) {
	b.dispatcher.registry.add(channel, h)
}

// OffMessage 注销频道处理函数
func (b *KafkaBus) OffMessage(channel Channel, h Handler) {
	b.dispatcher.registry.remove(channel, h)
}

// Close 停止生产者和消费组
func (b *KafkaBus) Close() error {
	b.closeOnce.Do(func() {
		b.cancel()
		if err := b.producer.Close(); err != nil {
			b.closeErr = err
		}
		if err := b.group.Close(); err != nil && b.closeErr == nil {
			b.closeErr = err
		}
		b.wg.Wait()
	})
	return b.closeErr
}

// Setup sarama.ConsumerGroupHandler
func (b *KafkaBus) Setup(_ sarama.ConsumerGroupSession) error {
	select {
	case <-b.ready:
	default:
		close(b.ready)
	}
	return nil
}

// Cleanup sarama.ConsumerGroupHandler
func (b *KafkaBus) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 消费消息并分发，消息Key即频道名
func (b *KafkaBus) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		b.dispatcher.dispatch(sess.Context(), Channel(msg.Key), msg.Value)
		sess.MarkMessage(msg, "")
	}
	return nil
}
