package service

import (
	"context"

	"chatlink/pkg/logger"
	"chatlink/pkg/pubsub"
)

// 下发给客户端的事件名
const (
	clientEventNewMessage     = "newMessage"
	clientEventMessageUpdated = "messageUpdated"
	clientEventMessageDeleted = "messageDeleted"
	clientEventUserOnline     = "userOnline"
	clientEventUserOffline    = "userOffline"
	clientEventTypingStart    = "typingStart"
	clientEventTypingStop     = "typingStop"
	clientEventChatCreated    = "chatCreated"
	clientEventChatUpdated    = "chatUpdated"
	clientEventChatDeleted    = "chatDeleted"
	clientEventNewStory       = "newStory"
)

// Notifier 把总线事件翻译成客户端帧并投递给本进程的连接
// 每个频道固定一种投递方式，user_status广播，其余按receiverIds定向
type Notifier struct {
	service *Service
	logger  logger.Logger
}

// NewNotifier 创建通知器
func NewNotifier(svc *Service, log logger.Logger) *Notifier {
	return &Notifier{
		service: svc,
		logger:  log,
	}
}

// Subscribe 启动时一次性订阅全部频道
func (n *Notifier) Subscribe(bus pubsub.Bus) {
	for _, ch := range pubsub.AllChannels() {
		bus.OnMessage(ch, n.Handle)
	}
}

// Unsubscribe 注销全部订阅
func (n *Notifier) Unsubscribe(bus pubsub.Bus) {
	for _, ch := range pubsub.AllChannels() {
		bus.OffMessage(ch, n.Handle)
	}
}

// Handle 分发单个总线事件，事件类型集合是封闭的
func (n *Notifier) Handle(ctx context.Context, ev pubsub.Event) {
	switch e := ev.(type) {
	case *pubsub.NewMessagePayload:
		n.service.EmitToUsers(ctx, e.ReceiverIDs, clientEventNewMessage, e)
	case *pubsub.MessageUpdatedPayload:
		n.service.EmitToUsers(ctx, e.ReceiverIDs, clientEventMessageUpdated, e)
	case *pubsub.MessageDeletedPayload:
		n.service.EmitToUsers(ctx, e.ReceiverIDs, clientEventMessageDeleted, e)
	case *pubsub.UserStatusPayload:
		event := clientEventUserOffline
		if e.IsOnline {
			event = clientEventUserOnline
		}
		n.service.Broadcast(ctx, event, map[string]interface{}{"userId": e.UserID})
	case *pubsub.UserTypingPayload:
		event := clientEventTypingStop
		if e.IsTyping {
			event = clientEventTypingStart
		}
		n.service.EmitToUsers(ctx, e.ReceiverIDs, event, map[string]interface{}{
			"userId": e.UserID,
			"chatId": e.ChatID,
		})
	case *pubsub.ChatCreatedPayload:
		n.service.EmitToUsers(ctx, e.ReceiverIDs, clientEventChatCreated, e)
	case *pubsub.ChatUpdatedPayload:
		n.service.EmitToUsers(ctx, e.ReceiverIDs, clientEventChatUpdated, e)
	case *pubsub.ChatDeletedPayload:
		// 投递范围以载荷的receiverIds为准
		n.service.EmitToUsers(ctx, e.ReceiverIDs, clientEventChatDeleted, e)
	case *pubsub.NewStoryPayload:
		n.service.EmitToUsers(ctx, e.ReceiverIDs, clientEventNewStory, e)
	default:
		n.logger.Warn(ctx, "Unhandled event type",
			logger.F("channel", ev.EventChannel().String()))
	}
}
