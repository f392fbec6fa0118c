package service

import (
	"context"
	"time"

	"chatlink/pkg/logger"
	"chatlink/pkg/presence"
	"chatlink/pkg/pubsub"
)

// Service 事件发布门面，供业务进程把变更推上总线
type Service struct {
	bus     pubsub.Bus
	tracker *presence.Tracker
	logger  logger.Logger
}

// NewService 创建发布服务
func NewService(bus pubsub.Bus, tracker *presence.Tracker, log logger.Logger) *Service {
	return &Service{
		bus:     bus,
		tracker: tracker,
		logger:  log,
	}
}

// PublishEvent 发布事件到总线
func (s *Service) PublishEvent(ctx context.Context, ev pubsub.Event) error {
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.Error(ctx, "Failed to publish event",
			logger.F("channel", ev.EventChannel().String()),
			logger.F("error", err.Error()))
		return err
	}
	s.logger.Debug(ctx, "Event published",
		logger.F("channel", ev.EventChannel().String()))
	return nil
}

// PublishNewMessage 发布新消息事件，缺省创建时间补为当前时间
func (s *Service) PublishNewMessage(ctx context.Context, ev *pubsub.NewMessagePayload) error {
	if ev.CreatedAt == "" {
		ev.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return s.PublishEvent(ctx, ev)
}

// PublishMessageUpdated 发布消息更新事件
func (s *Service) PublishMessageUpdated(ctx context.Context, ev *pubsub.MessageUpdatedPayload) error {
	if ev.UpdatedAt == "" {
		ev.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return s.PublishEvent(ctx, ev)
}

// OnlineUserIDs 返回全局在线用户
func (s *Service) OnlineUserIDs(ctx context.Context) ([]string, error) {
	return s.tracker.GetOnlineUserIDs(ctx)
}

// IsUserOnline 判断单个用户是否在线
func (s *Service) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	return s.tracker.IsUserOnline(ctx, userID)
}
