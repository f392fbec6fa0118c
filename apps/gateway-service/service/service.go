package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatlink/pkg/logger"
	"chatlink/pkg/presence"
	"chatlink/pkg/pubsub"
)

// Service 网关核心逻辑，管理连接生命周期和在线状态
type Service struct {
	registry          *ConnectionRegistry
	tracker           *presence.Tracker
	bus               pubsub.Bus
	logger            logger.Logger
	heartbeatInterval time.Duration
}

// NewService 创建网关服务
func NewService(tracker *presence.Tracker, bus pubsub.Bus, log logger.Logger, heartbeatInterval time.Duration) *Service {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 60 * time.Second
	}
	return &Service{
		registry:          NewConnectionRegistry(),
		tracker:           tracker,
		bus:               bus,
		logger:            log,
		heartbeatInterval: heartbeatInterval,
	}
}

// Bus 返回事件总线，供处理层发布客户端触发的事件
func (s *Service) Bus() pubsub.Bus {
	return s.bus
}

// Connect 登记新连接并更新在线状态，返回连接ID
// 先登记本地连接表，再写Redis在线状态，0到1的上线边沿广播user_status
func (s *Service) Connect(ctx context.Context, userID string, conn *websocket.Conn) string {
	connID := uuid.New().String()
	s.registry.Add(userID, connID, conn)

	becameOnline, err := s.tracker.SetUserOnline(ctx, userID)
	if err != nil {
		// 在线状态写失败不拒绝连接，心跳会在下个周期补偿
		s.logger.Error(ctx, "Failed to set user online",
			logger.F("user_id", userID),
			logger.F("error", err.Error()))
		return connID
	}

	if becameOnline {
		s.publishUserStatus(ctx, userID, true)
	}

	s.logger.Info(ctx, "User connected",
		logger.F("user_id", userID),
		logger.F("conn_id", connID),
		logger.F("became_online", becameOnline))
	return connID
}

// Disconnect 摘除连接并更新在线状态，1到0的下线边沿广播user_status
// 按connID幂等，同一条连接并发或重复断开只减一次计数
func (s *Service) Disconnect(ctx context.Context, userID, connID string) {
	if !s.registry.Remove(userID, connID) {
		return
	}

	becameOffline, err := s.tracker.SetUserOffline(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, "Failed to set user offline",
			logger.F("user_id", userID),
			logger.F("error", err.Error()))
		return
	}

	if becameOffline {
		s.publishUserStatus(ctx, userID, false)
	}

	s.logger.Info(ctx, "User disconnected",
		logger.F("user_id", userID),
		logger.F("conn_id", connID),
		logger.F("became_offline", becameOffline))
}

// RefreshUser 刷新单个用户的最近活跃时间，收到客户端ping时调用
func (s *Service) RefreshUser(ctx context.Context, userID string) {
	if err := s.tracker.RefreshUsersStatus(ctx, []string{userID}); err != nil {
		s.logger.Warn(ctx, "Failed to refresh user presence",
			logger.F("user_id", userID),
			logger.F("error", err.Error()))
	}
}

// OnlineUserIDs 返回全局在线用户
func (s *Service) OnlineUserIDs(ctx context.Context) ([]string, error) {
	return s.tracker.GetOnlineUserIDs(ctx)
}

// RunHeartbeat 心跳循环，周期性刷新本进程全部用户的活跃时间
// 单次失败只记日志，循环持续到上下文取消
func (s *Service) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			userIDs := s.registry.UserIDs()
			if err := s.tracker.RefreshUsersStatus(ctx, userIDs); err != nil {
				s.logger.Error(ctx, "Heartbeat refresh failed",
					logger.F("users", len(userIDs)),
					logger.F("error", err.Error()))
				continue
			}
			s.logger.Debug(ctx, "Heartbeat refreshed local users",
				logger.F("users", len(userIDs)))
		}
	}
}

// Shutdown 进程退出时尽力下线本地用户，失败依赖时效窗口兜底
// 下线走与正常断开相同的Disconnect路径，连接关闭后读循环触发的
// 二次Disconnect会被按connID去重，计数只减一次
func (s *Service) Shutdown(ctx context.Context) {
	for userID, conns := range s.registry.Snapshot() {
		for connID, conn := range conns {
			s.Disconnect(ctx, userID, connID)
			_ = conn.close()
		}
	}
	s.logger.Info(ctx, "Gateway service shut down")
}

// publishUserStatus 广播用户上下线事件
func (s *Service) publishUserStatus(ctx context.Context, userID string, isOnline bool) {
	ev := &pubsub.UserStatusPayload{UserID: userID, IsOnline: isOnline}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.Error(ctx, "Failed to publish user status",
			logger.F("user_id", userID),
			logger.F("is_online", isOnline),
			logger.F("error", err.Error()))
	}
}
