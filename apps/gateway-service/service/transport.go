package service

import (
	"context"
	"encoding/json"

	"chatlink/pkg/logger"
)

// Frame 下行给客户端的统一帧格式
type Frame struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// EmitToUser 向某用户在本进程的全部连接投递事件
// 用户在本进程没有连接时静默返回，由其所在实例负责投递
func (s *Service) EmitToUser(ctx context.Context, userID, event string, payload interface{}) {
	conns := s.registry.ConnectionsOf(userID)
	if len(conns) == 0 {
		return
	}
	data, err := json.Marshal(Frame{Event: event, Payload: payload})
	if err != nil {
		s.logger.Error(ctx, "Failed to encode frame",
			logger.F("event", event),
			logger.F("error", err.Error()))
		return
	}
	for _, conn := range conns {
		s.writeFrame(ctx, conn, event, data)
	}
}

// EmitToUsers 向一组用户投递事件
func (s *Service) EmitToUsers(ctx context.Context, userIDs []string, event string, payload interface{}) {
	for _, userID := range userIDs {
		s.EmitToUser(ctx, userID, event, payload)
	}
}

// Broadcast 向本进程全部连接投递事件
func (s *Service) Broadcast(ctx context.Context, event string, payload interface{}) {
	conns := s.registry.AllConnections()
	if len(conns) == 0 {
		return
	}
	data, err := json.Marshal(Frame{Event: event, Payload: payload})
	if err != nil {
		s.logger.Error(ctx, "Failed to encode frame",
			logger.F("event", event),
			logger.F("error", err.Error()))
		return
	}
	for _, conn := range conns {
		s.writeFrame(ctx, conn, event, data)
	}
}

// writeFrame 写单条帧，写失败或超时只影响这一条连接
func (s *Service) writeFrame(ctx context.Context, conn *Connection, event string, data []byte) {
	if err := conn.writeMessage(data); err != nil {
		s.logger.Warn(ctx, "Failed to write frame to connection",
			logger.F("event", event),
			logger.F("error", err.Error()))
	}
}
