package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"chatlink/apps/gateway-service/service"
	"chatlink/pkg/auth"
	"chatlink/pkg/logger"
	"chatlink/pkg/pubsub"
)

// WSHandler WebSocket连接处理器
type WSHandler struct {
	service *service.Service
	jwt     *auth.JWTConfig
	logger  logger.Logger
}

// NewWSHandler 创建WebSocket处理器
func NewWSHandler(svc *service.Service, jwtSecret string, log logger.Logger) *WSHandler {
	return &WSHandler{
		service: svc,
		jwt:     auth.NewJWTConfig(jwtSecret),
		logger:  log,
	}
}

// clientFrame 客户端上行帧
type clientFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// typingFrame 客户端typing帧载荷
type typingFrame struct {
	ChatID      string   `json:"chatId"`
	ReceiverIDs []string `json:"receiverIds"`
}

// HandleConnection 处理单条WebSocket连接的完整生命周期
// 认证失败时回unauthorized帧并关闭，不做任何登记
func (h *WSHandler) HandleConnection(conn *websocket.Conn, r *http.Request) {
	ctx := context.Background()

	token := extractToken(r)
	userID, err := h.jwt.UserIDFromToken(token)
	if err != nil {
		h.logger.Warn(ctx, "WebSocket authentication failed",
			logger.F("remote_addr", r.RemoteAddr),
			logger.F("error", err.Error()))
		_ = conn.WriteJSON(service.Frame{Event: "unauthorized"})
		return
	}

	connID := h.service.Connect(ctx, userID, conn)
	defer h.service.Disconnect(ctx, userID, connID)

	h.readLoop(ctx, conn, userID)
}

// readLoop 读取客户端帧直到连接关闭
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, userID string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn(ctx, "WebSocket read error",
					logger.F("user_id", userID),
					logger.F("error", err.Error()))
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.logger.Warn(ctx, "Malformed client frame",
				logger.F("user_id", userID),
				logger.F("error", err.Error()))
			continue
		}

		switch frame.Event {
		case "ping":
			h.service.RefreshUser(ctx, userID)
		case "typingStart":
			h.publishTyping(ctx, userID, frame.Payload, true)
		case "typingStop":
			h.publishTyping(ctx, userID, frame.Payload, false)
		default:
			h.logger.Debug(ctx, "Ignoring unknown client event",
				logger.F("user_id", userID),
				logger.F("event", frame.Event))
		}
	}
}

// publishTyping 把客户端typing帧转成总线事件
func (h *WSHandler) publishTyping(ctx context.Context, userID string, payload json.RawMessage, isTyping bool) {
	var tf typingFrame
	if err := json.Unmarshal(payload, &tf); err != nil {
		h.logger.Warn(ctx, "Malformed typing payload",
			logger.F("user_id", userID),
			logger.F("error", err.Error()))
		return
	}

	ev := &pubsub.UserTypingPayload{
		UserID:      userID,
		ChatID:      tf.ChatID,
		IsTyping:    isTyping,
		ReceiverIDs: tf.ReceiverIDs,
	}
	if err := h.service.Bus().Publish(ctx, ev); err != nil {
		h.logger.Error(ctx, "Failed to publish typing event",
			logger.F("user_id", userID),
			logger.F("error", err.Error()))
	}
}

// extractToken 依次从Authorization头、token参数、子协议头提取token
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return r.Header.Get("Sec-WebSocket-Protocol")
}
