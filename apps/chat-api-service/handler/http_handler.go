package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatlink/apps/chat-api-service/service"
	"chatlink/pkg/logger"
	"chatlink/pkg/pubsub"
)

// HTTPHandler 内部事件发布接口
// 只校验载荷形状，业务校验由调用方负责
type HTTPHandler struct {
	service *service.Service
	logger  logger.Logger
}

// NewHTTPHandler 创建HTTP处理器
func NewHTTPHandler(svc *service.Service, log logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		service: svc,
		logger:  log,
	}
}

// RegisterRoutes 注册内部路由
func (h *HTTPHandler) RegisterRoutes(engine *gin.Engine) {
	events := engine.Group("/internal/events")
	{
		events.POST("/message", h.PublishMessage)
		events.POST("/message/update", h.PublishMessageUpdate)
		events.POST("/message/delete", h.PublishMessageDelete)
		events.POST("/chat", h.PublishChatCreated)
		events.POST("/chat/update", h.PublishChatUpdated)
		events.POST("/chat/delete", h.PublishChatDeleted)
		events.POST("/typing", h.PublishTyping)
		events.POST("/story", h.PublishStory)
	}

	presenceGroup := engine.Group("/internal/presence")
	{
		presenceGroup.GET("/online", h.GetOnlineUsers)
		presenceGroup.GET("/online/:userID", h.GetUserOnline)
	}
}

// PublishMessage 发布新消息事件
func (h *HTTPHandler) PublishMessage(c *gin.Context) {
	var ev pubsub.NewMessagePayload
	if !h.bind(c, &ev) {
		return
	}
	if ev.ChatID == "" || ev.MessageID == "" || ev.SenderID == "" {
		h.badRequest(c, "chatId, messageId and senderId are required")
		return
	}
	h.publish(c, h.service.PublishNewMessage(c.Request.Context(), &ev))
}

// PublishMessageUpdate 发布消息更新事件
func (h *HTTPHandler) PublishMessageUpdate(c *gin.Context) {
	var ev pubsub.MessageUpdatedPayload
	if !h.bind(c, &ev) {
		return
	}
	if ev.ChatID == "" || ev.MessageID == "" {
		h.badRequest(c, "chatId and messageId are required")
		return
	}
	h.publish(c, h.service.PublishMessageUpdated(c.Request.Context(), &ev))
}

// PublishMessageDelete 发布消息删除事件
func (h *HTTPHandler) PublishMessageDelete(c *gin.Context) {
	var ev pubsub.MessageDeletedPayload
	if !h.bind(c, &ev) {
		return
	}
	if ev.ChatID == "" || ev.MessageID == "" {
		h.badRequest(c, "chatId and messageId are required")
		return
	}
	h.publish(c, h.service.PublishEvent(c.Request.Context(), &ev))
}

// PublishChatCreated 发布会话创建事件
func (h *HTTPHandler) PublishChatCreated(c *gin.Context) {
	var ev pubsub.ChatCreatedPayload
	if !h.bind(c, &ev) {
		return
	}
	if len(ev.Chat) == 0 {
		h.badRequest(c, "chat is required")
		return
	}
	h.publish(c, h.service.PublishEvent(c.Request.Context(), &ev))
}

// PublishChatUpdated 发布会话更新事件
func (h *HTTPHandler) PublishChatUpdated(c *gin.Context) {
	var ev pubsub.ChatUpdatedPayload
	if !h.bind(c, &ev) {
		return
	}
	if len(ev.Chat) == 0 {
		h.badRequest(c, "chat is required")
		return
	}
	h.publish(c, h.service.PublishEvent(c.Request.Context(), &ev))
}

// PublishChatDeleted 发布会话删除事件
func (h *HTTPHandler) PublishChatDeleted(c *gin.Context) {
	var ev pubsub.ChatDeletedPayload
	if !h.bind(c, &ev) {
		return
	}
	if ev.ChatID == "" {
		h.badRequest(c, "chatId is required")
		return
	}
	h.publish(c, h.service.PublishEvent(c.Request.Context(), &ev))
}

// PublishTyping 发布正在输入事件
func (h *HTTPHandler) PublishTyping(c *gin.Context) {
	var ev pubsub.UserTypingPayload
	if !h.bind(c, &ev) {
		return
	}
	if ev.UserID == "" || ev.ChatID == "" {
		h.badRequest(c, "userId and chatId are required")
		return
	}
	h.publish(c, h.service.PublishEvent(c.Request.Context(), &ev))
}

// PublishStory 发布新动态事件
func (h *HTTPHandler) PublishStory(c *gin.Context) {
	var ev pubsub.NewStoryPayload
	if !h.bind(c, &ev) {
		return
	}
	if ev.UserID == "" || len(ev.Story) == 0 {
		h.badRequest(c, "userId and story are required")
		return
	}
	h.publish(c, h.service.PublishEvent(c.Request.Context(), &ev))
}

// GetOnlineUsers 查询全局在线用户
func (h *HTTPHandler) GetOnlineUsers(c *gin.Context) {
	userIDs, err := h.service.OnlineUserIDs(c.Request.Context())
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to list online users",
			logger.F("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list online users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userIds": userIDs,
		"count":   len(userIDs),
	})
}

// GetUserOnline 查询单个用户是否在线
func (h *HTTPHandler) GetUserOnline(c *gin.Context) {
	userID := c.Param("userID")
	online, err := h.service.IsUserOnline(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to check user online",
			logger.F("user_id", userID),
			logger.F("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check user online"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":   userID,
		"isOnline": online,
	})
}

// bind 解析请求体，失败时回400
func (h *HTTPHandler) bind(c *gin.Context, ev interface{}) bool {
	if err := c.ShouldBindJSON(ev); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *HTTPHandler) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// publish 统一的发布结果响应
func (h *HTTPHandler) publish(c *gin.Context, err error) {
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish event"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "published"})
}
