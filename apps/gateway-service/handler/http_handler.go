package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatlink/apps/gateway-service/service"
	"chatlink/pkg/logger"
)

// HTTPHandler 网关HTTP接口
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

// RegisterRoutes 注册HTTP路由，在线查询需要认证
func (h *HTTPHandler) RegisterRoutes(engine *gin.Engine, authMW gin.HandlerFunc) {
	api := engine.Group("/api/v1/gateway")
	api.Use(authMW)
	{
		api.GET("/online", h.GetOnlineUsers)
	}
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
