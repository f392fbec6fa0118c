package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"

	"chatlink/pkg/auth"
)

// AuthMiddleware 认证中间件
type AuthMiddleware struct {
	logger kratoslog.Logger
	jwt    *auth.JWTConfig
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(logger kratoslog.Logger, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		logger: logger,
		jwt:    auth.NewJWTConfig(jwtSecret),
	}
}

// GinAuth Gin认证中间件，校验Bearer token并注入user_id
func (am *AuthMiddleware) GinAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		userID, err := am.jwt.UserIDFromToken(token)
		if err != nil {
			am.logger.Log(kratoslog.LevelWarn, "msg", "Token validation failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// extractBearerToken 从Authorization头或query参数提取token
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if header != "" {
		return header
	}
	return c.Query("token")
}
