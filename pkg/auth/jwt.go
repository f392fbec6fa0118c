package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig JWT配置
type JWTConfig struct {
	Secret     string
	ExpireTime time.Duration
}

// NewJWTConfig 创建JWT配置
func NewJWTConfig(secret string) *JWTConfig {
	return &JWTConfig{
		Secret:     secret,
		ExpireTime: time.Hour,
	}
}

// ValidateToken 校验 JWT token
func (c *JWTConfig) ValidateToken(token string) bool {
	_, err := c.ParseToken(token)
	return err == nil
}

// ParseToken 解析 JWT token 并返回 claims
func (c *JWTConfig) ParseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// 校验签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(c.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// UserIDFromToken 解析token并取出sub声明中的用户ID
func (c *JWTConfig) UserIDFromToken(tokenString string) (string, error) {
	claims, err := c.ParseToken(tokenString)
	if err != nil {
		return "", err
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token missing sub claim")
	}
	return sub, nil
}

// GenerateToken 生成 JWT token
func (c *JWTConfig) GenerateToken(userID string, extra map[string]any) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(c.ExpireTime).Unix(),
		"iat": time.Now().Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.Secret))
}
