package auth

import (
	"testing"
	"time"
)

// TestTokenRoundTrip 测试签发的token能解析出用户ID
func TestTokenRoundTrip(t *testing.T) {
	cfg := NewJWTConfig("secret-a")

	token, err := cfg.GenerateToken("u100", map[string]any{"role": "member"})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	userID, err := cfg.UserIDFromToken(token)
	if err != nil {
		t.Fatalf("UserIDFromToken: %v", err)
	}
	if userID != "u100" {
		t.Fatalf("user id: got %q", userID)
	}
}

// TestWrongSecretRejected 测试错误密钥签发的token被拒绝
func TestWrongSecretRejected(t *testing.T) {
	token, err := NewJWTConfig("secret-a").GenerateToken("u100", nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := NewJWTConfig("secret-b").UserIDFromToken(token); err == nil {
		t.Fatal("token signed with another secret should be rejected")
	}
}

// TestExpiredTokenRejected 测试过期token被拒绝
func TestExpiredTokenRejected(t *testing.T) {
	cfg := &JWTConfig{Secret: "secret-a", ExpireTime: -time.Minute}

	token, err := cfg.GenerateToken("u100", nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := cfg.UserIDFromToken(token); err == nil {
		t.Fatal("expired token should be rejected")
	}
}

// TestMissingSubRejected 测试缺少sub声明的token被拒绝
func TestMissingSubRejected(t *testing.T) {
	cfg := NewJWTConfig("secret-a")

	token, err := cfg.GenerateToken("", nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := cfg.UserIDFromToken(token); err == nil {
		t.Fatal("token without sub should be rejected")
	}
}
