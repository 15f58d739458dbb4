package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 访问令牌声明
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// 刷新令牌声明, 只携带用户ID
type RefreshClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenManager 负责签发和解析访问/刷新令牌
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// RefreshTTL 刷新令牌有效期, cookie的max-age与之一致
func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

func registered(ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		// 过期时间
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		// 签发时间
		IssuedAt: jwt.NewNumericDate(now),
		// 生效时间
		NotBefore: jwt.NewNumericDate(now),
	}
}

// 生成访问令牌
func (m *TokenManager) GenerateAccessToken(userID, email, role string) (string, error) {
	claims := Claims{
		UserID:           userID,
		Email:            email,
		Role:             role,
		RegisteredClaims: registered(m.accessTTL),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.accessSecret)
}

// 生成刷新令牌
func (m *TokenManager) GenerateRefreshToken(userID string) (string, error) {
	claims := RefreshClaims{
		UserID:           userID,
		RegisteredClaims: registered(m.refreshTTL),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.refreshSecret)
}

// 解析访问令牌
func (m *TokenManager) ParseAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := parse(tokenString, claims, m.accessSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// 解析刷新令牌
func (m *TokenManager) ParseRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := parse(tokenString, claims, m.refreshSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
