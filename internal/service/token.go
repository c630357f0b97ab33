package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ninerxsolution/trading-market/internal/models"
)

// TokenManager проверяет access токены, выпущенные сервисом идентификации.
// Выпуск токенов здесь не реализован.
type TokenManager struct {
	accessSecret []byte
}

func NewTokenManager(accessSecret string) *TokenManager {
	return &TokenManager{accessSecret: []byte(accessSecret)}
}

// ParseAccess проверяет подпись HS256 и срок действия и возвращает пользователя с ролью.
func (m *TokenManager) ParseAccess(token string) (models.Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return m.accessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Identity{}, err
	}
	if !parsed.Valid {
		return models.Identity{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, jwt.ErrTokenInvalidClaims
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return models.Identity{}, err
	}
	userID, err := uuid.Parse(sub)
	if err != nil || userID == uuid.Nil {
		return models.Identity{}, fmt.Errorf("token: некорректный sub: %w", jwt.ErrTokenInvalidClaims)
	}

	role, _ := claims["role"].(string)
	return models.NewIdentity(userID, role), nil
}
