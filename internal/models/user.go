package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Identity - результат проверки токена: кто делает запрос.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

// NewIdentity нормализует роль, неизвестные значения считаются USER.
func NewIdentity(userID uuid.UUID, role string) Identity {
	r := strings.ToUpper(strings.TrimSpace(role))
	if r != RoleAdmin {
		r = RoleUser
	}
	return Identity{UserID: userID, Role: r}
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// DefaultReputationScore - стартовая репутация пользователя.
const DefaultReputationScore = 100

// UserReputation меняется только штрафом при отмене спора администратором.
type UserReputation struct {
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	Score     int       `db:"score" json:"score"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
