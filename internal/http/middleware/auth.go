package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ninerxsolution/trading-market/internal/dto"
	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/pkg/apperror"
)

// ContextIdentityKey - ключ models.Identity в gin.Context.
const ContextIdentityKey = "identity"

// TokenParser проверяет access токен и возвращает пользователя.
type TokenParser interface {
	ParseAccess(token string) (models.Identity, error)
}

// AuthMiddleware проверяет JWT access токен из заголовка Authorization.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			abortUnauthorized(c, "требуется авторизация")
			return
		}

		id, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			abortUnauthorized(c, "токен невалиден")
			return
		}

		c.Set(ContextIdentityKey, id)
		c.Next()
	}
}

// RequireAdmin пропускает только администраторов. Ставится после AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			abortUnauthorized(c, "требуется авторизация")
			return
		}
		if !id.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{
				Error: "доступно только администратору",
				Code:  string(apperror.ErrCodeForbidden),
			})
			return
		}
		c.Next()
	}
}

// CurrentIdentity достаёт пользователя, положенного AuthMiddleware.
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	raw, exists := c.Get(ContextIdentityKey)
	if !exists {
		return models.Identity{}, false
	}
	id, ok := raw.(models.Identity)
	return id, ok
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error: msg,
		Code:  string(apperror.ErrCodeUnauthorized),
	})
}
