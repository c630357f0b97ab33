package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ninerxsolution/trading-market/internal/dto"
	"github.com/ninerxsolution/trading-market/internal/http/middleware"
	"github.com/ninerxsolution/trading-market/internal/logger"
	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/pkg/apperror"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// currentIdentity извлекает пользователя из контекста и сам отвечает 401, если его нет.
func currentIdentity(c *gin.Context) (models.Identity, bool) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		respondError(c, apperror.ErrUnauthorized)
		return models.Identity{}, false
	}
	return id, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apperror.New(apperror.ErrCodeValidation, "параметр "+name+" должен быть валидным UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON отвечает 400 при невалидном теле.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное тело запроса"))
		return false
	}
	return true
}

// pagination читает limit/offset с дефолтами.
func pagination(c *gin.Context) (limit, offset int) {
	limit = queryInt(c, "limit", defaultPageLimit)
	offset = queryInt(c, "offset", 0)
	if limit < 1 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// respondError переводит ошибку сервиса в ответ API. Внутренние ошибки
// логируются и наружу не попадают.
func respondError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка сервера")
	}

	if appErr.Code == apperror.ErrCodeInternal {
		logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("http: внутренняя ошибка")
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, dto.ErrorResponse{Error: appErr.Message, Code: string(appErr.Code)})
}

// writeSSEData отправляет одну строку data. Данные должны быть без переводов строк.
func writeSSEData(w io.Writer, data string) (int, error) {
	if data == "" {
		return 0, nil
	}
	return io.WriteString(w, "data: "+data+"\n\n")
}

// writeSSEEvent отправляет именованное SSE событие.
func writeSSEEvent(w io.Writer, eventType, data string) (int, error) {
	total, err := io.WriteString(w, "event: "+eventType+"\n")
	if err != nil {
		return total, err
	}
	n, err := writeSSEData(w, data)
	return total + n, err
}

// writeSSEComment - строка-комментарий, клиенты её игнорируют. Используется как heartbeat.
func writeSSEComment(w io.Writer, comment string) (int, error) {
	return io.WriteString(w, ": "+comment+"\n\n")
}
