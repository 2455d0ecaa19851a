package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tablereserve/internal/middleware"
	appErr "github.com/xxxsen/tablereserve/internal/pkg/errors"
	"github.com/xxxsen/tablereserve/internal/pkg/response"
)

func getUserID(c *gin.Context) int64 {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(int64)
	return userID
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

// bindJSON decodes the body. Malformed JSON is a 400, well-formed JSON with a
// value of the wrong type is a 422.
func bindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		msg := "invalid value type"
		if typeErr.Field != "" {
			msg = fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.Kind())
		}
		response.Error(c, http.StatusUnprocessableEntity, msg)
		return false
	}
	var timeErr *time.ParseError
	if errors.As(err, &timeErr) {
		response.Error(c, http.StatusUnprocessableEntity, "timestamps must be RFC3339")
		return false
	}
	response.Error(c, http.StatusBadRequest, "invalid request body")
	return false
}

// badRequest answers 400 for malformed query parameters.
func badRequest(c *gin.Context, err error) {
	msg := appErr.Message(err)
	if msg == "" {
		msg = "invalid request"
	}
	response.Error(c, http.StatusBadRequest, msg)
}

func handleError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, appErr.ErrEmailExists):
		response.Error(c, http.StatusUnprocessableEntity, appErr.ErrEmailExists.Error())
	case errors.Is(err, appErr.ErrInvalid):
		msg := appErr.Message(err)
		if msg == "" {
			msg = "invalid request"
		}
		response.Error(c, http.StatusUnprocessableEntity, msg)
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, http.StatusNotFound, "entity not found")
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, http.StatusConflict, "conflict")
	default:
		requestID, _ := c.Get(middleware.ContextRequestIDKey)
		logutil.GetLogger(c.Request.Context()).Error("request failed",
			zap.Any("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "internal error")
	}
}
