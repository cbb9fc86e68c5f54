package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/litdeck/litdeck/internal/middleware"
	"github.com/litdeck/litdeck/internal/pkg/errcode"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
	"github.com/litdeck/litdeck/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	case errors.Is(err, appErr.ErrUpstream):
		response.Error(c, errcode.ErrAIUnavailable, "ai unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
