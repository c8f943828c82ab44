package server

import (
	stderrors "errors"
	"net/http"
	"stream-lab/errors"

	"github.com/gin-gonic/gin"
)

// Response is the envelope of every API answer.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: &ErrorInfo{Code: code, Message: message}})
}

// failWith maps a domain error onto its HTTP status. Internal errors keep their text out of the answer.
func failWith(c *gin.Context, err error) {
	switch {
	case stderrors.Is(err, errors.ErrInvalidArgument),
		stderrors.Is(err, errors.ErrInvalidPassword),
		stderrors.Is(err, errors.ErrInvalidPayload):
		fail(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	case stderrors.Is(err, errors.ErrForbidden):
		fail(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case stderrors.Is(err, errors.ErrNotFound):
		fail(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		fail(c, http.StatusConflict, "CONFLICT", err.Error())
	case stderrors.Is(err, errors.ErrQueueFull):
		fail(c, http.StatusTooManyRequests, "QUEUE_FULL", err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
