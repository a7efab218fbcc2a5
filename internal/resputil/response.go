package resputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft/pkg/apperr"
	"github.com/sitecraft/sitecraft/pkg/logutils"
)

type Response[T any] struct {
	Code ErrorCode `json:"code"`
	Data T         `json:"data"`
	Msg  string    `json:"msg"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response[any]{
		Code: OK,
		Data: data,
		Msg:  "success",
	})
}

// Error responds 500 with a business error code.
func Error(c *gin.Context, msg string, code ErrorCode) {
	HTTPError(c, http.StatusInternalServerError, msg, code)
}

func HTTPError(c *gin.Context, httpCode int, msg string, code ErrorCode) {
	c.JSON(httpCode, Response[any]{
		Code: code,
		Data: nil,
		Msg:  msg,
	})
}

func BadRequestError(c *gin.Context, msg string) {
	HTTPError(c, http.StatusBadRequest, msg, InvalidRequest)
}

// ServiceError maps an error returned by a service to its HTTP status.
func ServiceError(c *gin.Context, err error) {
	status, code := Classify(err)
	if status >= http.StatusInternalServerError {
		logutils.Log.WithField("path", c.FullPath()).Errorf("request failed: %v", err)
	}
	HTTPError(c, status, err.Error(), code)
}

// Classify returns the HTTP status and error code for an error.
func Classify(err error) (int, ErrorCode) {
	switch {
	case errors.Is(err, apperr.ErrBadSignature):
		return http.StatusUnauthorized, SignatureInvalid
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, TokenInvalid
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, UserNotAllowed
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, NotFound
	case errors.Is(err, apperr.ErrInvalid):
		return http.StatusBadRequest, InvalidRequest
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, Conflict
	case errors.Is(err, apperr.ErrUpstream):
		return http.StatusBadGateway, GatewayError
	default:
		return http.StatusInternalServerError, NotSpecified
	}
}
