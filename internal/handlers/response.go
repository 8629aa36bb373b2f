package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imagehost/backend/internal/services"
)

var kindStatus = map[services.Kind]int{
	services.KindUnauthorized:      http.StatusUnauthorized,
	services.KindRateLimited:       http.StatusTooManyRequests,
	services.KindInvalidInput:      http.StatusBadRequest,
	services.KindProcessingFailed:  http.StatusInternalServerError,
	services.KindStorageFailed:     http.StatusInternalServerError,
	services.KindPersistenceFailed: http.StatusInternalServerError,
	services.KindNotFound:          http.StatusNotFound,
	services.KindForbidden:         http.StatusNotFound,
	services.KindInternal:          http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind services.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes {error, code} for err. Foreign errors become a generic 500.
func respondError(c *gin.Context, err error) {
	var e *services.Error
	if !errors.As(err, &e) {
		e = &services.Error{Kind: services.KindInternal, Message: services.MsgInternal, Err: err}
	}
	// Forbidden is reported as not found so existence is never leaked.
	if e.Kind == services.KindForbidden {
		e = &services.Error{Kind: services.KindNotFound, Message: services.MsgImageNotFound, Err: e.Err}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(StatusFor(e.Kind), gin.H{
		"error": e.Message,
		"code":  e.Kind,
	})
}
