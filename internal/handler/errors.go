package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tradeanalytics/internal/jobs"
	"tradeanalytics/internal/service"
)

// statusFor maps classified errors onto HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		return http.StatusConflict
	}
	switch service.ErrorKind(err) {
	case service.KindInput:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	kind := service.ErrorKind(err)
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		kind = "busy"
	}
	Error(c, statusFor(err), err.Error(), map[string]any{"kind": kind})
}
