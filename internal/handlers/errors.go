package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/stagecast/distributor/internal/services"
	"github.com/stagecast/distributor/pkg/response"
)

// serviceError maps distributor sentinels onto the HTTP envelope.
func serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, services.ErrNoPrivileges):
		response.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrInvalidPassword):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, services.ErrNotInsideStage),
		errors.Is(err, services.ErrNoGroupAvailable),
		errors.Is(err, services.ErrSlotsExhausted):
		response.BadRequest(c, err.Error())
	default:
		response.Error(c, err)
	}
}
