package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imgsmith/imgsmith/pkg/domain"
)

// errorResponse is the wire shape for failures.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// respondError converts any error into a structured response. AppErrors
// keep their code and status; everything else is an internal error.
func respondError(c *gin.Context, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode, errorResponse{
			Success: false,
			Error:   appErr.Message,
			Code:    string(appErr.Code),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, errorResponse{
		Success: false,
		Error:   err.Error(),
		Code:    string(domain.ErrCodeInternal),
	})
}
