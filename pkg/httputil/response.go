package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/scheduler-api/pkg/errors"
)

// Response wraps all API responses.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// RespondWithSuccess sends a success envelope.
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Status: "success", Data: data})
}

// RespondWithCreated sends a success envelope with 201.
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Status: "success", Data: data})
}

// RespondWithError maps an AppError onto its HTTP status; anything else
// is treated as an internal error without leaking details.
func RespondWithError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if e, ok := err.(*errors.AppError); ok {
		appErr = e
	} else {
		appErr = errors.Storage(err)
	}

	c.Error(err)
	c.JSON(appErr.Status, Response{
		Status:  "error",
		Code:    string(appErr.Code),
		Message: appErr.Message,
	})
}
