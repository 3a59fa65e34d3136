// Package httputils provides HTTP utility functions.
package httputils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/guideline-rag/internal/pkg/errno"
)

// Response is the standard API envelope.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// WriteResponse writes the response to the client. It handles both success
// and error cases, ensuring a consistent response format.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	if err != nil {
		c.JSON(errno.HTTPStatus(err), Response{
			Code:    errno.CodeOf(err),
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// WriteBadRequest reports a request binding or validation failure.
func WriteBadRequest(c *gin.Context, err error) {
	WriteResponse(c, errno.ErrInvalidInput.WithMessage("%s", err.Error()), nil)
}
