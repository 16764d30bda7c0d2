package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type JSONResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

// RespondError writes the error envelope and aborts the handler chain.
// Server-side failures are reported by status text only; the cause stays in
// the logs.
func RespondError(c *gin.Context, code int, err error) {
	message := err.Error()
	if code >= http.StatusInternalServerError {
		message = http.StatusText(code)
	}
	c.AbortWithStatusJSON(code, JSONResponse{
		Status:  false,
		Message: message,
	})
}
