// internal/utils/response.go
package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ProxyError is the body written when an upstream catalog call fails.
type ProxyError struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// GenerateResponse is the body of every /api/generate-image response.
type GenerateResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type WrappedResponse struct {
	Data    interface{} `json:"data"`
	Success bool        `json:"success"`
}

func PassthroughResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func WrappedSuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, WrappedResponse{
		Data:    data,
		Success: true,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, message string, details interface{}) {
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	c.JSON(statusCode, ProxyError{
		Error:   message,
		Details: details,
	})
}

func BadRequestResponse(c *gin.Context, message string, details interface{}) {
	if message == "" {
		message = "Invalid request"
	}
	ErrorResponse(c, http.StatusBadRequest, message, details)
}

func ValidationErrorResponse(c *gin.Context, message string, errors []ValidationError) {
	BadRequestResponse(c, message, errors)
}

func GenerateResult(c *gin.Context, statusCode int, success bool, data interface{}) {
	c.JSON(statusCode, GenerateResponse{
		Success: success,
		Data:    data,
	})
}

func GenerateError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, GenerateResponse{
		Success: false,
		Error:   message,
	})
}

func GetRequestIDFromContext(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if idStr, ok := id.(string); ok {
			return idStr
		}
	}
	return ""
}
