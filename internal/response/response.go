// Package response defines the JSON envelope every HTTP endpoint returns.
// Every body carries the same shape so API consumers can branch on
// success/error without inspecting status codes first.
package response

import "github.com/gin-gonic/gin"

// Envelope is the wire shape of all API responses.
type Envelope struct {
	Error      bool   `json:"error"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
}

// OK writes a successful response.
func OK(c *gin.Context, message string, statusCode int, data any) {
	c.JSON(statusCode, Envelope{
		Success:    true,
		Message:    message,
		StatusCode: statusCode,
		Data:       data,
	})
}

// Fail writes a rejected-but-handled response (validation failures etc).
func Fail(c *gin.Context, message string, statusCode int) {
	c.JSON(statusCode, Envelope{
		Message:    message,
		StatusCode: statusCode,
	})
}

// Error writes a failure response.
func Error(c *gin.Context, message string, statusCode int) {
	c.JSON(statusCode, Envelope{
		Error:      true,
		Message:    message,
		StatusCode: statusCode,
	})
}
