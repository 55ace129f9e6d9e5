package middleware

import (
	"github.com/gin-gonic/gin"
)

// abortWithError ends the request with the unified error payload.
func abortWithError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, gin.H{
		"error": gin.H{
			"message": message,
			"type":    "gateway_error",
			"code":    code,
		},
	})
	c.Abort()
}
