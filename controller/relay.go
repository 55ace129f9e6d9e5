package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/didgateway/llm-gateway/common/graceful"
	relaycontroller "github.com/didgateway/llm-gateway/relay/controller"
)

// Relay adapts the orchestrator into a gin handler and renders relay errors
// in the unified shape. New work is refused once shutdown has begun.
func Relay(o *relaycontroller.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if graceful.IsDraining() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{
				"message": "server is shutting down",
				"type":    "gateway_error",
				"code":    "service_unavailable",
			}})
			return
		}

		done := graceful.BeginRequest()
		defer done()

		if bizErr := o.Relay(c); bizErr != nil {
			c.JSON(bizErr.StatusCode, gin.H{"error": bizErr.Error})
		}
	}
}
