package controller

import (
	"net/http"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/didgateway/llm-gateway/common/config"
	"github.com/didgateway/llm-gateway/relay/billing"
	"github.com/didgateway/llm-gateway/relay/mcp"
	"github.com/didgateway/llm-gateway/relay/pricing"
	"github.com/didgateway/llm-gateway/relay/provider"
)

var startTime = time.Now()

// Status reports the registered providers split by availability, the MCP
// upstream states, and the running environment.
func Status(registry *provider.Registry, mcpProxy *mcp.Proxy) gin.HandlerFunc {
	return func(c *gin.Context) {
		available := []string{}
		unavailable := []string{}
		for _, name := range registry.Names() {
			p, _ := registry.Get(name)
			if p.Available() {
				available = append(available, name)
			} else {
				unavailable = append(unavailable, name)
			}
		}

		mcpUpstreams := map[string]bool{}
		if mcpProxy != nil {
			mcpUpstreams = mcpProxy.UpstreamNames()
		}

		c.JSON(http.StatusOK, gin.H{
			"registered":   registry.Names(),
			"available":    available,
			"unavailable":  unavailable,
			"mcpUpstreams": mcpUpstreams,
			"environment": gin.H{
				"network":     config.Network,
				"uptimeSec":   int64(time.Since(startTime).Seconds()),
				"pricingDir":  config.PricingDir,
				"multiplier":  config.PricingMultiplier,
				"legacyAlias": config.EnableLegacyAlias,
			},
		})
	}
}

// ReloadPricing rebuilds the pricing snapshot from disk.
func ReloadPricing(registry *pricing.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := registry.Reload(); err != nil {
			gmw.GetLogger(c).Error("pricing reload failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"message": err.Error(),
					"type":    "gateway_error",
					"code":    "invalid_request",
				},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reloaded": true})
	}
}

// Costs serves the ledger query for one request id.
func Costs(ledger *billing.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.Query("requestId")
		if requestId == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"message": "requestId query parameter required",
					"type":    "gateway_error",
					"code":    "invalid_request",
				},
			})
			return
		}
		records, err := ledger.QueryByRequestId(c.Request.Context(), requestId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"message": "ledger query failed",
					"type":    "gateway_error",
					"code":    "internal_error",
				},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	}
}
