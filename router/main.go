package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/didgateway/llm-gateway/common/config"
	"github.com/didgateway/llm-gateway/controller"
	"github.com/didgateway/llm-gateway/identity"
	"github.com/didgateway/llm-gateway/middleware"
	"github.com/didgateway/llm-gateway/relay/billing"
	relaycontroller "github.com/didgateway/llm-gateway/relay/controller"
	"github.com/didgateway/llm-gateway/relay/mcp"
	"github.com/didgateway/llm-gateway/relay/pricing"
	"github.com/didgateway/llm-gateway/relay/provider"
)

// Deps bundles the wired components the router exposes.
type Deps struct {
	Orchestrator *relaycontroller.Orchestrator
	Providers    *provider.Registry
	Pricing      *pricing.Registry
	Ledger       *billing.Ledger
	MCPProxy     *mcp.Proxy
	Verifier     identity.Verifier
}

// SetRouter registers every route. The generic /{provider}/*path relay is the
// lowest-priority match; static surfaces (admin, mcp, metrics, legacy alias)
// take precedence.
func SetRouter(server *gin.Engine, deps *Deps) {
	server.Use(cors.Default())

	auth := middleware.DIDAuth(deps.Verifier)

	adminGroup := server.Group("/admin")
	adminGroup.Use(auth, middleware.AdminOnly())
	{
		adminGroup.GET("/status", controller.Status(deps.Providers, deps.MCPProxy))
		adminGroup.POST("/reload-pricing", controller.ReloadPricing(deps.Pricing))
		adminGroup.GET("/test/:provider", controller.TestProvider(deps.Providers))
		if deps.Ledger != nil {
			adminGroup.GET("/costs", controller.Costs(deps.Ledger))
		}
	}

	if config.EnablePrometheusMetrics {
		server.GET("/metrics", auth, middleware.AdminOnly(), gin.WrapH(promhttp.Handler()))
	}

	if deps.MCPProxy != nil {
		server.POST(config.MCPPath, auth, deps.MCPProxy.Handler)
	}

	relayChain := []gin.HandlerFunc{
		middleware.RelayPanicRecover(),
		auth,
		middleware.GlobalRelayRateLimit(),
	}

	if config.EnableLegacyAlias {
		legacy := server.Group("/api/v1")
		legacy.Use(relayChain...)
		legacy.Use(middleware.DistributeAlias(deps.Providers, "openrouter", "/v1"))
		legacy.Any("/*path", controller.Relay(deps.Orchestrator))
	}

	relayGroup := server.Group("/:provider")
	relayGroup.Use(relayChain...)
	relayGroup.Use(middleware.Distribute(deps.Providers))
	relayGroup.Any("/*path", controller.Relay(deps.Orchestrator))
}
