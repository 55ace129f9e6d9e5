package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/didgateway/llm-gateway/common/ctxkey"
	"github.com/didgateway/llm-gateway/common/helper"
	"github.com/didgateway/llm-gateway/relay/provider"
)

// Distribute resolves /{provider}/*path against the registry and validates
// the upstream path allowlist. Unknown providers and disallowed paths both
// answer 404 so probing reveals nothing about the allowlist.
func Distribute(registry *provider.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("provider")
		targetPath := c.Param("path")

		pv, ok := registry.Get(name)
		if !ok {
			abortWithError(c, http.StatusNotFound,
				"provider_not_found", "unknown provider: "+name)
			return
		}
		if !pv.Available() {
			abortWithError(c, http.StatusServiceUnavailable,
				"provider_overloaded", "provider "+name+" is not configured")
			return
		}
		if !pv.PathAllowed(targetPath) {
			abortWithError(c, http.StatusNotFound,
				"path_not_allowed", "path not found")
			return
		}

		c.Set(ctxkey.Provider, pv)
		c.Set(ctxkey.TargetPath, targetPath)
		c.Set(ctxkey.RequestId, c.GetString(helper.RequestIdKey))
		c.Next()
	}
}

// DistributeAlias forces every request onto a fixed provider; the legacy
// /api/v1/* surface maps onto openrouter this way.
func DistributeAlias(registry *provider.Registry, providerName, pathPrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		pv, ok := registry.Get(providerName)
		if !ok || !pv.Available() {
			abortWithError(c, http.StatusServiceUnavailable,
				"provider_overloaded", "alias provider is not configured")
			return
		}
		targetPath := pathPrefix + c.Param("path")
		if !pv.PathAllowed(targetPath) {
			abortWithError(c, http.StatusNotFound,
				"path_not_allowed", "path not found")
			return
		}

		c.Set(ctxkey.Provider, pv)
		c.Set(ctxkey.TargetPath, targetPath)
		c.Set(ctxkey.RequestId, c.GetString(helper.RequestIdKey))
		c.Next()
	}
}
