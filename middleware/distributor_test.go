package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/didgateway/llm-gateway/common/ctxkey"
	"github.com/didgateway/llm-gateway/relay/adaptor/openai"
	"github.com/didgateway/llm-gateway/relay/provider"
)

func testRegistry(t *testing.T) *provider.Registry {
	t.Helper()
	r := provider.NewRegistry()
	require.NoError(t, r.Register(&provider.Provider{
		Name:     "openai",
		APIKey:   "sk-test",
		AuthKind: provider.AuthBearer,
		Adaptor:  &openai.Adaptor{},
		AllowedPaths: []provider.PathRule{
			{Literal: "/v1/chat/completions"},
			{Literal: "/v1/models"},
		},
	}))
	require.NoError(t, r.Register(&provider.Provider{
		Name:     "anthropic",
		AuthKind: provider.AuthHeader, // no key, stays unavailable
		Adaptor:  &openai.Adaptor{},
		AllowedPaths: []provider.PathRule{
			{Literal: "/v1/messages"},
		},
	}))
	return r
}

func distributorRouter(registry *provider.Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	capture := func(c *gin.Context) {
		pv := c.MustGet(ctxkey.Provider).(*provider.Provider)
		c.JSON(http.StatusOK, gin.H{
			"provider": pv.Name,
			"path":     c.GetString(ctxkey.TargetPath),
		})
	}
	legacy := r.Group("/api/v1")
	legacy.Use(DistributeAlias(registry, "openai", "/v1"))
	legacy.Any("/*path", capture)

	generic := r.Group("/:provider")
	generic.Use(Distribute(registry))
	generic.Any("/*path", capture)
	return r
}

func doDistribute(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
	return w
}

func TestDistribute(t *testing.T) {
	r := distributorRouter(testRegistry(t))

	t.Run("known provider and path", func(t *testing.T) {
		w := doDistribute(r, "/openai/v1/chat/completions")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "openai", gjson.GetBytes(w.Body.Bytes(), "provider").String())
		assert.Equal(t, "/v1/chat/completions", gjson.GetBytes(w.Body.Bytes(), "path").String())
	})

	t.Run("unknown provider", func(t *testing.T) {
		w := doDistribute(r, "/mystral/v1/chat/completions")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "provider_not_found", gjson.GetBytes(w.Body.Bytes(), "error.code").String())
	})

	t.Run("unconfigured provider", func(t *testing.T) {
		w := doDistribute(r, "/anthropic/v1/messages")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("disallowed path looks like 404", func(t *testing.T) {
		w := doDistribute(r, "/openai/v1/files")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "path not found", gjson.GetBytes(w.Body.Bytes(), "error.message").String())
	})
}

func TestDistributeAlias(t *testing.T) {
	r := distributorRouter(testRegistry(t))

	w := doDistribute(r, "/api/v1/chat/completions")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "openai", gjson.GetBytes(w.Body.Bytes(), "provider").String())
	assert.Equal(t, "/v1/chat/completions", gjson.GetBytes(w.Body.Bytes(), "path").String(),
		"alias prepends the upstream version prefix")

	w = doDistribute(r, "/api/v1/files")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDistributeAliasUnconfigured(t *testing.T) {
	registry := provider.NewRegistry()
	require.NoError(t, registry.Register(&provider.Provider{
		Name:     "openai",
		AuthKind: provider.AuthBearer, // no key
		Adaptor:  &openai.Adaptor{},
	}))
	r := distributorRouter(registry)

	w := doDistribute(r, "/api/v1/chat/completions")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
