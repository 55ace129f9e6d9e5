package middleware

import (
	"net/http"
	"strings"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/didgateway/llm-gateway/common/config"
	"github.com/didgateway/llm-gateway/common/ctxkey"
	"github.com/didgateway/llm-gateway/identity"
)

const didAuthScheme = "DIDAuthV1"

// skipAuthDid is the placeholder caller injected when SKIP_AUTH is set.
const skipAuthDid = "did:test:skip-auth"

// DIDAuth verifies the DIDAuthV1 Authorization header and stores the caller
// DID on the context. Missing credentials get 401, rejected ones 403.
func DIDAuth(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.SkipAuth {
			c.Set(ctxkey.CallerDid, skipAuthDid)
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, http.StatusUnauthorized,
				"unauthorized", "missing Authorization header")
			return
		}
		scheme, token, found := strings.Cut(header, " ")
		if !found || scheme != didAuthScheme || token == "" {
			abortWithError(c, http.StatusUnauthorized,
				"unauthorized", "Authorization header must use the DIDAuthV1 scheme")
			return
		}

		did, err := verifier.VerifyToken(c.Request.Context(), token)
		if err != nil {
			gmw.GetLogger(c).Debug("token verification failed", zap.Error(err))
			abortWithError(c, http.StatusForbidden,
				"forbidden", "DIDAuthV1 token verification failed")
			return
		}

		c.Set(ctxkey.CallerDid, did)
		c.Next()
	}
}

// AdminOnly restricts a route to DIDs on the admin allowlist. It must run
// after DIDAuth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		did := c.GetString(ctxkey.CallerDid)
		if config.SkipAuth && did == skipAuthDid {
			c.Next()
			return
		}
		if !config.IsAdminDID(did) {
			abortWithError(c, http.StatusForbidden,
				"forbidden", "admin access required")
			return
		}
		c.Next()
	}
}
