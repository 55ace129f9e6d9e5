package ctxkey

import "github.com/gin-gonic/gin"

const (
	// RequestId is a per-request unique identifier, mirrored into the
	// X-Gateway-Request-Id response header.
	// Set in: middleware/request-id.
	// Read in: relay/controller for cost records and structured logs.
	RequestId = "X-Gateway-Request-Id"

	// CallerDid is the verified caller DID for the current request.
	// Set in: middleware/auth after signature verification (or the
	// placeholder DID when auth is skipped).
	// Read in: relay/controller (cost records), middleware/rate-limit,
	// relay/mcp (route rules), and admin permission checks.
	CallerDid = "caller_did"

	// Provider holds the resolved *provider.Provider for this request.
	// Set in: middleware/distributor after registry lookup.
	// Read in: relay/controller to pick the adapter and upstream base URL.
	Provider = "provider"

	// TargetPath is the upstream path extracted from /{provider}/*path,
	// already validated against the provider's allowlist.
	// Set in: middleware/distributor.
	// Read in: relay/controller when building the upstream URL.
	TargetPath = "target_path"

	// RequestModel is the model name as requested by the client.
	// Set in: relay/controller after the body peek.
	// Invariant: never mutate this value; it must always reflect the
	// client's original input. Used for pricing lookup and cost records.
	RequestModel = "request_model"

	// Streaming marks that the client asked for a streaming response.
	// Set in: relay/controller after the body peek.
	// Read in: monitor labels and error rendering (SSE vs JSON errors).
	Streaming = "streaming"

	// KeyRequestBody caches the raw request body bytes for reuse.
	// Set in: common/gin.go GetRequestBody and UnmarshalBodyReusable.
	KeyRequestBody = gin.BodyBytesKey
)
