package config

import (
	"strings"
	"time"

	"github.com/didgateway/llm-gateway/common/env"
)

// Exit codes returned by main when startup validation fails.
const (
	ExitCodeOK                = 0
	ExitCodeFatal             = 1
	ExitCodeInvalidConfig     = 2
	ExitCodeMissingCredential = 64
)

// ValidNetworks enumerates the deployment networks accepted via NETWORK.
var ValidNetworks = map[string]bool{
	"local": true,
	"dev":   true,
	"test":  true,
	"main":  true,
}

var (
	// Host is the listen address for the HTTP server.
	Host = env.String("HOST", "0.0.0.0")
	// Port is the listen port for the HTTP server; PORT overrides it in container or PaaS environments.
	Port = strings.TrimSpace(env.String("PORT", "8088"))
	// Network selects the deployment network (local, dev, test, main); reported verbatim by the admin status endpoint.
	Network = strings.TrimSpace(env.String("NETWORK", "local"))
	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled = env.Bool("DEBUG", false)

	// ServiceKey authenticates this gateway against the external identity verifier.
	// Startup aborts with exit code 64 when it is missing (unless SKIP_AUTH is set).
	ServiceKey = strings.TrimSpace(env.String("SERVICE_KEY", ""))
	// AdminDIDs lists caller DIDs allowed on admin endpoints (comma separated ADMIN_DID).
	AdminDIDs = splitCSV(env.String("ADMIN_DID", ""))
	// AuthServiceURL points at the external DID signature verifier endpoint.
	AuthServiceURL = strings.TrimSuffix(strings.TrimSpace(env.String("AUTH_SERVICE_URL", "")), "/")
	// SkipAuth bypasses DID verification and injects a placeholder caller DID. Tests only.
	SkipAuth = env.Bool("SKIP_AUTH", false)
	// DIDCacheTTL controls how long verified DID tokens stay cached (seconds).
	DIDCacheTTL = env.Int("DID_CACHE_TTL", 60)

	// PricingMultiplier scales every gateway-computed cost. Must satisfy 0 < m <= 2.
	PricingMultiplier = env.Float64("PRICING_MULTIPLIER", 1.0)
	// PricingDir is the directory holding per-provider pricing JSON files; empty
	// keeps only the built-in tables.
	PricingDir = strings.TrimSpace(env.String("PRICING_DIR", ""))

	// MaxBodySize caps incoming JSON bodies (bytes).
	MaxBodySize = int64(env.Int("MAX_BODY_SIZE", 1024*1024))
	// RelayTimeout bounds non-streaming upstream requests (seconds).
	RelayTimeout = env.Int("RELAY_TIMEOUT", 30)
	// IdleTimeout is the per-chunk idle timeout for streaming responses (seconds).
	IdleTimeout = env.Int("IDLE_TIMEOUT", 60)
	// MaxConcurrentPerProvider caps in-flight upstream requests per provider;
	// excess requests queue briefly and then receive 503.
	MaxConcurrentPerProvider = env.Int("MAX_CONCURRENT_PER_PROVIDER", 64)
	// AcquireTimeout is how long a request may wait for a provider slot before 503.
	AcquireTimeout = time.Duration(env.Int("ACQUIRE_TIMEOUT_MS", 200)) * time.Millisecond

	// EnableLegacyAlias keeps the historical /api/v1/* route that forwards to
	// the openrouter provider unconditionally.
	EnableLegacyAlias = env.Bool("ENABLE_LEGACY_ALIAS", true)

	// MCPConfigFile is the path to the MCP upstream configuration JSON; empty disables the MCP surface.
	MCPConfigFile = strings.TrimSpace(env.String("MCP_CONFIG", ""))
	// MCPPath is the HTTP path serving the JSON-RPC MCP surface.
	MCPPath = env.String("MCP_PATH", "/mcp")
	// MCPCloseTimeout bounds stdio child shutdown before SIGKILL (seconds).
	MCPCloseTimeout = env.Int("MCP_CLOSE_TIMEOUT", 5)

	// RedisConnString enables the Redis-backed rate limit store; empty keeps the in-memory store.
	RedisConnString = strings.TrimSpace(env.String("REDIS_CONN_STRING", ""))
	// GlobalRelayRateLimitNum bounds relay calls per caller DID within a three minute window (0 disables).
	GlobalRelayRateLimitNum = env.Int("GLOBAL_RELAY_RATE_LIMIT", 0)
	// GlobalRelayRateLimitDuration sets the duration (seconds) of the relay rate limit window.
	GlobalRelayRateLimitDuration int64 = 3 * 60

	// SQLDSN provides the cost-ledger database DSN; empty selects SQLite.
	SQLDSN = strings.TrimSpace(env.String("SQL_DSN", ""))
	// SQLitePath specifies the SQLite database file path when SQL_DSN is absent.
	SQLitePath = env.String("SQLITE_PATH", "llm-gateway.db")
	// LedgerEnabled toggles the local cost-ledger billing hook.
	LedgerEnabled = env.Bool("LEDGER_ENABLED", true)

	// EnablePrometheusMetrics exposes the /metrics endpoint when true.
	EnablePrometheusMetrics = env.Bool("ENABLE_PROMETHEUS_METRICS", true)

	// ShutdownTimeoutSec specifies the graceful shutdown timeout (seconds).
	ShutdownTimeoutSec = env.Int("SHUTDOWN_TIMEOUT", 30)
)

// ProviderAPIKey returns the configured API key for a provider name, looked up
// as {PROVIDER}_API_KEY with the name upper-cased.
func ProviderAPIKey(name string) string {
	return strings.TrimSpace(env.String(strings.ToUpper(name)+"_API_KEY", ""))
}

// ProviderBaseURL returns the configured base URL override for a provider, or
// empty when the adapter default applies.
func ProviderBaseURL(name string) string {
	return strings.TrimSuffix(strings.TrimSpace(env.String(strings.ToUpper(name)+"_BASE_URL", "")), "/")
}

// IsAdminDID reports whether the given DID is on the admin allowlist.
func IsAdminDID(did string) bool {
	for _, admin := range AdminDIDs {
		if admin == did {
			return true
		}
	}
	return false
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks startup invariants that cannot be expressed as defaults.
// It returns the matching process exit code and a message, or ExitCodeOK.
func Validate() (int, string) {
	if !ValidNetworks[Network] {
		return ExitCodeInvalidConfig, "invalid NETWORK: " + Network
	}
	if PricingMultiplier <= 0 || PricingMultiplier > 2 {
		return ExitCodeInvalidConfig, "PRICING_MULTIPLIER must satisfy 0 < m <= 2"
	}
	if ServiceKey == "" && !SkipAuth {
		return ExitCodeMissingCredential, "SERVICE_KEY is required"
	}
	return ExitCodeOK, ""
}
