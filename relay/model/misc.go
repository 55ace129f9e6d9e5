package model

// PromptTokensDetails mirrors the prompt_tokens_details object providers
// attach to usage payloads.
type PromptTokensDetails struct {
	CachedTokens int `json:"cached_tokens,omitempty"`
	AudioTokens  int `json:"audio_tokens,omitempty"`
}

// CompletionTokensDetails mirrors the completion_tokens_details object.
type CompletionTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
	AudioTokens     int `json:"audio_tokens,omitempty"`
}

// Usage is the normalized token accounting extracted from an upstream
// response, regardless of the provider's native shape.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	PromptTokensDetails     *PromptTokensDetails     `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails *CompletionTokensDetails `json:"completion_tokens_details,omitempty"`

	// ToolTokens counts tool-content tokens (web_search, file_search,
	// tool_use) that fold into PromptTokens for pricing.
	ToolTokens int `json:"-"`
}

// Add merges another usage snapshot into this one.
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.ToolTokens += other.ToolTokens
}

// Error is the unified error payload returned to clients:
// {"error": {"message", "type", "param", "code"}}.
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Param   string `json:"param,omitempty"`
	Code    any    `json:"code,omitempty"`
}

// ErrorWithStatusCode couples the client-facing error payload with the HTTP
// status to send it under.
type ErrorWithStatusCode struct {
	Error      Error `json:"error"`
	StatusCode int   `json:"-"`
}

// Error codes used across the relay path (spec error taxonomy).
const (
	ErrCodeModelNotSupported  = "model_not_supported"
	ErrCodeProviderNotFound   = "provider_not_found"
	ErrCodePathNotAllowed     = "path_not_allowed"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeForbidden          = "forbidden"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeUpstreamError      = "upstream_error"
	ErrCodeUpstreamTimeout    = "upstream_timeout"
	ErrCodeProviderOverloaded = "provider_overloaded"
	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeInternalError      = "internal_error"
)
