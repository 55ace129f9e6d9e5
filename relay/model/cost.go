package model

import "time"

// Cost sources.
const (
	// CostSourceProvider marks a cost reported natively by the upstream
	// (header or payload field). The global multiplier still applies.
	CostSourceProvider = "provider"
	// CostSourceGatewayPricing marks a cost computed from the pricing
	// registry, including the global multiplier.
	CostSourceGatewayPricing = "gateway-pricing"
)

// CostRecord is the finalized accounting for one relayed request. Exactly one
// record is produced per request that reached an upstream.
type CostRecord struct {
	RequestId string `json:"requestId"`
	CallerDid string `json:"callerDid"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`

	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`

	// CostUsd is the final USD cost, rounded half-even at 12 decimals.
	CostUsd float64 `json:"costUsd"`
	// Source is CostSourceProvider or CostSourceGatewayPricing.
	Source string `json:"source"`
	// Estimated is true when completion tokens were counted locally because
	// the stream ended without a usage frame.
	Estimated bool `json:"estimated,omitempty"`

	Streaming  bool      `json:"streaming"`
	StatusCode int       `json:"statusCode"`
	ElapsedMs  int64     `json:"elapsedMs"`
	CreatedAt  time.Time `json:"createdAt"`
}
