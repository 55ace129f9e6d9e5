package pricing

import (
	"github.com/shopspring/decimal"
)

// CostScale is the decimal precision of finalized USD costs. Rounding is
// half-even.
const CostScale = 12

// tokensPerUnit is the pricing denominator: prices are USD per million tokens.
var tokensPerUnit = decimal.NewFromInt(1_000_000)

// UnitPrice is the per-million-token USD price pair for one model.
type UnitPrice struct {
	PromptPerMillion     decimal.Decimal
	CompletionPerMillion decimal.Decimal
}

// FamilyPattern maps a model-id regex onto the unit price of a base model, so
// dated or suffixed releases price like their family head.
type FamilyPattern struct {
	Pattern     string `json:"pattern"`
	BaseModel   string `json:"baseModel"`
	Description string `json:"description,omitempty"`
}

// ProviderTable is the on-disk pricing document for one provider. Version is
// an opaque tag for operators; the engine never interprets it.
type ProviderTable struct {
	Version string                    `json:"version,omitempty"`
	Models  map[string]ModelPriceJSON `json:"models"`
	// ModelFamilyPatterns are tried in order after the exact-id lookup
	// misses; the first matching pattern wins.
	ModelFamilyPatterns []FamilyPattern `json:"modelFamilyPatterns,omitempty"`
}

// ModelPriceJSON is the wire form of a unit price, USD per million tokens.
type ModelPriceJSON struct {
	PromptPerMTokUsd     float64 `json:"promptPerMTokUsd"`
	CompletionPerMTokUsd float64 `json:"completionPerMTokUsd"`
	Description          string  `json:"description,omitempty"`
}

// Calculate computes the USD cost of a token count at the given unit price,
// scaled by the global multiplier, rounded half-even at CostScale decimals.
func Calculate(promptTokens, completionTokens int, price UnitPrice, multiplier float64) float64 {
	promptCost := decimal.NewFromInt(int64(promptTokens)).
		Div(tokensPerUnit).Mul(price.PromptPerMillion)
	completionCost := decimal.NewFromInt(int64(completionTokens)).
		Div(tokensPerUnit).Mul(price.CompletionPerMillion)

	total := promptCost.Add(completionCost).
		Mul(decimal.NewFromFloat(multiplier)).
		RoundBank(CostScale)
	result, _ := total.Float64()
	return result
}
