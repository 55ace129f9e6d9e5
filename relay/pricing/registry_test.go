package pricing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name             string
		promptTokens     int
		completionTokens int
		promptPrice      float64
		completionPrice  float64
		multiplier       float64
		want             float64
	}{
		{
			name:             "gpt-4o-mini style pricing",
			promptTokens:     1000,
			completionTokens: 500,
			promptPrice:      0.15,
			completionPrice:  0.6,
			multiplier:       1.0,
			want:             0.00045,
		},
		{
			name:             "multiplier scales the total",
			promptTokens:     1000,
			completionTokens: 500,
			promptPrice:      0.15,
			completionPrice:  0.6,
			multiplier:       2.0,
			want:             0.0009,
		},
		{
			name:             "zero usage costs nothing",
			promptTokens:     0,
			completionTokens: 0,
			promptPrice:      3,
			completionPrice:  15,
			multiplier:       1.0,
			want:             0,
		},
		{
			name:             "single token rounds at twelve decimals",
			promptTokens:     1,
			completionTokens: 0,
			promptPrice:      0.15,
			completionPrice:  0.6,
			multiplier:       1.0,
			want:             0.00000015,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price := mustUnitPrice(t, tt.promptPrice, tt.completionPrice)
			got := Calculate(tt.promptTokens, tt.completionTokens, price, tt.multiplier)
			assert.InDelta(t, tt.want, got, 1e-15)
		})
	}
}

func mustUnitPrice(t *testing.T, prompt, completion float64) UnitPrice {
	t.Helper()
	pp, err := compileTable("test", &ProviderTable{
		Models: map[string]ModelPriceJSON{
			"m": {PromptPerMTokUsd: prompt, CompletionPerMTokUsd: completion},
		},
	})
	require.NoError(t, err)
	return pp.models["m"]
}

func TestRegistryMultiplierValidation(t *testing.T) {
	for _, m := range []float64{0, -1, 2.01} {
		_, err := NewRegistry("", m)
		require.Error(t, err, "multiplier %v must be rejected", m)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
	for _, m := range []float64{0.5, 1, 2} {
		_, err := NewRegistry("", m)
		require.NoError(t, err, "multiplier %v must be accepted", m)
	}
}

func TestScaleNative(t *testing.T) {
	r, err := NewRegistry("", 1.10)
	require.NoError(t, err)
	assert.InDelta(t, 1.353, r.ScaleNative(1.23), 1e-9)

	r, err = NewRegistry("", 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.00987, r.ScaleNative(0.00987), 1e-12)
}

func TestGetUnitPriceExactAndFamily(t *testing.T) {
	r, err := NewRegistry("", 1.0)
	require.NoError(t, err)

	_, ok := r.GetUnitPrice("openai", "gpt-4o-mini")
	assert.True(t, ok, "exact id must resolve")

	_, ok = r.GetUnitPrice("gemini", "gemini-1.5-pro-001")
	assert.True(t, ok, "dated release must resolve via family pattern")

	_, ok = r.GetUnitPrice("openai", "totally-unknown-model")
	assert.False(t, ok)

	_, ok = r.GetUnitPrice("no-such-provider", "gpt-4o")
	assert.False(t, ok)
}

func TestFamilyPatternResolvesBasePrice(t *testing.T) {
	r, err := NewRegistry("", 1.0)
	require.NoError(t, err)

	base, ok := r.GetUnitPrice("gemini", "gemini-1.5-pro")
	require.True(t, ok)
	dated, ok := r.GetUnitPrice("gemini", "gemini-1.5-pro-001")
	require.True(t, ok)
	assert.True(t, base.PromptPerMillion.Equal(dated.PromptPerMillion))
	assert.True(t, base.CompletionPerMillion.Equal(dated.CompletionPerMillion))
}

func TestIsModelSupported(t *testing.T) {
	r, err := NewRegistry("", 1.0)
	require.NoError(t, err)

	assert.True(t, r.IsModelSupported("openai", "gpt-4o", false))
	assert.False(t, r.IsModelSupported("openai", "unknown", false))
	// native-cost providers bypass the registry gate
	assert.True(t, r.IsModelSupported("litellm", "anything-at-all", true))
}

func writePricingFile(t *testing.T, dir, provider string, table ProviderTable) {
	t.Helper()
	raw, err := json.Marshal(table)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, provider+".json"), raw, 0o644))
}

func TestLoadDirOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writePricingFile(t, dir, "openai", ProviderTable{
		Version: "1",
		Models: map[string]ModelPriceJSON{
			"gpt-4o-mini": {PromptPerMTokUsd: 1, CompletionPerMTokUsd: 2},
		},
	})

	r, err := NewRegistry(dir, 1.0)
	require.NoError(t, err)

	cost, ok := r.Cost("openai", "gpt-4o-mini", 1_000_000, 0)
	require.True(t, ok)
	assert.InDelta(t, 1.0, cost, 1e-12)
}

func TestLoadRawTableFile(t *testing.T) {
	dir := t.TempDir()
	raw := `{
		"version": "2025-08",
		"models": {
			"my-model": {"promptPerMTokUsd": 0.5, "completionPerMTokUsd": 1.5, "description": "in-house"}
		},
		"modelFamilyPatterns": [
			{"pattern": "^my-model-", "baseModel": "my-model"}
		]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.json"), []byte(raw), 0o644))

	r, err := NewRegistry(dir, 1.0)
	require.NoError(t, err)

	cost, ok := r.Cost("custom", "my-model", 1_000_000, 1_000_000)
	require.True(t, ok)
	assert.InDelta(t, 2.0, cost, 1e-12)

	_, ok = r.GetUnitPrice("custom", "my-model-2025-01")
	assert.True(t, ok, "family pattern from the file must resolve")
}

func TestLoadDirValidation(t *testing.T) {
	tests := []struct {
		name  string
		table ProviderTable
	}{
		{
			name: "negative price",
			table: ProviderTable{Models: map[string]ModelPriceJSON{
				"m": {PromptPerMTokUsd: -1},
			}},
		},
		{
			name: "pattern references missing base model",
			table: ProviderTable{
				Models:              map[string]ModelPriceJSON{"m": {}},
				ModelFamilyPatterns: []FamilyPattern{{Pattern: "^m-", BaseModel: "nope"}},
			},
		},
		{
			name: "invalid regex",
			table: ProviderTable{
				Models:              map[string]ModelPriceJSON{"m": {}},
				ModelFamilyPatterns: []FamilyPattern{{Pattern: "([", BaseModel: "m"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writePricingFile(t, dir, "custom", tt.table)
			_, err := NewRegistry(dir, 1.0)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestReloadKeepsOldSnapshotOnFailure(t *testing.T) {
	dir := t.TempDir()
	writePricingFile(t, dir, "custom", ProviderTable{
		Models: map[string]ModelPriceJSON{
			"good-model": {PromptPerMTokUsd: 1, CompletionPerMTokUsd: 1},
		},
	})

	r, err := NewRegistry(dir, 1.0)
	require.NoError(t, err)
	_, ok := r.GetUnitPrice("custom", "good-model")
	require.True(t, ok)

	// break the file, reload must fail and keep serving the old snapshot
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.json"), []byte("{"), 0o644))
	require.Error(t, r.Reload())
	_, ok = r.GetUnitPrice("custom", "good-model")
	assert.True(t, ok)
}
