package pricing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/shopspring/decimal"

	"github.com/didgateway/llm-gateway/common/logger"
)

// ErrInvalidConfig wraps pricing-table validation failures so startup can map
// them to the invalid-config exit code.
var ErrInvalidConfig = errors.New("invalid pricing configuration")

type compiledPattern struct {
	re        *regexp.Regexp
	baseModel string
}

type providerPricing struct {
	models   map[string]UnitPrice
	patterns []compiledPattern
}

type snapshot struct {
	providers map[string]*providerPricing
}

// Registry resolves model unit prices per provider. Lookups read an immutable
// snapshot; Reload swaps the snapshot atomically so in-flight requests keep a
// consistent view.
type Registry struct {
	mu         sync.RWMutex
	snap       *snapshot
	multiplier float64
	dir        string
}

// NewRegistry builds a registry from the embedded default tables overlaid
// with JSON files from dir (one file per provider, empty dir skips the
// overlay). The multiplier scales every computed cost and must satisfy
// 0 < m <= 2.
func NewRegistry(dir string, multiplier float64) (*Registry, error) {
	if multiplier <= 0 || multiplier > 2 {
		return nil, errors.Wrapf(ErrInvalidConfig, "multiplier %v out of (0,2]", multiplier)
	}
	r := &Registry{multiplier: multiplier, dir: dir}
	snap, err := buildSnapshot(dir)
	if err != nil {
		return nil, err
	}
	r.snap = snap
	return r, nil
}

// Multiplier returns the configured global pricing multiplier.
func (r *Registry) Multiplier() float64 {
	return r.multiplier
}

// Reload rebuilds the snapshot from disk and swaps it in. On failure the
// previous snapshot stays active.
func (r *Registry) Reload() error {
	snap, err := buildSnapshot(r.dir)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
	logger.Logger.Info("pricing tables reloaded", zap.Int("providers", len(snap.providers)))
	return nil
}

// GetUnitPrice resolves the unit price for a model under a provider: exact id
// first, then the provider's family patterns in declaration order.
func (r *Registry) GetUnitPrice(provider, model string) (UnitPrice, bool) {
	r.mu.RLock()
	snap := r.snap
	r.mu.RUnlock()

	pp, ok := snap.providers[provider]
	if !ok {
		return UnitPrice{}, false
	}
	if price, ok := pp.models[model]; ok {
		return price, true
	}
	for _, pat := range pp.patterns {
		if pat.re.MatchString(model) {
			if price, ok := pp.models[pat.baseModel]; ok {
				return price, true
			}
		}
	}
	return UnitPrice{}, false
}

// IsModelSupported reports whether a request for this model can be priced:
// either the provider reports native USD costs, or the registry resolves a
// unit price.
func (r *Registry) IsModelSupported(provider, model string, nativeCost bool) bool {
	if nativeCost {
		return true
	}
	_, ok := r.GetUnitPrice(provider, model)
	return ok
}

// Cost computes the gateway-priced USD cost for a usage under a provider
// model, or ok=false when no unit price resolves.
func (r *Registry) Cost(provider, model string, promptTokens, completionTokens int) (float64, bool) {
	price, ok := r.GetUnitPrice(provider, model)
	if !ok {
		return 0, false
	}
	return Calculate(promptTokens, completionTokens, price, r.multiplier), true
}

// ScaleNative applies the global multiplier to a provider-attested USD cost.
// The multiplier is applied last to every cost regardless of its source.
func (r *Registry) ScaleNative(cost float64) float64 {
	scaled, _ := decimal.NewFromFloat(cost).
		Mul(decimal.NewFromFloat(r.multiplier)).
		RoundBank(CostScale).
		Float64()
	return scaled
}

func buildSnapshot(dir string) (*snapshot, error) {
	snap := &snapshot{providers: map[string]*providerPricing{}}

	for name, table := range defaultTables {
		pp, err := compileTable(name, table)
		if err != nil {
			return nil, err
		}
		snap.providers[name] = pp
	}

	if dir == "" {
		return snap, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "read pricing dir %s: %v", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		provider := strings.TrimSuffix(entry.Name(), ".json")
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "read %s: %v", entry.Name(), err)
		}
		var table ProviderTable
		if err := json.Unmarshal(raw, &table); err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "parse %s: %v", entry.Name(), err)
		}
		pp, err := compileTable(provider, &table)
		if err != nil {
			return nil, err
		}
		if existing, ok := snap.providers[provider]; ok {
			for id := range table.Models {
				if _, dup := existing.models[id]; dup {
					logger.Logger.Warn("pricing collision, file overrides default",
						zap.String("provider", provider), zap.String("model", id))
				}
			}
		}
		snap.providers[provider] = pp
	}
	return snap, nil
}

func compileTable(provider string, table *ProviderTable) (*providerPricing, error) {
	pp := &providerPricing{models: make(map[string]UnitPrice, len(table.Models))}
	for id, price := range table.Models {
		if price.PromptPerMTokUsd < 0 || price.CompletionPerMTokUsd < 0 {
			return nil, errors.Wrapf(ErrInvalidConfig,
				"provider %s model %s has negative price", provider, id)
		}
		pp.models[id] = UnitPrice{
			PromptPerMillion:     decimal.NewFromFloat(price.PromptPerMTokUsd),
			CompletionPerMillion: decimal.NewFromFloat(price.CompletionPerMTokUsd),
		}
	}
	for _, pat := range table.ModelFamilyPatterns {
		if _, ok := pp.models[pat.BaseModel]; !ok {
			return nil, errors.Wrapf(ErrInvalidConfig,
				"provider %s family pattern %q references unknown base model %q",
				provider, pat.Pattern, pat.BaseModel)
		}
		re, err := regexp.Compile(pat.Pattern)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig,
				"provider %s family pattern %q: %v", provider, pat.Pattern, err)
		}
		pp.patterns = append(pp.patterns, compiledPattern{re: re, baseModel: pat.BaseModel})
	}
	return pp, nil
}

var (
	globalRegistry *Registry
	globalOnce     sync.Mutex
)

// InitGlobal installs the process-wide registry.
func InitGlobal(r *Registry) {
	globalOnce.Lock()
	defer globalOnce.Unlock()
	globalRegistry = r
}

// Global returns the process-wide registry, or nil before InitGlobal.
func Global() *Registry {
	globalOnce.Lock()
	defer globalOnce.Unlock()
	return globalRegistry
}
