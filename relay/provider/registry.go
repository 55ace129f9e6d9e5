package provider

import (
	"regexp"
	"sort"
	"sync"

	"github.com/Laisky/errors/v2"

	"github.com/didgateway/llm-gateway/common/config"
	"github.com/didgateway/llm-gateway/relay/adaptor/anthropic"
	"github.com/didgateway/llm-gateway/relay/adaptor/gemini"
	"github.com/didgateway/llm-gateway/relay/adaptor/litellm"
	"github.com/didgateway/llm-gateway/relay/adaptor/openai"
	"github.com/didgateway/llm-gateway/relay/adaptor/openrouter"
)

// Registry holds the process-lifetime provider records. Reads take a shared
// lock; registration happens at startup and in tests.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]*Provider{}}
}

// Register adds or replaces a provider record.
func (r *Registry) Register(p *Provider) error {
	if p.Name == "" {
		return errors.New("provider name required")
	}
	if p.Adaptor == nil {
		return errors.Errorf("provider %s has no adaptor", p.Name)
	}
	p.ensure()
	r.mu.Lock()
	r.providers[p.Name] = p
	r.mu.Unlock()
	return nil
}

// Unregister removes a provider record. Tests only.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.providers, name)
	r.mu.Unlock()
}

// Get resolves a provider by name.
func (r *Registry) Get(name string) (*Provider, bool) {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	return p, ok
}

// Names returns all registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// LoadBuiltins registers the built-in provider families, pulling credentials
// and base URL overrides from the environment. Providers without a credential
// stay registered but unavailable.
func (r *Registry) LoadBuiltins() error {
	builtins := []*Provider{
		{
			Name:     "openai",
			AuthKind: AuthBearer,
			Adaptor:  &openai.Adaptor{},
			AllowedPaths: []PathRule{
				{Literal: "/v1/chat/completions"},
				{Literal: "/v1/completions"},
				{Literal: "/v1/embeddings"},
				{Literal: "/v1/responses"},
				{Literal: "/v1/models"},
			},
		},
		{
			Name:     "anthropic",
			AuthKind: AuthHeader,
			Adaptor:  &anthropic.Adaptor{},
			AllowedPaths: []PathRule{
				{Literal: "/v1/messages"},
				{Literal: "/v1/complete"},
				{Literal: "/v1/models"},
			},
		},
		{
			Name:     "gemini",
			AuthKind: AuthQuery,
			Adaptor:  &gemini.Adaptor{},
			AllowedPaths: []PathRule{
				{Regex: regexp.MustCompile(`^/v1beta/models/[^/:]+:(generateContent|streamGenerateContent|countTokens)$`)},
				{Literal: "/v1beta/models"},
			},
		},
		{
			Name:     "openrouter",
			AuthKind: AuthBearer,
			Adaptor:  &openrouter.Adaptor{},
			AllowedPaths: []PathRule{
				{Literal: "/v1/chat/completions"},
				{Literal: "/v1/completions"},
				{Literal: "/v1/models"},
			},
		},
		{
			Name:                  "litellm",
			AuthKind:              AuthBearer,
			SupportsNativeUsdCost: true,
			Adaptor:               &litellm.Adaptor{},
			AllowedPaths: []PathRule{
				{Literal: "/v1/chat/completions"},
				{Literal: "/v1/completions"},
				{Literal: "/v1/embeddings"},
			},
		},
	}

	for _, p := range builtins {
		p.APIKey = config.ProviderAPIKey(p.Name)
		p.BaseURL = config.ProviderBaseURL(p.Name)
		if err := r.Register(p); err != nil {
			return errors.Wrapf(err, "register provider %s", p.Name)
		}
	}
	return nil
}

var (
	globalRegistry *Registry
	globalMu       sync.Mutex
)

// InitGlobal installs the process-wide registry.
func InitGlobal(r *Registry) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRegistry = r
}

// Global returns the process-wide registry, or nil before InitGlobal.
func Global() *Registry {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalRegistry
}
