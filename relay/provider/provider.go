package provider

import (
	"context"
	"regexp"

	"github.com/Laisky/errors/v2"
	"golang.org/x/sync/semaphore"

	"github.com/didgateway/llm-gateway/common/config"
	"github.com/didgateway/llm-gateway/relay/adaptor"
)

// AuthKind names how a provider expects its credential delivered. The
// concrete injection lives in each adapter; the kind is recorded for status
// reporting and diagnostics.
type AuthKind string

const (
	AuthNone   AuthKind = "none"
	AuthBearer AuthKind = "bearer"
	AuthHeader AuthKind = "header"
	AuthQuery  AuthKind = "query"
)

// PathRule matches one allowed upstream path, either literally or by regex.
type PathRule struct {
	Literal string
	Regex   *regexp.Regexp
}

// Matches reports whether the rule admits the path.
func (r PathRule) Matches(path string) bool {
	if r.Literal != "" {
		return r.Literal == path
	}
	if r.Regex != nil {
		return r.Regex.MatchString(path)
	}
	return false
}

// Provider is a process-lifetime record of one upstream. Fields are fixed at
// registration; concurrency state lives in the semaphore.
type Provider struct {
	Name                  string
	BaseURL               string
	APIKey                string
	AuthKind              AuthKind
	SupportsNativeUsdCost bool
	AllowedPaths          []PathRule
	Adaptor               adaptor.Adaptor

	sem *semaphore.Weighted
}

// Available reports whether the provider can serve requests: it needs a
// credential unless its auth kind is none.
func (p *Provider) Available() bool {
	return p.AuthKind == AuthNone || p.APIKey != ""
}

// PathAllowed checks the upstream path against the allowlist.
func (p *Provider) PathAllowed(path string) bool {
	for _, rule := range p.AllowedPaths {
		if rule.Matches(path) {
			return true
		}
	}
	return false
}

// ErrOverloaded signals the provider's concurrency cap was not acquired
// within the queue window; map it to 503.
var ErrOverloaded = errors.New("provider concurrency limit reached")

// Acquire claims an upstream slot, waiting at most the configured queue
// window. Callers must Release after the upstream exchange completes.
func (p *Provider) Acquire(ctx context.Context) error {
	acquireCtx, cancel := context.WithTimeout(ctx, config.AcquireTimeout)
	defer cancel()
	if err := p.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "acquire provider slot")
		}
		return ErrOverloaded
	}
	return nil
}

// Release returns an upstream slot.
func (p *Provider) Release() {
	p.sem.Release(1)
}

// ensure fills derived fields after registration.
func (p *Provider) ensure() {
	if p.sem == nil {
		p.sem = semaphore.NewWeighted(int64(config.MaxConcurrentPerProvider))
	}
}
