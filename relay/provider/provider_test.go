package provider

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didgateway/llm-gateway/common/config"
	"github.com/didgateway/llm-gateway/relay/adaptor/openai"
)

func TestPathRuleMatches(t *testing.T) {
	literal := PathRule{Literal: "/v1/chat/completions"}
	assert.True(t, literal.Matches("/v1/chat/completions"))
	assert.False(t, literal.Matches("/v1/chat/completions/extra"))
	assert.False(t, literal.Matches("/v1/chat"))

	re := PathRule{Regex: regexp.MustCompile(`^/v1beta/models/[^/:]+:(generateContent|streamGenerateContent)$`)}
	assert.True(t, re.Matches("/v1beta/models/gemini-1.5-flash:generateContent"))
	assert.True(t, re.Matches("/v1beta/models/gemini-1.5-pro:streamGenerateContent"))
	assert.False(t, re.Matches("/v1beta/models/gemini-1.5-flash:embedContent"))
	assert.False(t, re.Matches("/v1beta/models/a/b:generateContent"))

	assert.False(t, PathRule{}.Matches("/anything"))
}

func TestProviderAvailable(t *testing.T) {
	assert.True(t, (&Provider{AuthKind: AuthNone}).Available())
	assert.False(t, (&Provider{AuthKind: AuthBearer}).Available())
	assert.True(t, (&Provider{AuthKind: AuthBearer, APIKey: "k"}).Available())
}

func TestProviderAcquireRelease(t *testing.T) {
	origMax := config.MaxConcurrentPerProvider
	config.MaxConcurrentPerProvider = 2
	t.Cleanup(func() { config.MaxConcurrentPerProvider = origMax })

	p := &Provider{Name: "x"}
	p.ensure()
	ctx := context.Background()

	require.NoError(t, p.Acquire(ctx))
	require.NoError(t, p.Acquire(ctx))

	// third request exceeds the cap and fails within the queue window
	err := p.Acquire(ctx)
	assert.ErrorIs(t, err, ErrOverloaded)

	p.Release()
	require.NoError(t, p.Acquire(ctx))
	p.Release()
	p.Release()
}

func TestProviderAcquireCallerCancelled(t *testing.T) {
	origMax := config.MaxConcurrentPerProvider
	config.MaxConcurrentPerProvider = 1
	t.Cleanup(func() { config.MaxConcurrentPerProvider = origMax })

	p := &Provider{Name: "x"}
	p.ensure()
	require.NoError(t, p.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Acquire(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOverloaded, "caller cancellation is not overload")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register(&Provider{}), "name required")
	require.Error(t, r.Register(&Provider{Name: "x"}), "adaptor required")

	require.NoError(t, r.Register(&Provider{Name: "b", Adaptor: &openai.Adaptor{}}))
	require.NoError(t, r.Register(&Provider{Name: "a", Adaptor: &openai.Adaptor{}}))

	_, ok := r.Get("a")
	assert.True(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, r.Names())

	r.Unregister("a")
	_, ok = r.Get("a")
	assert.False(t, ok)
}

func TestLoadBuiltins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadBuiltins())

	for _, name := range []string{"openai", "anthropic", "gemini", "openrouter", "litellm"} {
		p, ok := r.Get(name)
		require.True(t, ok, name)
		assert.NotNil(t, p.Adaptor)
		assert.NotEmpty(t, p.AllowedPaths)
	}

	litellm, _ := r.Get("litellm")
	assert.True(t, litellm.SupportsNativeUsdCost)
}
