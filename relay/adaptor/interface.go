package adaptor

import (
	"net/http"

	"github.com/didgateway/llm-gateway/relay/model"
)

// Meta carries the per-request facts an adapter needs to decorate and account
// an upstream call.
type Meta struct {
	Provider   string
	BaseURL    string
	APIKey     string
	TargetPath string
	Model      string
	IsStream   bool
	RequestId  string
}

// StreamExtractor consumes raw upstream stream bytes incrementally and
// surfaces the usage accounting once the stream carries it. Implementations
// keep their own frame-assembly state; feed them every chunk in order.
type StreamExtractor interface {
	// ProcessChunk ingests the next verbatim byte slice from the upstream.
	ProcessChunk(chunk []byte)
	// Usage returns the best usage seen so far and whether any usage frame
	// arrived at all. Later frames supersede earlier ones.
	Usage() (*model.Usage, bool)
}

// Adaptor is a provider-specific request decorator and usage extractor. It
// never rewrites payload semantics; the proxy stays byte-transparent apart
// from the documented stream-option injection.
type Adaptor interface {
	// Name returns the canonical provider-family name.
	Name() string

	// GetRequestURL builds the full upstream URL for the validated path.
	GetRequestURL(meta *Meta) (string, error)

	// SetupRequestHeader injects provider credentials and protocol headers
	// into the outbound request.
	SetupRequestHeader(req *http.Request, meta *Meta)

	// PrepareRequest may patch the outbound body (stream usage opt-in). It
	// returns the body unchanged when no patch applies.
	PrepareRequest(body []byte, meta *Meta) ([]byte, error)

	// FromResponseBody extracts usage from a complete non-streaming
	// response body.
	FromResponseBody(body []byte) (*model.Usage, error)

	// NewStreamExtractor returns a fresh per-request stream state machine.
	NewStreamExtractor() StreamExtractor

	// NativeUsdCost reports a provider-attested USD cost from response
	// headers, when the provider supports one.
	NativeUsdCost(resp *http.Response) (float64, bool)

	// SupportsNativeUSDCost reports whether this provider can attest costs
	// natively, which exempts its models from the pricing-registry gate.
	SupportsNativeUSDCost() bool

	// TestModels lists cheap models suitable for the diagnostics endpoint.
	TestModels() []string
}

// DefaultAdaptor supplies the common no-op behaviors; concrete adapters embed
// it and override what differs.
type DefaultAdaptor struct{}

func (DefaultAdaptor) PrepareRequest(body []byte, _ *Meta) ([]byte, error) {
	return body, nil
}

func (DefaultAdaptor) NativeUsdCost(_ *http.Response) (float64, bool) {
	return 0, false
}

func (DefaultAdaptor) SupportsNativeUSDCost() bool {
	return false
}
