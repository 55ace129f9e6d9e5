package litellm

import (
	"net/http"
	"strconv"

	"github.com/Laisky/errors/v2"
	"github.com/tidwall/gjson"

	"github.com/didgateway/llm-gateway/relay/adaptor"
	"github.com/didgateway/llm-gateway/relay/adaptor/openai"
	"github.com/didgateway/llm-gateway/relay/adaptor/openai_compatible"
	"github.com/didgateway/llm-gateway/relay/model"
)

// CostHeader is the LiteLLM response header attesting the USD cost of the
// request. When present it replaces gateway pricing as the cost source.
const CostHeader = "x-litellm-response-cost"

// Adaptor speaks the OpenAI-compatible LiteLLM proxy API, which attests
// native USD costs via a response header.
type Adaptor struct {
	openai.Adaptor
}

func (a *Adaptor) Name() string { return "litellm" }

// GetRequestURL requires an explicit base URL; LiteLLM is self-hosted.
func (a *Adaptor) GetRequestURL(meta *adaptor.Meta) (string, error) {
	if meta.BaseURL == "" {
		return "", errors.New("litellm requires a configured base url")
	}
	if meta.TargetPath == "" {
		return "", errors.New("empty target path")
	}
	return meta.BaseURL + meta.TargetPath, nil
}

func (a *Adaptor) SetupRequestHeader(req *http.Request, meta *adaptor.Meta) {
	req.Header.Set("Authorization", "Bearer "+meta.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

func (a *Adaptor) NativeUsdCost(resp *http.Response) (float64, bool) {
	raw := resp.Header.Get(CostHeader)
	if raw == "" {
		return 0, false
	}
	cost, err := strconv.ParseFloat(raw, 64)
	if err != nil || cost < 0 {
		return 0, false
	}
	return cost, true
}

func (a *Adaptor) SupportsNativeUSDCost() bool { return true }

func (a *Adaptor) FromResponseBody(body []byte) (*model.Usage, error) {
	u := openai_compatible.UsageFromJSON(gjson.ParseBytes(body))
	if u == nil {
		return nil, errors.New("response carries no usage")
	}
	return u, nil
}

func (a *Adaptor) NewStreamExtractor() adaptor.StreamExtractor {
	return &openai_compatible.StreamUsageExtractor{}
}
