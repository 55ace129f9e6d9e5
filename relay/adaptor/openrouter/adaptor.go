package openrouter

import (
	"net/http"

	"github.com/Laisky/errors/v2"
	"github.com/tidwall/gjson"

	"github.com/didgateway/llm-gateway/relay/adaptor"
	"github.com/didgateway/llm-gateway/relay/adaptor/openai"
	"github.com/didgateway/llm-gateway/relay/adaptor/openai_compatible"
	"github.com/didgateway/llm-gateway/relay/model"
)

const defaultBaseURL = "https://openrouter.ai/api"

// Adaptor speaks the OpenAI-compatible OpenRouter API.
type Adaptor struct {
	openai.Adaptor
}

func (a *Adaptor) Name() string { return "openrouter" }

func (a *Adaptor) GetRequestURL(meta *adaptor.Meta) (string, error) {
	base := meta.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	if meta.TargetPath == "" {
		return "", errors.New("empty target path")
	}
	return base + meta.TargetPath, nil
}

func (a *Adaptor) SetupRequestHeader(req *http.Request, meta *adaptor.Meta) {
	req.Header.Set("Authorization", "Bearer "+meta.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

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

func (a *Adaptor) TestModels() []string {
	return []string{"openai/gpt-4o-mini"}
}
