package openai

import (
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/didgateway/llm-gateway/relay/adaptor"
	"github.com/didgateway/llm-gateway/relay/adaptor/openai_compatible"
	"github.com/didgateway/llm-gateway/relay/model"
)

const defaultBaseURL = "https://api.openai.com"

// Adaptor decorates and accounts requests against the OpenAI API.
type Adaptor struct {
	adaptor.DefaultAdaptor
}

func (a *Adaptor) Name() string { return "openai" }

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

// PrepareRequest opts streaming chat completions into usage frames. The
// Response API (bodies keyed by "input") reports usage without the option and
// rejects stream_options, so it passes through untouched.
func (a *Adaptor) PrepareRequest(body []byte, meta *adaptor.Meta) ([]byte, error) {
	if !meta.IsStream || len(body) == 0 {
		return body, nil
	}
	if !strings.Contains(meta.TargetPath, "/chat/completions") {
		return body, nil
	}
	root := gjson.ParseBytes(body)
	if root.Get("input").Exists() && !root.Get("messages").Exists() {
		return body, nil
	}
	patched, err := sjson.SetBytes(body, "stream_options.include_usage", true)
	if err != nil {
		return nil, errors.Wrap(err, "inject stream_options")
	}
	return patched, nil
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
	return []string{"gpt-4o-mini"}
}
