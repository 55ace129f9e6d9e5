package anthropic

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/tidwall/gjson"

	"github.com/didgateway/llm-gateway/relay/adaptor"
	"github.com/didgateway/llm-gateway/relay/model"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// Adaptor decorates and accounts requests against the Anthropic Messages API.
type Adaptor struct {
	adaptor.DefaultAdaptor
}

func (a *Adaptor) Name() string { return "anthropic" }

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
	req.Header.Set("x-api-key", meta.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")
}

func (a *Adaptor) FromResponseBody(body []byte) (*model.Usage, error) {
	usage := gjson.GetBytes(body, "usage")
	if !usage.Exists() {
		return nil, errors.New("response carries no usage")
	}
	return usageFromAnthropic(usage), nil
}

func (a *Adaptor) NewStreamExtractor() adaptor.StreamExtractor {
	return &streamExtractor{}
}

func (a *Adaptor) TestModels() []string {
	return []string{"claude-3-5-haiku"}
}

// usageFromAnthropic maps the Anthropic usage shape onto the normalized one.
// Cache-related input tokens fold into PromptTokens.
func usageFromAnthropic(usage gjson.Result) *model.Usage {
	prompt := int(usage.Get("input_tokens").Int())
	prompt += int(usage.Get("cache_creation_input_tokens").Int())
	prompt += int(usage.Get("cache_read_input_tokens").Int())
	completion := int(usage.Get("output_tokens").Int())
	u := &model.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
	if cached := usage.Get("cache_read_input_tokens"); cached.Exists() && cached.Int() > 0 {
		u.PromptTokensDetails = &model.PromptTokensDetails{CachedTokens: int(cached.Int())}
	}
	return u
}

// streamExtractor follows the named-event protocol: message_start carries the
// input token count, message_delta carries cumulative output tokens, and
// message_stop closes the message.
type streamExtractor struct {
	buf          []byte
	event        string
	inputTokens  int
	outputTokens int
	toolTokens   int
	cachedTokens int
	seen         bool
	stopped      bool
}

func (e *streamExtractor) ProcessChunk(chunk []byte) {
	e.buf = append(e.buf, chunk...)
	for {
		idx := bytes.IndexByte(e.buf, '\n')
		if idx < 0 {
			return
		}
		line := string(bytes.TrimRight(e.buf[:idx], "\r"))
		e.buf = e.buf[idx+1:]
		e.processLine(line)
	}
}

func (e *streamExtractor) processLine(line string) {
	switch {
	case strings.HasPrefix(line, "event:"):
		e.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
	case strings.HasPrefix(line, "data:"):
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			return
		}
		e.processEvent(e.event, gjson.Parse(data))
	}
}

func (e *streamExtractor) processEvent(event string, root gjson.Result) {
	switch event {
	case "message_start":
		usage := root.Get("message.usage")
		if !usage.Exists() {
			return
		}
		e.inputTokens = int(usage.Get("input_tokens").Int()) +
			int(usage.Get("cache_creation_input_tokens").Int()) +
			int(usage.Get("cache_read_input_tokens").Int())
		e.cachedTokens = int(usage.Get("cache_read_input_tokens").Int())
		if out := usage.Get("output_tokens"); out.Exists() {
			e.outputTokens = int(out.Int())
		}
		e.seen = true
	case "message_delta":
		if out := root.Get("usage.output_tokens"); out.Exists() {
			e.outputTokens = int(out.Int())
			e.seen = true
		}
	case "content_block_start":
		if root.Get("content_block.type").String() == "tool_use" {
			e.toolTokens = int(root.Get("content_block.input_tokens").Int())
		}
	case "message_stop":
		e.stopped = true
	}
}

func (e *streamExtractor) Usage() (*model.Usage, bool) {
	if !e.seen {
		return nil, false
	}
	prompt := e.inputTokens + e.toolTokens
	u := &model.Usage{
		PromptTokens:     prompt,
		CompletionTokens: e.outputTokens,
		TotalTokens:      prompt + e.outputTokens,
		ToolTokens:       e.toolTokens,
	}
	if e.cachedTokens > 0 {
		u.PromptTokensDetails = &model.PromptTokensDetails{CachedTokens: e.cachedTokens}
	}
	return u, true
}
