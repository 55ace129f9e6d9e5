package gemini

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/tidwall/gjson"

	"github.com/didgateway/llm-gateway/relay/adaptor"
	"github.com/didgateway/llm-gateway/relay/model"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// tailCap bounds the rolling buffer used for JSON-array streams; Gemini puts
// usageMetadata on the final element, so the tail is all that matters.
const tailCap = 64 * 1024

// Adaptor decorates and accounts requests against the Gemini API.
type Adaptor struct {
	adaptor.DefaultAdaptor
}

func (a *Adaptor) Name() string { return "gemini" }

// GetRequestURL appends the API key as a query parameter; Gemini does not use
// an auth header.
func (a *Adaptor) GetRequestURL(meta *adaptor.Meta) (string, error) {
	base := meta.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	if meta.TargetPath == "" {
		return "", errors.New("empty target path")
	}
	u, err := url.Parse(base + meta.TargetPath)
	if err != nil {
		return "", errors.Wrap(err, "parse upstream url")
	}
	q := u.Query()
	q.Set("key", meta.APIKey)
	if meta.IsStream && strings.Contains(meta.TargetPath, ":streamGenerateContent") {
		q.Set("alt", "sse")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *Adaptor) SetupRequestHeader(req *http.Request, meta *adaptor.Meta) {
	req.Header.Set("Content-Type", "application/json")
}

func (a *Adaptor) FromResponseBody(body []byte) (*model.Usage, error) {
	usage := gjson.GetBytes(body, "usageMetadata")
	if !usage.Exists() {
		return nil, errors.New("response carries no usageMetadata")
	}
	return usageFromMetadata(usage), nil
}

func (a *Adaptor) NewStreamExtractor() adaptor.StreamExtractor {
	return &streamExtractor{}
}

func (a *Adaptor) TestModels() []string {
	return []string{"gemini-1.5-flash"}
}

// usageFromMetadata maps usageMetadata onto the normalized usage.
// Tool-use prompt tokens fold into PromptTokens.
func usageFromMetadata(meta gjson.Result) *model.Usage {
	prompt := int(meta.Get("promptTokenCount").Int())
	tool := int(meta.Get("toolUsePromptTokenCount").Int())
	completion := int(meta.Get("candidatesTokenCount").Int())
	completion += int(meta.Get("thoughtsTokenCount").Int())
	return &model.Usage{
		PromptTokens:     prompt + tool,
		CompletionTokens: completion,
		TotalTokens:      prompt + tool + completion,
		ToolTokens:       tool,
	}
}

// streamExtractor handles both stream framings Gemini uses: SSE data lines
// (alt=sse) and raw JSON arrays. Every chunk carries usageMetadata; the last
// element holds the final counts.
type streamExtractor struct {
	lineBuf []byte
	tail    []byte
	usage   *model.Usage
	seen    bool
}

func (e *streamExtractor) ProcessChunk(chunk []byte) {
	e.tail = append(e.tail, chunk...)
	if len(e.tail) > tailCap {
		e.tail = e.tail[len(e.tail)-tailCap:]
	}

	e.lineBuf = append(e.lineBuf, chunk...)
	for {
		idx := bytes.IndexByte(e.lineBuf, '\n')
		if idx < 0 {
			return
		}
		line := string(bytes.TrimRight(e.lineBuf[:idx], "\r"))
		e.lineBuf = e.lineBuf[idx+1:]
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if usage := gjson.Get(data, "usageMetadata"); usage.Exists() {
			e.usage = usageFromMetadata(usage)
			e.seen = true
		}
	}
}

func (e *streamExtractor) Usage() (*model.Usage, bool) {
	if e.seen {
		return e.usage, true
	}
	// JSON-array framing: locate the last usageMetadata object in the tail.
	idx := bytes.LastIndex(e.tail, []byte(`"usageMetadata"`))
	if idx < 0 {
		return nil, false
	}
	rest := e.tail[idx+len(`"usageMetadata"`):]
	brace := bytes.IndexByte(rest, '{')
	if brace < 0 {
		return nil, false
	}
	usage := gjson.Parse(string(rest[brace:]))
	if !usage.IsObject() {
		return nil, false
	}
	return usageFromMetadata(usage), true
}
