package openai_compatible

import (
	"bytes"
	"strings"

	"github.com/Laisky/zap"
	"github.com/tidwall/gjson"

	"github.com/didgateway/llm-gateway/common/logger"
	"github.com/didgateway/llm-gateway/relay/model"
)

const (
	// DataPrefix marks SSE data lines in OpenAI-style streams.
	DataPrefix = "data:"
	// Done is the terminal sentinel of OpenAI-style streams.
	Done = "[DONE]"
)

// UsageFromJSON reads a usage object out of a parsed response or chunk. It
// returns nil when the payload carries no usage.
func UsageFromJSON(root gjson.Result) *model.Usage {
	usage := root.Get("usage")
	if !usage.Exists() || usage.Type == gjson.Null {
		return nil
	}

	u := &model.Usage{
		PromptTokens:     int(usage.Get("prompt_tokens").Int()),
		CompletionTokens: int(usage.Get("completion_tokens").Int()),
		TotalTokens:      int(usage.Get("total_tokens").Int()),
	}
	// Response API spells the fields differently.
	if in := usage.Get("input_tokens"); in.Exists() {
		u.PromptTokens = int(in.Int())
		u.CompletionTokens = int(usage.Get("output_tokens").Int())
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	if sum := u.PromptTokens + u.CompletionTokens; u.TotalTokens != sum {
		// a missing total is normal, a contradicting one is not
		if u.TotalTokens != 0 {
			logger.Logger.Warn("usage total does not match prompt+completion, recomputed",
				zap.Int("reported_total", u.TotalTokens),
				zap.Int("prompt_tokens", u.PromptTokens),
				zap.Int("completion_tokens", u.CompletionTokens))
		}
		u.TotalTokens = sum
	}

	if details := usage.Get("prompt_tokens_details"); details.Exists() {
		u.PromptTokensDetails = &model.PromptTokensDetails{
			CachedTokens: int(details.Get("cached_tokens").Int()),
			AudioTokens:  int(details.Get("audio_tokens").Int()),
		}
	}
	if details := usage.Get("completion_tokens_details"); details.Exists() {
		u.CompletionTokensDetails = &model.CompletionTokensDetails{
			ReasoningTokens: int(details.Get("reasoning_tokens").Int()),
			AudioTokens:     int(details.Get("audio_tokens").Int()),
		}
	}
	return u
}

// StreamUsageExtractor assembles SSE lines from raw chunks and keeps the most
// recent usage frame. Providers emit usage on the final chunk; last one wins.
type StreamUsageExtractor struct {
	buf   []byte
	usage *model.Usage
	seen  bool
}

// ProcessChunk ingests raw stream bytes, splitting them into complete lines.
// A trailing partial line is carried over to the next call.
func (e *StreamUsageExtractor) ProcessChunk(chunk []byte) {
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

func (e *StreamUsageExtractor) processLine(line string) {
	if !strings.HasPrefix(line, DataPrefix) {
		return
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, DataPrefix))
	if data == "" || data == Done {
		return
	}
	root := gjson.Parse(data)
	if !root.IsObject() {
		return
	}
	if u := UsageFromJSON(root); u != nil {
		e.usage = u
		e.seen = true
	}
}

// Usage returns the latest usage frame observed, if any.
func (e *StreamUsageExtractor) Usage() (*model.Usage, bool) {
	return e.usage, e.seen
}
