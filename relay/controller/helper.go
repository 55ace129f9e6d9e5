package controller

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/didgateway/llm-gateway/common/ctxkey"
	"github.com/didgateway/llm-gateway/relay/adaptor"
	"github.com/didgateway/llm-gateway/relay/provider"
	"github.com/didgateway/llm-gateway/relay/streaming"
)

// geminiModelPath extracts the model id from Gemini-style paths, where the
// model travels in the URL instead of the body.
var geminiModelPath = regexp.MustCompile(`/models/([^/:]+):`)

// peekModel extracts the requested model without decoding the full body.
func peekModel(body []byte, targetPath string) string {
	if m := gjson.GetBytes(body, "model"); m.Exists() {
		return m.String()
	}
	if match := geminiModelPath.FindStringSubmatch(targetPath); match != nil {
		return match[1]
	}
	return ""
}

// peekStreaming detects a streaming request from the body flag or a
// streaming-only path.
func peekStreaming(body []byte, targetPath string) bool {
	if gjson.GetBytes(body, "stream").Bool() {
		return true
	}
	return strings.Contains(targetPath, ":streamGenerateContent")
}

// buildMeta assembles the adapter meta from context values set by the
// distributor middleware.
func buildMeta(c *gin.Context, p *provider.Provider, model string, isStream bool) *adaptor.Meta {
	return &adaptor.Meta{
		Provider:   p.Name,
		BaseURL:    p.BaseURL,
		APIKey:     p.APIKey,
		TargetPath: c.GetString(ctxkey.TargetPath),
		Model:      model,
		IsStream:   isStream,
		RequestId:  c.GetString(ctxkey.RequestId),
	}
}

// estimatePromptTokens counts tokens over the textual content of the request
// body, for streams that ended without a usage frame.
func estimatePromptTokens(body []byte, model string) int {
	var sb strings.Builder
	messages := gjson.GetBytes(body, "messages")
	if messages.IsArray() {
		messages.ForEach(func(_, msg gjson.Result) bool {
			if content := msg.Get("content"); content.Type == gjson.String {
				sb.WriteString(content.String())
				sb.WriteString("\n")
			}
			return true
		})
	}
	if sb.Len() == 0 {
		if prompt := gjson.GetBytes(body, "prompt"); prompt.Type == gjson.String {
			sb.WriteString(prompt.String())
		}
	}
	return streaming.CountTokenText(sb.String(), model)
}

// copyClientHeaders forwards a small allowlist of end-client headers to the
// upstream; credentials always come from provider configuration, never from
// the client.
var forwardedHeaders = []string{"Accept", "Accept-Language", "User-Agent"}
