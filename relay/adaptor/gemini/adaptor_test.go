package gemini

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didgateway/llm-gateway/relay/adaptor"
)

func TestGetRequestURLInjectsKey(t *testing.T) {
	a := &Adaptor{}
	url, err := a.GetRequestURL(&adaptor.Meta{
		APIKey:     "test-key",
		TargetPath: "/v1beta/models/gemini-1.5-flash:generateContent",
	})
	require.NoError(t, err)
	assert.Contains(t, url, "key=test-key")
	assert.True(t, strings.HasPrefix(url, defaultBaseURL))
}

func TestGetRequestURLStreamingAddsSSE(t *testing.T) {
	a := &Adaptor{}
	url, err := a.GetRequestURL(&adaptor.Meta{
		APIKey:     "k",
		TargetPath: "/v1beta/models/gemini-1.5-flash:streamGenerateContent",
		IsStream:   true,
	})
	require.NoError(t, err)
	assert.Contains(t, url, "alt=sse")
}

func TestFromResponseBodyFoldsToolTokens(t *testing.T) {
	a := &Adaptor{}
	body := []byte(`{"candidates":[],"usageMetadata":{"promptTokenCount":20,"candidatesTokenCount":7,"toolUsePromptTokenCount":3,"totalTokenCount":30}}`)
	u, err := a.FromResponseBody(body)
	require.NoError(t, err)
	assert.Equal(t, 23, u.PromptTokens, "tool-use prompt tokens fold into prompt")
	assert.Equal(t, 7, u.CompletionTokens)
	assert.Equal(t, 3, u.ToolTokens)
}

func TestStreamExtractorSSEFraming(t *testing.T) {
	e := (&Adaptor{}).NewStreamExtractor()
	e.ProcessChunk([]byte("data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"a\"}]}}],\"usageMetadata\":{\"promptTokenCount\":5,\"candidatesTokenCount\":1}}\n"))
	e.ProcessChunk([]byte("data: {\"candidates\":[],\"usageMetadata\":{\"promptTokenCount\":5,\"candidatesTokenCount\":4}}\n"))

	u, ok := e.Usage()
	require.True(t, ok)
	assert.Equal(t, 5, u.PromptTokens)
	assert.Equal(t, 4, u.CompletionTokens, "last chunk carries the final counts")
}

func TestStreamExtractorJSONArrayFraming(t *testing.T) {
	e := (&Adaptor{}).NewStreamExtractor()
	e.ProcessChunk([]byte(`[{"candidates":[{"content":{"parts":[{"text":"hi"}]}}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":1}}`))
	e.ProcessChunk([]byte(`,{"candidates":[],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":6}}]`))

	u, ok := e.Usage()
	require.True(t, ok)
	assert.Equal(t, 5, u.PromptTokens)
	assert.Equal(t, 6, u.CompletionTokens)
}

func TestStreamExtractorNoUsage(t *testing.T) {
	e := (&Adaptor{}).NewStreamExtractor()
	e.ProcessChunk([]byte(`[{"candidates":[{"content":{"parts":[{"text":"hi"}]}}]}`))
	_, ok := e.Usage()
	assert.False(t, ok)
}
