package mcp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newHTTPUpstream(t *testing.T, handler http.HandlerFunc) *StreamableHTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewStreamableHTTPClient(&UpstreamConfig{
		Name:      "u",
		Transport: TransportHTTP,
		URL:       server.URL,
	}, testLogger(t))
}

func TestStreamableHTTPJSONResponse(t *testing.T) {
	c := newHTTPUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":{"tools":[]}}`,
			gjson.GetBytes(body, "id").Raw)
	})

	result, rpcErr, err := c.Call(context.Background(), "tools/list", nil)
	require.NoError(t, err)
	require.Nil(t, rpcErr)
	assert.True(t, gjson.GetBytes(result, "tools").IsArray())
}

func TestStreamableHTTPEventStreamResponse(t *testing.T) {
	c := newHTTPUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		id := gjson.GetBytes(body, "id").Raw
		w.Header().Set("Content-Type", "text/event-stream")
		// a notification precedes the reply; only the matching id counts
		fmt.Fprint(w, "event: message\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/progress\"}\n\n")
		fmt.Fprintf(w, "event: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":%s,\"result\":{\"content\":[{\"text\":\"hi\"}]}}\n\n", id)
	})

	result, rpcErr, err := c.Call(context.Background(), "tools/call", nil)
	require.NoError(t, err)
	require.Nil(t, rpcErr)
	assert.Equal(t, "hi", gjson.GetBytes(result, "content.0.text").String())
}

func TestStreamableHTTPEventStreamError(t *testing.T) {
	c := newHTTPUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"jsonrpc\":\"2.0\",\"id\":%s,\"error\":{\"code\":-32602,\"message\":\"unknown tool\"}}\n\n",
			gjson.GetBytes(body, "id").Raw)
	})

	result, rpcErr, err := c.Call(context.Background(), "tools/call", nil)
	require.NoError(t, err)
	require.NotNil(t, rpcErr)
	assert.Equal(t, -32602, rpcErr.Code)
	assert.Equal(t, "unknown tool", rpcErr.Message)
	assert.Nil(t, result)
}

func TestStreamableHTTPEventStreamWithoutReply(t *testing.T) {
	c := newHTTPUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/progress\"}\n\n")
	})

	_, _, err := c.Call(context.Background(), "tools/list", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching response")
}
