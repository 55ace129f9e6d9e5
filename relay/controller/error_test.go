package controller

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relaymodel "github.com/didgateway/llm-gateway/relay/model"
)

func upstreamResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestRelayErrorHandlerPreservesErrorObject(t *testing.T) {
	resp := upstreamResponse(http.StatusTooManyRequests,
		`{"error":{"message":"Rate limit reached","type":"rate_limit_error","code":"rate_limit_exceeded"}}`)

	result := RelayErrorHandler(resp)
	assert.Equal(t, http.StatusTooManyRequests, result.StatusCode)
	assert.Equal(t, "Rate limit reached", result.Error.Message)
	assert.Equal(t, "rate_limit_error", result.Error.Type)
	assert.Equal(t, "rate_limit_exceeded", result.Error.Code)
}

func TestRelayErrorHandlerFillsMissingCode(t *testing.T) {
	resp := upstreamResponse(http.StatusBadRequest, `{"error":{"message":"bad request"}}`)

	result := RelayErrorHandler(resp)
	assert.Equal(t, "bad request", result.Error.Message)
	assert.Equal(t, relaymodel.ErrCodeUpstreamError, result.Error.Code)
}

func TestRelayErrorHandlerAlternateShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "message", body: `{"message":"quota exhausted"}`, want: "quota exhausted"},
		{name: "msg", body: `{"msg":"bad key"}`, want: "bad key"},
		{name: "err", body: `{"err":"nope"}`, want: "nope"},
		{name: "error_msg", body: `{"error_msg":"denied"}`, want: "denied"},
		{name: "header message", body: `{"header":{"message":"auth failed"}}`, want: "auth failed"},
		{name: "nested response error", body: `{"response":{"error":{"message":"boom"}}}`, want: "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RelayErrorHandler(upstreamResponse(http.StatusBadGateway, tt.body))
			assert.Equal(t, tt.want, result.Error.Message)
			assert.Equal(t, "upstream_error", result.Error.Type)
		})
	}
}

func TestRelayErrorHandlerNonJSONBody(t *testing.T) {
	resp := upstreamResponse(http.StatusBadGateway, "<html>502 Bad Gateway</html>")

	result := RelayErrorHandler(resp)
	assert.Equal(t, "<html>502 Bad Gateway</html>", result.Error.Message,
		"non-JSON bodies pass through verbatim")
	assert.Equal(t, relaymodel.ErrCodeUpstreamError, result.Error.Code)
}

func TestRelayErrorHandlerEmptyBody(t *testing.T) {
	resp := upstreamResponse(http.StatusServiceUnavailable, "")

	result := RelayErrorHandler(resp)
	assert.Equal(t, http.StatusText(http.StatusServiceUnavailable), result.Error.Message)
}

func TestGeneralErrorResponseToMessagePriority(t *testing.T) {
	e := GeneralErrorResponse{Message: "second"}
	e.Error.Message = "first"
	assert.Equal(t, "first", e.ToMessage())

	assert.Equal(t, "", GeneralErrorResponse{}.ToMessage())
}

func TestOpenAIError(t *testing.T) {
	result := openAIError(http.StatusNotFound, relaymodel.ErrCodeProviderNotFound, "no such provider")
	require.NotNil(t, result)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	assert.Equal(t, "gateway_error", result.Error.Type)
	assert.Equal(t, relaymodel.ErrCodeProviderNotFound, result.Error.Code)
}
