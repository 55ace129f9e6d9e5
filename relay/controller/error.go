package controller

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	relaymodel "github.com/didgateway/llm-gateway/relay/model"
)

// errorBodyLimit caps how much of an upstream error body is read back.
const errorBodyLimit = 128 * 1024

// GeneralErrorResponse covers the error shapes upstreams answer with. Exactly
// one of the fields is usually set; ToMessage picks the first non-empty.
type GeneralErrorResponse struct {
	Error    relaymodel.Error `json:"error"`
	Message  string           `json:"message"`
	Msg      string           `json:"msg"`
	Err      string           `json:"err"`
	ErrorMsg string           `json:"error_msg"`
	Header   struct {
		Message string `json:"message"`
	} `json:"header"`
	Response struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"response"`
}

// ToMessage returns the first populated message field.
func (e GeneralErrorResponse) ToMessage() string {
	if e.Error.Message != "" {
		return e.Error.Message
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != "" {
		return e.Err
	}
	if e.ErrorMsg != "" {
		return e.ErrorMsg
	}
	if e.Header.Message != "" {
		return e.Header.Message
	}
	if e.Response.Error.Message != "" {
		return e.Response.Error.Message
	}
	return ""
}

// RelayErrorHandler converts a non-2xx upstream response into the unified
// error payload. Non-JSON bodies are echoed verbatim into error.message.
func RelayErrorHandler(resp *http.Response) *relaymodel.ErrorWithStatusCode {
	result := &relaymodel.ErrorWithStatusCode{
		StatusCode: resp.StatusCode,
		Error: relaymodel.Error{
			Message: "",
			Type:    "upstream_error",
			Code:    relaymodel.ErrCodeUpstreamError,
		},
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	_ = resp.Body.Close()
	if err != nil {
		result.Error.Message = "failed to read upstream error response"
		return result
	}

	var parsed GeneralErrorResponse
	if jsonErr := json.Unmarshal(body, &parsed); jsonErr == nil {
		if parsed.Error.Message != "" {
			// preserve the upstream error object when it matches our shape
			result.Error = parsed.Error
			if result.Error.Code == nil {
				result.Error.Code = relaymodel.ErrCodeUpstreamError
			}
		} else if msg := parsed.ToMessage(); msg != "" {
			result.Error.Message = msg
		}
	}
	if result.Error.Message == "" {
		result.Error.Message = strings.TrimSpace(string(body))
	}
	if result.Error.Message == "" {
		result.Error.Message = http.StatusText(resp.StatusCode)
	}
	return result
}

// openAIError builds a client-facing error payload.
func openAIError(statusCode int, code, message string) *relaymodel.ErrorWithStatusCode {
	return &relaymodel.ErrorWithStatusCode{
		StatusCode: statusCode,
		Error: relaymodel.Error{
			Message: message,
			Type:    "gateway_error",
			Code:    code,
		},
	}
}
