package mcp

import "encoding/json"

// JSON-RPC 2.0 wire types. Ids are kept raw so string and numeric ids round
// trip unchanged.

// Request is an inbound or outbound JSON-RPC request.
type Request struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return len(r.Id) == 0
}

// Response is a JSON-RPC response envelope.
type Response struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError preserves the upstream error triple verbatim.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC error codes, plus the server-defined range the gateway
// uses for proxy-side failures.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeUpstreamUnavailable is returned when no healthy upstream can
	// serve the call.
	CodeUpstreamUnavailable = -32001
)

// proxiedMethods are the MCP methods the gateway relays. Anything else gets
// method-not-found without touching an upstream.
var proxiedMethods = map[string]bool{
	"initialize":               true,
	"tools/list":               true,
	"tools/call":               true,
	"prompts/list":             true,
	"prompts/get":              true,
	"resources/list":           true,
	"resources/templates/list": true,
	"resources/read":           true,
	"ping":                     true,
}

// MethodAllowed reports whether the gateway proxies this method.
func MethodAllowed(method string) bool {
	return proxiedMethods[method]
}

// errorResponse builds a proxy-originated error response for a request id.
func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{
		Jsonrpc: "2.0",
		Id:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}
