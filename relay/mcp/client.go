package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"

	"github.com/didgateway/llm-gateway/common/random"
)

// Upstream is a connected MCP server the proxy can relay calls to.
type Upstream interface {
	// Name returns the configured upstream name.
	Name() string
	// Call performs one JSON-RPC exchange. An *RPCError return preserves
	// the upstream's error object; err covers transport failures.
	Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, *RPCError, error)
	// Available reports whether the upstream can currently serve calls.
	Available() bool
	// Close releases the upstream connection or child process.
	Close() error
}

const (
	mcpProtocolVersionHeader  = "mcp-protocol-version"
	mcpSessionIDHeader        = "mcp-session-id"
	mcpDefaultProtocolVersion = "2025-06-18"
	mcpAcceptHeaderValue      = "application/json, text/event-stream"

	defaultCallTimeout = 30 * time.Second
)

// StreamableHTTPClient relays JSON-RPC calls to an MCP server over HTTP.
type StreamableHTTPClient struct {
	name    string
	baseURL string
	headers map[string]string
	client  *http.Client
	logger  glog.Logger
}

// NewStreamableHTTPClient builds an HTTP upstream from its configuration,
// folding auth and session headers into the fixed header set.
func NewStreamableHTTPClient(cfg *UpstreamConfig, logger glog.Logger) *StreamableHTTPClient {
	merged := make(map[string]string)
	for k, v := range cfg.Headers {
		merged[k] = v
	}
	if _, ok := merged[mcpProtocolVersionHeader]; !ok {
		merged[mcpProtocolVersionHeader] = mcpDefaultProtocolVersion
	}
	if _, ok := merged[mcpSessionIDHeader]; !ok {
		merged[mcpSessionIDHeader] = "mcp-session-" + random.GetUUIDWithHyphens()
	}
	if _, ok := merged["Accept"]; !ok {
		merged["Accept"] = mcpAcceptHeaderValue
	}

	switch strings.ToLower(cfg.AuthType) {
	case AuthTypeBearer:
		if cfg.APIKey != "" {
			merged["Authorization"] = "Bearer " + cfg.APIKey
		}
	case AuthTypeAPIKey:
		if cfg.APIKey != "" {
			merged["X-API-Key"] = cfg.APIKey
		}
	}

	timeout := defaultCallTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	return &StreamableHTTPClient{
		name:    cfg.Name,
		baseURL: strings.TrimSpace(cfg.URL),
		headers: merged,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *StreamableHTTPClient) Name() string    { return c.name }
func (c *StreamableHTTPClient) Available() bool { return true }
func (c *StreamableHTTPClient) Close() error    { return nil }

// Call performs a JSON-RPC call against the MCP server.
func (c *StreamableHTTPClient) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, *RPCError, error) {
	request := Request{
		Jsonrpc: "2.0",
		Id:      json.RawMessage(`"` + random.GetUUID() + `"`),
		Method:  method,
		Params:  params,
	}
	data, err := json.Marshal(request)
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshal mcp request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(data))
	if err != nil {
		return nil, nil, errors.Wrap(err, "create mcp request")
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	if c.logger != nil {
		c.logger.Debug("mcp outbound request",
			zap.String("upstream", c.name),
			zap.String("method", method),
			zap.Int("body_bytes", len(data)))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, errors.Wrap(err, "send mcp request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, nil, errors.Wrap(readErr, "read mcp response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, errors.Errorf("mcp request failed with status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope *Response
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		envelope, err = responseFromEventStream(body, request.Id)
		if err != nil {
			return nil, nil, err
		}
	} else {
		envelope = &Response{}
		if err := json.Unmarshal(body, envelope); err != nil {
			return nil, nil, errors.Wrap(err, "decode mcp response")
		}
	}
	if envelope.Error != nil {
		return nil, envelope.Error, nil
	}
	return envelope.Result, nil, nil
}

// responseFromEventStream assembles the JSON-RPC reply from an SSE body.
// Streamable HTTP servers may interleave notifications and progress frames;
// the reply is the data frame whose id matches the request.
func responseFromEventStream(body []byte, id json.RawMessage) (*Response, error) {
	for _, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(line[len("data:"):])
		if len(data) == 0 {
			continue
		}
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		if bytes.Equal(resp.Id, id) {
			return &resp, nil
		}
	}
	return nil, errors.New("mcp event stream carried no matching response")
}
