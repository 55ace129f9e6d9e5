package mcp

import (
	"encoding/json"
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/didgateway/llm-gateway/common"
	"github.com/didgateway/llm-gateway/common/ctxkey"
	"github.com/didgateway/llm-gateway/monitor"
)

// Proxy relays MCP JSON-RPC calls to configured upstreams.
type Proxy struct {
	upstreams       map[string]Upstream
	routes          []RouteRule
	defaultUpstream string
	logger          glog.Logger
}

// NewProxy connects every configured upstream. A stdio upstream that fails to
// start is logged and left unregistered; its routes answer unavailable.
func NewProxy(cfg *Config, logger glog.Logger) *Proxy {
	p := &Proxy{
		upstreams:       map[string]Upstream{},
		routes:          cfg.Routes,
		defaultUpstream: cfg.DefaultUpstream,
		logger:          logger,
	}
	for i := range cfg.Upstreams {
		uc := &cfg.Upstreams[i]
		switch uc.Transport {
		case TransportHTTP:
			p.upstreams[uc.Name] = NewStreamableHTTPClient(uc, logger)
		case TransportStdio:
			client, err := NewStdioClient(uc, logger)
			if err != nil {
				logger.Error("mcp stdio upstream failed to start",
					zap.String("upstream", uc.Name), zap.Error(err))
				continue
			}
			p.upstreams[uc.Name] = client
		}
	}
	return p
}

// upstream returns a named upstream when it is registered and available.
func (p *Proxy) upstream(name string) Upstream {
	u, ok := p.upstreams[name]
	if !ok || !u.Available() {
		return nil
	}
	return u
}

// UpstreamNames lists registered upstreams with availability, for the admin
// status endpoint.
func (p *Proxy) UpstreamNames() map[string]bool {
	out := make(map[string]bool, len(p.upstreams))
	for name, u := range p.upstreams {
		out[name] = u.Available()
	}
	return out
}

// Close shuts every upstream down.
func (p *Proxy) Close() {
	for _, u := range p.upstreams {
		if err := u.Close(); err != nil {
			p.logger.Warn("close mcp upstream",
				zap.String("upstream", u.Name()), zap.Error(err))
		}
	}
}

// Handler serves the JSON-RPC endpoint.
func (p *Proxy) Handler(c *gin.Context) {
	logger := gmw.GetLogger(c)

	body, err := common.GetRequestBody(c)
	if err != nil {
		c.JSON(http.StatusOK, errorResponse(nil, CodeParseError, "failed to read request body"))
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusOK, errorResponse(nil, CodeParseError, "invalid JSON"))
		return
	}
	if req.Jsonrpc != "2.0" || req.Method == "" {
		c.JSON(http.StatusOK, errorResponse(req.Id, CodeInvalidRequest, "not a JSON-RPC 2.0 request"))
		return
	}
	if !MethodAllowed(req.Method) {
		monitor.RecordMCP(req.Method, "", "method_not_found")
		c.JSON(http.StatusOK, errorResponse(req.Id, CodeMethodNotFound, "method not proxied: "+req.Method))
		return
	}

	upstream := p.resolveUpstream(req.Method, req.Params,
		c.GetString(ctxkey.CallerDid), c.Request.Host)
	if upstream == nil {
		monitor.RecordMCP(req.Method, "", "unavailable")
		c.JSON(http.StatusServiceUnavailable,
			errorResponse(req.Id, CodeUpstreamUnavailable, "no upstream available"))
		return
	}

	result, rpcErr, err := upstream.Call(c.Request.Context(), req.Method, req.Params)
	if err != nil {
		logger.Warn("mcp upstream call failed",
			zap.String("upstream", upstream.Name()),
			zap.String("method", req.Method),
			zap.Error(err))
		monitor.RecordMCP(req.Method, upstream.Name(), "transport_error")
		c.JSON(http.StatusServiceUnavailable,
			errorResponse(req.Id, CodeUpstreamUnavailable, "upstream unavailable"))
		return
	}
	if rpcErr != nil {
		// upstream errors pass through verbatim
		monitor.RecordMCP(req.Method, upstream.Name(), "rpc_error")
		c.JSON(http.StatusOK, &Response{Jsonrpc: "2.0", Id: req.Id, Error: rpcErr})
		return
	}

	monitor.RecordMCP(req.Method, upstream.Name(), "ok")
	c.JSON(http.StatusOK, &Response{Jsonrpc: "2.0", Id: req.Id, Result: result})
}
