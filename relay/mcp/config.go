package mcp

import (
	"encoding/json"
	"os"

	"github.com/Laisky/errors/v2"
	"github.com/go-playground/validator/v10"
)

// Transport kinds for MCP upstreams.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Auth kinds for HTTP upstreams.
const (
	AuthTypeNone   = "none"
	AuthTypeBearer = "bearer"
	AuthTypeAPIKey = "x-api-key"
)

// Restart policies for stdio upstreams.
const (
	RestartNever   = "never"
	RestartOnExit  = "on-exit"
	RestartOnCrash = "on-crash"
)

// UpstreamConfig describes one MCP upstream server.
type UpstreamConfig struct {
	Name      string `json:"name" validate:"required"`
	Transport string `json:"transport" validate:"required,oneof=http stdio"`

	// HTTP transport
	URL      string            `json:"url,omitempty" validate:"omitempty,url"`
	AuthType string            `json:"authType,omitempty" validate:"omitempty,oneof=none bearer x-api-key"`
	APIKey   string            `json:"apiKey,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`

	// Stdio transport
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Dir     string            `json:"dir,omitempty"`
	Restart string            `json:"restart,omitempty" validate:"omitempty,oneof=never on-exit on-crash"`
	// InheritStderr shares the gateway's stderr with the child. Unset
	// means true.
	InheritStderr *bool `json:"inheritStderr,omitempty"`

	TimeoutSec int `json:"timeoutSec,omitempty" validate:"gte=0"`
}

// RouteRule routes a call to a named upstream. Match fields are tried in
// specificity order: tool name, then caller-DID prefix, then hostname.
type RouteRule struct {
	MatchTool      string `json:"matchTool,omitempty"`
	MatchDidPrefix string `json:"matchDidPrefix,omitempty"`
	MatchHostname  string `json:"matchHostname,omitempty"`
	Upstream       string `json:"upstream" validate:"required"`
}

// Config is the MCP proxy configuration document (MCP_CONFIG file).
type Config struct {
	Upstreams       []UpstreamConfig `json:"upstreams" validate:"dive"`
	Routes          []RouteRule      `json:"routes,omitempty" validate:"dive"`
	DefaultUpstream string           `json:"defaultUpstream,omitempty"`
}

var validate = validator.New()

// LoadConfig reads and validates the MCP configuration file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read mcp config %s", path)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse mcp config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field invariants via struct tags, then the cross-field and
// referential ones tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "mcp config")
	}

	names := map[string]bool{}
	for i := range c.Upstreams {
		u := &c.Upstreams[i]
		if names[u.Name] {
			return errors.Errorf("duplicate mcp upstream %q", u.Name)
		}
		names[u.Name] = true

		switch u.Transport {
		case TransportHTTP:
			if u.URL == "" {
				return errors.Errorf("mcp upstream %q: http transport requires url", u.Name)
			}
		case TransportStdio:
			if u.Command == "" {
				return errors.Errorf("mcp upstream %q: stdio transport requires command", u.Name)
			}
		}
	}

	for _, route := range c.Routes {
		if !names[route.Upstream] {
			return errors.Errorf("mcp route references unknown upstream %q", route.Upstream)
		}
		if route.MatchTool == "" && route.MatchDidPrefix == "" && route.MatchHostname == "" {
			return errors.Errorf("mcp route to %q matches nothing", route.Upstream)
		}
	}
	if c.DefaultUpstream != "" && !names[c.DefaultUpstream] {
		return errors.Errorf("default upstream %q is not defined", c.DefaultUpstream)
	}
	return nil
}
