package mcp

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// routeContext carries the facts route rules can match on.
type routeContext struct {
	toolName  string
	callerDid string
	hostname  string
}

// resolveUpstream picks the upstream for a call. Rules are evaluated in
// specificity order across the whole rule list: all matchTool rules first,
// then matchDidPrefix, then matchHostname, first hit wins within each tier.
// The default upstream catches everything else.
func (p *Proxy) resolveUpstream(method string, params json.RawMessage, callerDid, hostname string) Upstream {
	rc := routeContext{
		callerDid: callerDid,
		hostname:  hostname,
	}
	if method == "tools/call" {
		rc.toolName = gjson.GetBytes(params, "name").String()
	}

	if rc.toolName != "" {
		for _, rule := range p.routes {
			if rule.MatchTool != "" && rule.MatchTool == rc.toolName {
				if u := p.upstream(rule.Upstream); u != nil {
					return u
				}
			}
		}
	}
	if rc.callerDid != "" {
		for _, rule := range p.routes {
			if rule.MatchDidPrefix != "" && strings.HasPrefix(rc.callerDid, rule.MatchDidPrefix) {
				if u := p.upstream(rule.Upstream); u != nil {
					return u
				}
			}
		}
	}
	if rc.hostname != "" {
		for _, rule := range p.routes {
			if rule.MatchHostname != "" && strings.EqualFold(rule.MatchHostname, rc.hostname) {
				if u := p.upstream(rule.Upstream); u != nil {
					return u
				}
			}
		}
	}

	if p.defaultUpstream != "" {
		return p.upstream(p.defaultUpstream)
	}
	// single-upstream deployments need no routing table
	if len(p.upstreams) == 1 {
		for name := range p.upstreams {
			return p.upstream(name)
		}
	}
	return nil
}
