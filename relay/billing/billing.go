package billing

import (
	"context"

	"github.com/Laisky/zap"

	"github.com/didgateway/llm-gateway/common/logger"
	"github.com/didgateway/llm-gateway/monitor"
	relaymodel "github.com/didgateway/llm-gateway/relay/model"
)

// Hook receives the finalized cost record for every relayed request. The
// gateway calls it exactly once per request that reached an upstream, after
// the response completes. Hook failures are logged and never surfaced to the
// client.
type Hook interface {
	Bill(ctx context.Context, record *relaymodel.CostRecord) error
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, record *relaymodel.CostRecord) error

func (f HookFunc) Bill(ctx context.Context, record *relaymodel.CostRecord) error {
	return f(ctx, record)
}

// Composite fans a record out to every hook, logging individual failures.
type Composite struct {
	hooks []Hook
}

// NewComposite builds a fan-out hook.
func NewComposite(hooks ...Hook) *Composite {
	return &Composite{hooks: hooks}
}

// Append adds another hook.
func (c *Composite) Append(h Hook) {
	c.hooks = append(c.hooks, h)
}

// Bill delivers the record to every hook. It never returns an error; billing
// must not affect the client response.
func (c *Composite) Bill(ctx context.Context, record *relaymodel.CostRecord) error {
	for _, h := range c.hooks {
		if err := h.Bill(ctx, record); err != nil {
			monitor.BillingFailureInc()
			logger.Logger.Error("billing hook failed",
				zap.String("request_id", record.RequestId),
				zap.String("provider", record.Provider),
				zap.Error(err))
		}
	}
	return nil
}
