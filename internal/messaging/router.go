package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/sendloop/waflow/internal/flow"
)

// InboundRouter consumes inbound responses from a messaging Service, runs
// each one through the flow engine, and sends whatever single message the
// engine produced back to the counterparty.
type InboundRouter struct {
	engine  *flow.Engine
	service Service
	tenant  string
	flow    string
}

// NewInboundRouter creates a router that executes the named flow for the
// given tenant on every inbound message.
func NewInboundRouter(engine *flow.Engine, service Service, tenant, flowName string) *InboundRouter {
	return &InboundRouter{engine: engine, service: service, tenant: tenant, flow: flowName}
}

// Start begins consuming inbound responses until the context is cancelled or
// the service's response channel is closed.
func (r *InboundRouter) Start(ctx context.Context) {
	slog.Info("InboundRouter starting", "tenant", r.tenant, "flow", r.flow)
	go r.loop(ctx)
}

func (r *InboundRouter) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Debug("InboundRouter stopping due to context cancellation")
			return
		case resp, ok := <-r.service.Responses():
			if !ok {
				slog.Debug("InboundRouter response channel closed")
				return
			}
			r.handle(ctx, resp.From, resp.Body)
		}
	}
}

// handle runs one inbound message through the engine and delivers the result.
// Engine failures are logged and swallowed so one bad message cannot stop
// the router.
func (r *InboundRouter) handle(ctx context.Context, from, body string) {
	result, err := r.engine.HandleInbound(ctx, r.tenant, from, body, r.flow, time.Now())
	if err != nil {
		slog.Error("InboundRouter engine invocation failed", "error", err, "tenant", r.tenant, "from", from)
		return
	}
	slog.Debug("InboundRouter engine result", "tenant", r.tenant, "from", from, "action", result.Action)

	if result.Message == nil {
		return
	}
	if err := r.service.SendMessage(ctx, from, result.Message.Text); err != nil {
		slog.Error("InboundRouter failed to send outbound message", "error", err, "tenant", r.tenant, "to", from)
	}
}
