// Package processor implements C5, the layered request processor: the
// deterministic Router -> Transformer -> Protocol -> ServerCompatibility
// -> Server chain (plus the optional response retransform), with format
// validation enforced between layers (§4.5).
package processor

import (
	"context"

	"github.com/thushan/gateway/internal/core/domain"
	"github.com/thushan/gateway/internal/core/ports"
)

// route runs the Router layer (§4.5.1): computes the virtual model,
// selects a pipeline via the scheduler, and attaches the routing decision
// to the request context.
func (p *Processor) route(ctx context.Context, reqCtx *domain.RequestContext, requestedModel string, hints domain.ContentHints) (ports.Pipeline, error) {
	virtualModel, reasoning := p.mapper.Resolve(requestedModel, hints)

	selected, err := p.selectPipeline(ctx, virtualModel, hints.Priority)
	if err != nil {
		reqCtx.RoutingDecision = domain.RoutingDecision{
			OriginalModel: requestedModel,
			VirtualModel:  virtualModel,
			Reasoning:     reasoning,
		}
		return nil, err
	}

	reqCtx.RoutingDecision = domain.RoutingDecision{
		OriginalModel:    requestedModel,
		VirtualModel:     virtualModel,
		SelectedPipeline: selected.ID(),
		Reasoning:        reasoning,
		ProviderType:     domain.Protocol(selected.Descriptor().ProtocolName),
	}
	return selected, nil
}

// selectPipeline probes the scheduler for the optional priority-aware
// extension (§4.6) and falls back to plain Select when the configured
// Scheduler implementation (or a test double) doesn't support it.
func (p *Processor) selectPipeline(ctx context.Context, virtualModel string, priority domain.RequestPriority) (ports.Pipeline, error) {
	if aware, ok := p.scheduler.(ports.PriorityAwareScheduler); ok {
		return aware.SelectPriority(ctx, virtualModel, priority)
	}
	return p.scheduler.Select(ctx, virtualModel)
}

func ensure(cond bool, layer, reason string) error {
	if cond {
		return nil
	}
	return &domain.FormatViolationError{Layer: layer, Reason: reason}
}
