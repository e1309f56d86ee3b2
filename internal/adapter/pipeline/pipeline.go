package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"github.com/thushan/gateway/internal/adapter/transformer"
	"github.com/thushan/gateway/internal/core/domain"
	"github.com/thushan/gateway/internal/core/ports"
)

// Pipeline is the C4 object: a pre-assembled, immutable chain of four
// module instances sharing one credential (§4.4). Once built its fields
// never change; only the embedded domain.Pipeline's status/counters are
// mutable.
type Pipeline struct {
	descriptor *domain.Pipeline

	transformerModule ports.Module
	protocolModule     ports.Module
	compatModule       ports.Module
	serverModule       ports.Module

	probe func(ctx context.Context) error
}

// New assembles a Pipeline from a table Descriptor. probe is the optional
// handshake liveness check (§9 Open Question: the exact handshake probe
// per provider is undefined; a nil probe marks the pipeline live on the
// first call with no network round trip).
func New(desc Descriptor, registry ports.CompatRegistry, client HTTPDoer, probe func(ctx context.Context) error) *Pipeline {
	d := domain.NewPipeline(desc.Provider, desc.TargetModel, desc.APIKey, desc.APIKeyIndex)
	d.VirtualModels = append([]string(nil), desc.VirtualModels...)
	d.Endpoint = desc.Endpoint
	d.TransformerName = desc.TransformerName
	d.ProtocolName = desc.ProtocolName
	d.ServerCompatibilityName = desc.ServerCompatibilityName
	d.ServerEndpoint = desc.ServerEndpoint
	d.Priority = desc.Priority

	if client == nil {
		client = http.DefaultClient
	}

	return &Pipeline{
		descriptor:        d,
		transformerModule: newTransformerModule(transformer.ForProtocol(desc.Protocol)),
		protocolModule:    newProtocolModule(desc),
		compatModule:      newCompatModule(registry, desc, nil),
		serverModule:      newServerModule(client, desc.MaxRetries),
		probe:             probe,
	}
}

func (p *Pipeline) ID() string { return p.descriptor.PipelineID }

// Layers implements ports.Pipeline's exposure of the four module instances
// in execution order, for the request processor's layer-by-layer run.
func (p *Pipeline) Layers() [4]ports.Module {
	return [4]ports.Module{p.transformerModule, p.protocolModule, p.compatModule, p.serverModule}
}

func (p *Pipeline) Descriptor() *domain.Pipeline { return p.descriptor }

// Execute implements §4.4: invokes transformer -> protocol ->
// serverCompatibility -> server in order, threading each module's output
// into the next. No retries at this level (retries belong to the server
// module, §4.5.5).
func (p *Pipeline) Execute(ctx context.Context, reqCtx *domain.RequestContext, input map[string]interface{}) (map[string]interface{}, error) {
	reqCtx.Metadata.Store("pipelineId", p.descriptor.PipelineID)
	p.descriptor.IncrementActive()
	p.descriptor.IncrementTotal()
	defer p.descriptor.DecrementActive()

	modules := p.Layers()
	current := input
	for _, module := range modules {
		out, err := module.Process(ctx, reqCtx, current)
		if err != nil {
			return nil, err
		}
		current = out
	}
	return current, nil
}

// Handshake implements §4.4: brings the chain live. Validates connectivity
// to the upstream via the optional probe; on failure marks the pipeline
// "error" and propagates a *domain.HandshakeError.
func (p *Pipeline) Handshake(ctx context.Context) error {
	if p.probe != nil {
		if err := p.probe(ctx); err != nil {
			p.descriptor.SetStatus(domain.PipelineError)
			return &domain.HandshakeError{PipelineID: p.descriptor.PipelineID, Err: err}
		}
	}
	p.descriptor.MarkHandshaked()
	return nil
}

// HealthCheck is cheaper than Handshake (§4.4): it re-runs the same probe
// but degrades to a boolean instead of a typed error, matching the
// scheduler's period health tick contract (§4.6).
func (p *Pipeline) HealthCheck(ctx context.Context) bool {
	if p.probe == nil {
		return p.descriptor.Status() != domain.PipelineStopped
	}
	return p.probe(ctx) == nil
}

// Stop is idempotent: releases adapter handles and marks the pipeline
// stopped (§4.4).
func (p *Pipeline) Stop(ctx context.Context) error {
	if p.descriptor.Status() == domain.PipelineStopped {
		return nil
	}
	layers := p.Layers()
	for _, module := range layers {
		if err := module.Stop(ctx); err != nil {
			return fmt.Errorf("pipeline %s: stopping %s: %w", p.descriptor.PipelineID, module.Name(), err)
		}
	}
	p.descriptor.SetStatus(domain.PipelineStopped)
	return nil
}
