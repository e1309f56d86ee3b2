// Package ports declares the interfaces the gateway's components are
// wired through. Per §9's re-architecture note, modules are a closed set
// of interface implementations registered at build time, not dynamic
// string-keyed dispatch, and cross-component notification is an explicit
// method-call interface rather than an event bus.
package ports

import (
	"context"

	"github.com/thushan/gateway/internal/core/domain"
)

// Module is the single interface the four pipeline module kinds
// (transformer, protocol, serverCompatibility, server) implement (§4.4):
// interchangeable variants of one process/lifecycle contract, no
// inheritance.
type Module interface {
	Name() string
	Process(ctx context.Context, reqCtx *domain.RequestContext, input map[string]interface{}) (map[string]interface{}, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Pipeline is the C4 contract: a pre-assembled, immutable chain of four
// module instances sharing one credential.
type Pipeline interface {
	ID() string
	Execute(ctx context.Context, reqCtx *domain.RequestContext, input map[string]interface{}) (map[string]interface{}, error)
	Handshake(ctx context.Context) error
	HealthCheck(ctx context.Context) bool
	Stop(ctx context.Context) error
	Descriptor() *domain.Pipeline

	// Layers exposes the four module instances in execution order
	// (transformer, protocol, serverCompatibility, server) so the request
	// processor (C5) can run them individually and apply its inter-layer
	// format validation (§4.5) instead of delegating wholesale to Execute.
	Layers() [4]Module
}

// Adapter is the C1 contract: a per-provider request adjuster applied at
// the ServerCompatibility layer.
type Adapter interface {
	Name() string
	Process(ctx context.Context, reqCtx *domain.RequestContext, request map[string]interface{}) (map[string]interface{}, error)
}

// CompatRegistry resolves a compatibility tag to a cached Adapter (§4.1).
type CompatRegistry interface {
	Resolve(ctx context.Context, tag string, options map[string]interface{}) (Adapter, error)
}

// Transformer is the C2 contract: a bidirectional dialect converter.
type Transformer interface {
	Name() string
	TransformRequest(ctx context.Context, body map[string]interface{}) (map[string]interface{}, error)
	TransformResponse(ctx context.Context, body map[string]interface{}) (map[string]interface{}, error)
}

// SchedulerObserver receives the scheduler's lifecycle notifications
// (§6 Failure/event emission), replacing the source's event-emitter
// coupling with an explicit, visible dependency.
type SchedulerObserver interface {
	OnPipelineRegistered(pipelineID, virtualModel string)
	OnPipelineUnregistered(pipelineID string)
	OnPipelineBlocked(pipelineID string, reason string)
	OnPipelineReactivated(pipelineID string)
	OnAuthenticationRequired(pipelineID string)
	OnDestroyRequested(pipelineID string)
	OnRouteResult(pipelineID string, success bool)
}

// Scheduler is the C6 contract consulted by the Router layer.
type Scheduler interface {
	Register(p Pipeline, virtualModels []string)
	Select(ctx context.Context, virtualModel string) (Pipeline, error)
	Report(pipelineID string, class domain.ErrorClass, latency int64)
	Blacklisted(pipelineID string) bool
}

// PriorityAwareScheduler is an optional extension a Scheduler implementation
// may satisfy to honour a per-request priority hint (§4.6's priority-based
// strategy). The Router layer probes for it with a type assertion and falls
// back to plain Select when absent, so test doubles implementing the bare
// Scheduler contract are unaffected.
type PriorityAwareScheduler interface {
	SelectPriority(ctx context.Context, virtualModel string, priority domain.RequestPriority) (Pipeline, error)
}
