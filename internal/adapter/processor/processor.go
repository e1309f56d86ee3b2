package processor

import (
	"context"
	"time"

	"github.com/thushan/gateway/internal/adapter/transformer"
	"github.com/thushan/gateway/internal/core/domain"
	"github.com/thushan/gateway/internal/core/ports"
	"github.com/thushan/gateway/internal/logger"
)

// Processor is the single layered request processor (§9: the source's two
// near-duplicate PipelineRequestProcessor implementations collapse into
// this one canonical type, taking the superset behaviour — inter-layer
// validation, long-request handling, tool-call fix-up, JSON salvage — as
// canonical).
type Processor struct {
	mapper    *domain.VirtualModelMapper
	scheduler ports.Scheduler
	log       *logger.StyledLogger
}

func New(mapper *domain.VirtualModelMapper, scheduler ports.Scheduler, log *logger.StyledLogger) *Processor {
	return &Processor{mapper: mapper, scheduler: scheduler, log: log}
}

// ClientDialect names the wire dialect the inbound request arrived in, so
// the processor knows whether to run the optional response retransform
// (§4.5.6).
type ClientDialect int

const (
	DialectAnthropic ClientDialect = iota
	DialectOpenAI
)

// Handle runs the full four/six-layer pipeline runtime (§4.5) for one
// inbound request: Router -> Transformer -> Protocol -> ServerCompatibility
// -> Server, then an optional response retransform back to the client's
// dialect. Every layer's post-condition check is enforced before handing
// off to the next; a violation is fatal for the request (§7).
func (p *Processor) Handle(ctx context.Context, requestedModel string, hints domain.ContentHints, dialect ClientDialect, body map[string]interface{}) (map[string]interface{}, *domain.RequestContext, error) {
	reqCtx := domain.NewRequestContext()

	routerStart := time.Now()
	selected, err := p.route(ctx, reqCtx, requestedModel, hints)
	if err != nil {
		reqCtx.RecordError(err)
		return nil, reqCtx, err
	}
	reqCtx.RecordLayer("router", routerStart, reqCtx.RoutingDecision.SelectedPipeline)

	layers := selected.Layers()
	current := body
	executionStart := time.Now()

	// Transformer layer (§4.5.2).
	transformStart := time.Now()
	current, err = layers[0].Process(ctx, reqCtx, current)
	if err != nil {
		return p.fail(reqCtx, selected, executionStart, err)
	}
	if err := ensure(transformer.IsOpenAIShaped(current), "transformer", "output is not OpenAI-shaped"); err != nil {
		return p.fail(reqCtx, selected, executionStart, err)
	}
	reqCtx.RecordLayer("transformer", transformStart, layers[0].Name())

	// Protocol layer (§4.5.3).
	protocolStart := time.Now()
	current, err = layers[1].Process(ctx, reqCtx, current)
	if err != nil {
		return p.fail(reqCtx, selected, executionStart, err)
	}
	if err := ensure(!transformer.IsAnthropicMarked(current), "protocol", "output is Anthropic-shaped"); err != nil {
		return p.fail(reqCtx, selected, executionStart, err)
	}
	reqCtx.RecordLayer("protocol", protocolStart, "")

	// ServerCompatibility layer (§4.5.4).
	compatStart := time.Now()
	current, err = layers[2].Process(ctx, reqCtx, current)
	if err != nil {
		return p.fail(reqCtx, selected, executionStart, err)
	}
	if err := ensure(transformer.IsOpenAIShaped(current), "serverCompatibility", "output is not OpenAI-shaped"); err != nil {
		return p.fail(reqCtx, selected, executionStart, err)
	}
	reqCtx.RecordLayer("serverCompatibility", compatStart, layers[2].Name())

	// Server layer (§4.5.5).
	serverStart := time.Now()
	current, err = layers[3].Process(ctx, reqCtx, current)
	if err != nil {
		return p.fail(reqCtx, selected, executionStart, err)
	}
	reqCtx.RecordLayer("server", serverStart, "")

	p.scheduler.Report(selected.ID(), domain.ErrorClassUnknown, time.Since(executionStart).Milliseconds())

	// Response retransform (§4.5.6), optional.
	if dialect == DialectAnthropic && selected.Descriptor().ProtocolName == string(domain.ProtocolOpenAI) {
		retransformStart := time.Now()
		retransformed, err := transformer.ToAnthropicResponse(ctx, current)
		if err != nil {
			reqCtx.RecordError(&domain.TransformerError{Name: "anthropic-retransform", Err: err})
			return nil, reqCtx, err
		}
		current = retransformed
		reqCtx.RecordLayer("retransform", retransformStart, "anthropic")
	}

	return current, reqCtx, nil
}

// fail records a layer error on the context, reports it to the scheduler
// (a *domain.ServerError under its own class, a format violation not at
// all, any other error as unrecoverable), and re-raises (§7:
// propagation policy — no layer silently falls back to a previous input).
func (p *Processor) fail(reqCtx *domain.RequestContext, selected ports.Pipeline, executionStart time.Time, err error) (map[string]interface{}, *domain.RequestContext, error) {
	reqCtx.RecordError(err)

	class := domain.ErrorClassUnrecoverable
	if serverErr, ok := err.(*domain.ServerError); ok {
		class = serverErr.Class
	} else if _, ok := err.(*domain.FormatViolationError); ok {
		class = domain.ErrorClassUnknown
	}

	if class != domain.ErrorClassUnknown {
		p.scheduler.Report(selected.ID(), class, time.Since(executionStart).Milliseconds())
	}

	if p.log != nil {
		p.log.ErrorWithPipeline("request failed", selected.ID(), "error", err)
	}
	return nil, reqCtx, err
}
