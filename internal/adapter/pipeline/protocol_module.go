package pipeline

import (
	"context"
	"time"

	"github.com/thushan/gateway/internal/core/constants"
	"github.com/thushan/gateway/internal/core/domain"
)

// protocolModule is the Protocol layer's module (§4.5.3): it resolves the
// final endpoint, API key and timeout onto the request context, and
// rewrites the request's model field to the provider's actual target
// model (supporting cross-provider model rename). It never mutates
// non-standard fields on the request body itself.
type protocolModule struct {
	descriptor Descriptor
}

func newProtocolModule(desc Descriptor) *protocolModule {
	return &protocolModule{descriptor: desc}
}

func (m *protocolModule) Name() string { return "protocol:" + string(m.descriptor.Protocol) }

func (m *protocolModule) Process(_ context.Context, reqCtx *domain.RequestContext, input map[string]interface{}) (map[string]interface{}, error) {
	reqCtx.ProtocolConfig.Endpoint = m.descriptor.ServerEndpoint
	reqCtx.ProtocolConfig.APIKey = m.descriptor.APIKey
	reqCtx.ProtocolConfig.Timeout = m.resolveTimeout(reqCtx)
	if reqCtx.ProtocolConfig.CustomHeaders == nil && len(m.descriptor.CustomHeaders) > 0 {
		reqCtx.ProtocolConfig.CustomHeaders = make(map[string]string, len(m.descriptor.CustomHeaders))
	}
	for k, v := range m.descriptor.CustomHeaders {
		reqCtx.ProtocolConfig.CustomHeaders[k] = v
	}

	out := make(map[string]interface{}, len(input))
	for k, v := range input {
		out[k] = v
	}
	out["model"] = m.descriptor.TargetModel
	return out, nil
}

// resolveTimeout applies §5's special timeouts: 200s for longContext,
// otherwise the provider's configured timeout or the 300s default.
func (m *protocolModule) resolveTimeout(reqCtx *domain.RequestContext) time.Duration {
	if reqCtx.RoutingDecision.VirtualModel == "longContext" {
		return constants.LongContextTimeout
	}
	if m.descriptor.Timeout > 0 {
		return time.Duration(m.descriptor.Timeout) * time.Second
	}
	return constants.DefaultRequestTimeout
}

func (m *protocolModule) Start(context.Context) error { return nil }
func (m *protocolModule) Stop(context.Context) error  { return nil }
