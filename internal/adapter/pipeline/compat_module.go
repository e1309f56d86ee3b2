package pipeline

import (
	"context"

	"github.com/thushan/gateway/internal/adapter/compat"
	"github.com/thushan/gateway/internal/core/domain"
	"github.com/thushan/gateway/internal/core/ports"
)

// compatModule is the ServerCompatibility layer's module (§4.5.4): it
// resolves a compatibility tag, obtains the cached adapter from the
// registry, and runs it. Mutations the adapter makes to
// reqCtx.ProtocolConfig (custom headers, overridden endpoints) are already
// visible to the caller since RequestContext is shared by reference; no
// explicit copy-back step is needed beyond the adapter writing through
// reqCtx directly, which is the "sole channel" §9 specifies.
type compatModule struct {
	registry     ports.CompatRegistry
	tag          string
	options      map[string]interface{}
	providerName string
	endpoint     string
}

func newCompatModule(registry ports.CompatRegistry, desc Descriptor, options map[string]interface{}) *compatModule {
	tag := compat.DeriveTag(desc.ServerCompatibilityName, "", desc.Provider, desc.Endpoint)
	return &compatModule{
		registry:     registry,
		tag:          tag,
		options:      options,
		providerName: desc.Provider,
		endpoint:     desc.Endpoint,
	}
}

func (m *compatModule) Name() string { return "serverCompatibility:" + m.tag }

func (m *compatModule) Process(ctx context.Context, reqCtx *domain.RequestContext, input map[string]interface{}) (map[string]interface{}, error) {
	adapter, err := m.registry.Resolve(ctx, m.tag, m.options)
	if err != nil {
		return nil, err
	}
	out, err := adapter.Process(ctx, reqCtx, input)
	if err != nil {
		return nil, err
	}
	delete(out, "__internal")
	return out, nil
}

func (m *compatModule) Start(context.Context) error { return nil }
func (m *compatModule) Stop(context.Context) error  { return nil }
