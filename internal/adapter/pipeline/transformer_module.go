package pipeline

import (
	"context"

	"github.com/thushan/gateway/internal/core/domain"
	"github.com/thushan/gateway/internal/core/ports"
)

// transformerModule adapts a ports.Transformer into the single ports.Module
// interface the pipeline chain threads requests through (§4.4: the four
// modules are interchangeable variants of one process/lifecycle contract).
type transformerModule struct {
	transformer ports.Transformer
}

func newTransformerModule(t ports.Transformer) *transformerModule {
	return &transformerModule{transformer: t}
}

func (m *transformerModule) Name() string { return m.transformer.Name() }

func (m *transformerModule) Process(ctx context.Context, _ *domain.RequestContext, input map[string]interface{}) (map[string]interface{}, error) {
	out, err := m.transformer.TransformRequest(ctx, input)
	if err != nil {
		return nil, &domain.TransformerError{Name: m.transformer.Name(), Err: err}
	}
	return out, nil
}

func (m *transformerModule) Start(context.Context) error { return nil }
func (m *transformerModule) Stop(context.Context) error  { return nil }
