package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/gateway/internal/adapter/compat"
	"github.com/thushan/gateway/internal/core/domain"
)

func testDescriptor() Descriptor {
	return Descriptor{
		PipelineID:     "p1-local-model-key0",
		Provider:       "p1",
		TargetModel:    "local-model",
		APIKey:         "k1",
		Endpoint:       "http://localhost:1234/v1",
		Protocol:       domain.ProtocolOpenAI,
		ServerEndpoint: "http://localhost:1234/v1/chat/completions",
		MaxRetries:     1,
	}
}

func TestPipeline_ExecuteRunsFourLayersInOrder(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		jsonResponse(200, `{"choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`),
	}}
	registry := compat.NewRegistry(nil)
	p := New(testDescriptor(), registry, doer, nil)
	require.NoError(t, p.Handshake(context.Background()))

	rc := domain.NewRequestContext()
	rc.RoutingDecision.VirtualModel = "default"
	out, err := p.Execute(context.Background(), rc, map[string]interface{}{
		"model":    "claude-3",
		"messages": []interface{}{map[string]interface{}{"role": "user", "content": "hi"}},
	})
	require.NoError(t, err)
	assert.NotNil(t, out["choices"])
	assert.Equal(t, domain.PipelineRuntime, p.Descriptor().Status())
}

func TestPipeline_HandshakeFailurePropagates(t *testing.T) {
	p := New(testDescriptor(), compat.NewRegistry(nil), &fakeDoer{}, func(ctx context.Context) error {
		return fmt.Errorf("connection refused")
	})
	err := p.Handshake(context.Background())
	require.Error(t, err)
	var handshakeErr *domain.HandshakeError
	require.ErrorAs(t, err, &handshakeErr)
	assert.Equal(t, domain.PipelineError, p.Descriptor().Status())
}

func TestPipeline_StopIsIdempotent(t *testing.T) {
	p := New(testDescriptor(), compat.NewRegistry(nil), &fakeDoer{}, nil)
	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, domain.PipelineStopped, p.Descriptor().Status())
}

func TestPipeline_HealthCheckWithoutProbe(t *testing.T) {
	p := New(testDescriptor(), compat.NewRegistry(nil), &fakeDoer{}, nil)
	assert.True(t, p.HealthCheck(context.Background()))
	require.NoError(t, p.Stop(context.Background()))
	assert.False(t, p.HealthCheck(context.Background()))
}
