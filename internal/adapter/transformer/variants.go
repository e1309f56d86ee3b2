package transformer

import (
	"context"

	"github.com/thushan/gateway/internal/core/domain"
	"github.com/thushan/gateway/internal/core/ports"
)

// AnthropicToOpenAI is the ports.Transformer variant selected when the
// provider's protocol is "openai" (§4.5.2): the Transformer layer
// translates the client's Anthropic-dialect request into OpenAI shape,
// and (optionally, §4.5.6) translates the OpenAI response back.
type AnthropicToOpenAI struct{}

func (AnthropicToOpenAI) Name() string { return "anthropic-to-openai" }

func (AnthropicToOpenAI) TransformRequest(ctx context.Context, body map[string]interface{}) (map[string]interface{}, error) {
	return ToOpenAIRequest(ctx, body)
}

func (AnthropicToOpenAI) TransformResponse(ctx context.Context, body map[string]interface{}) (map[string]interface{}, error) {
	return ToAnthropicResponse(ctx, body)
}

// Passthrough is selected when the provider's protocol is "anthropic": the
// client and the upstream speak the same dialect, so no translation runs
// (§4.5.2: "anthropic -> passthrough").
type Passthrough struct{}

func (Passthrough) Name() string { return "passthrough" }

func (Passthrough) TransformRequest(_ context.Context, body map[string]interface{}) (map[string]interface{}, error) {
	return body, nil
}

func (Passthrough) TransformResponse(_ context.Context, body map[string]interface{}) (map[string]interface{}, error) {
	return body, nil
}

// ForProtocol resolves the transformer variant from the selected
// provider's protocol, per §4.5.2's decision rule: openai drives the
// Anthropic->OpenAI translation, anthropic is a passthrough.
func ForProtocol(protocol domain.Protocol) ports.Transformer {
	if protocol == domain.ProtocolAnthropic {
		return Passthrough{}
	}
	return AnthropicToOpenAI{}
}
