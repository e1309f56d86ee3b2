package compat

import (
	"context"

	"github.com/thushan/gateway/internal/core/domain"
)

// passthroughAdapter makes no changes. It is both the default tag and
// the fallback target when a non-fatal adapter fails to load (§4.1).
type passthroughAdapter struct{}

func (passthroughAdapter) Name() string { return "openai/passthrough" }

func (passthroughAdapter) Process(_ context.Context, _ *domain.RequestContext, request map[string]interface{}) (map[string]interface{}, error) {
	return request, nil
}

// lmStudioAdapter matches the request-parsing rules the teacher's
// LMStudioProfile advertises (GetRequestParsingRules): chat-completions
// path support, a bare "model" field, streaming supported. LM Studio's
// OpenAI-compatible server rejects an explicit empty tools array, so it
// is dropped rather than sent as [].
type lmStudioAdapter struct{}

func (lmStudioAdapter) Name() string { return "lmstudio" }

func (lmStudioAdapter) Process(_ context.Context, _ *domain.RequestContext, request map[string]interface{}) (map[string]interface{}, error) {
	if tools, ok := request["tools"].([]interface{}); ok && len(tools) == 0 {
		delete(request, "tools")
	}
	return request, nil
}

// ollamaAdapter targets Ollama's OpenAI-compatibility endpoint
// (/v1/chat/completions), grounded on the teacher's OllamaProfile paths.
// Ollama ignores top-level "stream" in favour of always returning a
// single JSON object when the caller sets stream:false, which the
// gateway already guarantees (§6), so the adapter makes no change to the
// request; an absent temperature is still filled with 0.7 by the server
// layer's canonical request body.
type ollamaAdapter struct{}

func (ollamaAdapter) Name() string { return "ollama" }

func (ollamaAdapter) Process(_ context.Context, _ *domain.RequestContext, request map[string]interface{}) (map[string]interface{}, error) {
	return request, nil
}

// vllmAdapter targets vLLM's OpenAI-compatible server. vLLM rejects
// unknown sampling fields it doesn't recognise when they arrive as null;
// strip any explicit nulls the transformer may have left behind.
type vllmAdapter struct{}

func (vllmAdapter) Name() string { return "vllm" }

func (vllmAdapter) Process(_ context.Context, _ *domain.RequestContext, request map[string]interface{}) (map[string]interface{}, error) {
	for k, v := range request {
		if v == nil {
			delete(request, k)
		}
	}
	return request, nil
}

// anthropicAdapter handles the case where the selected provider natively
// speaks Anthropic: the protocol layer never ran the Anthropic->OpenAI
// transform for this route (see processor's transformer-layer decision,
// §4.5.2), so there is nothing to adjust here beyond confirming custom
// headers required by Anthropic's API version header.
type anthropicAdapter struct{}

func (anthropicAdapter) Name() string { return "anthropic" }

func (anthropicAdapter) Process(_ context.Context, reqCtx *domain.RequestContext, request map[string]interface{}) (map[string]interface{}, error) {
	if reqCtx.ProtocolConfig.CustomHeaders == nil {
		reqCtx.ProtocolConfig.CustomHeaders = make(map[string]string)
	}
	reqCtx.ProtocolConfig.CustomHeaders["anthropic-version"] = "2023-06-01"
	return request, nil
}

// modelscopeAdapter, qwenAdapter and iflowAdapter are the three tags for
// which a load failure is fatal (§4.1): each cloud provider requires a
// distinct auth header shape that the gateway must get right rather
// than silently degrade to passthrough.
type modelscopeAdapter struct{}

func (modelscopeAdapter) Name() string { return "modelscope" }

func (modelscopeAdapter) Process(_ context.Context, reqCtx *domain.RequestContext, request map[string]interface{}) (map[string]interface{}, error) {
	setHeader(reqCtx, "X-ModelScope-Accept-Private", "true")
	return request, nil
}

type qwenAdapter struct{}

func (qwenAdapter) Name() string { return "qwen" }

func (qwenAdapter) Process(_ context.Context, reqCtx *domain.RequestContext, request map[string]interface{}) (map[string]interface{}, error) {
	setHeader(reqCtx, "X-DashScope-SSE", "disable")
	return request, nil
}

type iflowAdapter struct{}

func (iflowAdapter) Name() string { return "iflow" }

func (iflowAdapter) Process(_ context.Context, reqCtx *domain.RequestContext, request map[string]interface{}) (map[string]interface{}, error) {
	setHeader(reqCtx, "X-IFlow-Client", "gateway")
	return request, nil
}

func setHeader(reqCtx *domain.RequestContext, key, value string) {
	if reqCtx.ProtocolConfig.CustomHeaders == nil {
		reqCtx.ProtocolConfig.CustomHeaders = make(map[string]string)
	}
	reqCtx.ProtocolConfig.CustomHeaders[key] = value
}
