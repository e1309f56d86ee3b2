package compat

import (
	"strings"

	"github.com/thushan/gateway/internal/core/constants"
)

// DeriveTag implements §4.1's tag derivation order: explicit
// serverCompatibility.use on the provider descriptor, then the routing
// decision's own serverCompatibility, then a provider-name mapping, then
// endpoint inspection, finally passthrough.
func DeriveTag(providerUse, routingCompat, providerName, endpoint string) string {
	if providerUse != "" {
		return providerUse
	}
	if routingCompat != "" {
		return routingCompat
	}
	if tag, ok := byProviderName(providerName); ok {
		return tag
	}
	if tag, ok := byEndpoint(endpoint); ok {
		return tag
	}
	return constants.CompatPassthrough
}

var providerNameTags = map[string]string{
	"lmstudio":   constants.CompatLMStudio,
	"lm-studio":  constants.CompatLMStudio,
	"ollama":     constants.CompatOllama,
	"vllm":       constants.CompatVLLM,
	"anthropic":  constants.CompatAnthropic,
	"modelscope": constants.CompatModelScope,
	"qwen":       constants.CompatQwen,
	"iflow":      constants.CompatIFlow,
}

func byProviderName(name string) (string, bool) {
	tag, ok := providerNameTags[strings.ToLower(strings.TrimSpace(name))]
	return tag, ok
}

// endpointHints is ordered: first matching substring wins, mirroring the
// teacher's detection-hint style matching against a host string.
var endpointHints = []struct {
	substr string
	tag    string
}{
	{"localhost:1234", constants.CompatLMStudio},
	{"localhost:11434", constants.CompatOllama},
	{"modelscope.cn", constants.CompatModelScope},
	{"dashscope.aliyuncs.com", constants.CompatQwen},
	{"iflow.cn", constants.CompatIFlow},
}

func byEndpoint(endpoint string) (string, bool) {
	lower := strings.ToLower(endpoint)
	for _, hint := range endpointHints {
		if strings.Contains(lower, hint.substr) {
			return hint.tag, true
		}
	}
	return "", false
}
