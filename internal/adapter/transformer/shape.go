// Package transformer is the Transformer Set (C2): bidirectional dialect
// converters between the Anthropic Messages shape and the OpenAI
// chat-completions shape, plus the inter-layer shape predicates the
// request processor (C5) uses for its post-condition checks (§4.2, §4.5).
package transformer

// IsOpenAIShaped implements §4.2's validation predicate: an object is
// "OpenAI-shaped" iff it has a model field and a messages array and lacks
// Anthropic-specific markers (type:"message", a top-level stop_reason, a
// top-level content array).
func IsOpenAIShaped(body map[string]interface{}) bool {
	if body == nil {
		return false
	}
	if _, ok := body["model"]; !ok {
		return false
	}
	if _, ok := body["messages"].([]interface{}); !ok {
		return false
	}
	return !IsAnthropicMarked(body)
}

// IsAnthropicMarked reports whether body carries any of the Anthropic-
// specific top-level markers the predicate excludes.
func IsAnthropicMarked(body map[string]interface{}) bool {
	if t, ok := body["type"].(string); ok && t == "message" {
		return true
	}
	if _, ok := body["stop_reason"]; ok {
		return true
	}
	if _, ok := body["content"].([]interface{}); ok {
		return true
	}
	return false
}
