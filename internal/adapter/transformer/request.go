package transformer

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToOpenAIRequest implements the Anthropic -> OpenAI request direction of
// §4.2: flattens "system" into a leading system message, converts
// Anthropic content blocks into OpenAI content/tool_calls/tool messages,
// converts tool schemas into {type:"function", function:{...}}, and
// preserves temperature and max_tokens.
func ToOpenAIRequest(_ context.Context, body map[string]interface{}) (map[string]interface{}, error) {
	if body == nil {
		return nil, fmt.Errorf("transformer: nil request body")
	}

	out := map[string]interface{}{
		"model": body["model"],
	}

	var messages []interface{}

	if system, ok := body["system"]; ok {
		messages = append(messages, systemMessage(system))
	}

	rawMessages, _ := body["messages"].([]interface{})
	for _, raw := range rawMessages {
		msg, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		messages = append(messages, convertMessage(msg)...)
	}
	out["messages"] = messages

	if tools, ok := body["tools"].([]interface{}); ok && len(tools) > 0 {
		out["tools"] = convertTools(tools)
	}

	if maxTokens, ok := body["max_tokens"]; ok {
		out["max_tokens"] = maxTokens
	}
	if temperature, ok := body["temperature"]; ok {
		out["temperature"] = temperature
	}
	if stream, ok := body["stream"]; ok {
		out["stream"] = stream
	}

	return out, nil
}

// systemMessage flattens an Anthropic "system" field (a string, or a list
// of text content blocks) into a single OpenAI system message.
func systemMessage(system interface{}) map[string]interface{} {
	switch v := system.(type) {
	case string:
		return map[string]interface{}{"role": "system", "content": v}
	case []interface{}:
		var text string
		for _, block := range v {
			if b, ok := block.(map[string]interface{}); ok {
				if s, ok := b["text"].(string); ok {
					text += s
				}
			}
		}
		return map[string]interface{}{"role": "system", "content": text}
	default:
		return map[string]interface{}{"role": "system", "content": fmt.Sprintf("%v", system)}
	}
}

// convertMessage converts one Anthropic message into one or more OpenAI
// messages. A single Anthropic "user" message carrying a tool_result block
// becomes an OpenAI "tool" message instead, and an "assistant" message
// with tool_use blocks carries them as tool_calls alongside any text.
func convertMessage(msg map[string]interface{}) []interface{} {
	role, _ := msg["role"].(string)

	content, isBlocks := msg["content"].([]interface{})
	if !isBlocks {
		// Plain string content passes through unchanged.
		return []interface{}{map[string]interface{}{"role": role, "content": msg["content"]}}
	}

	var toolResults []interface{}
	var textParts string
	var toolCalls []interface{}

	for _, raw := range content {
		block, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		switch block["type"] {
		case "text":
			if s, ok := block["text"].(string); ok {
				textParts += s
			}
		case "tool_use":
			toolCalls = append(toolCalls, map[string]interface{}{
				"id":   block["id"],
				"type": "function",
				"function": map[string]interface{}{
					"name":      block["name"],
					"arguments": encodeArguments(block["input"]),
				},
			})
		case "tool_result":
			toolResults = append(toolResults, map[string]interface{}{
				"role":         "tool",
				"tool_call_id": block["tool_use_id"],
				"content":      toolResultText(block["content"]),
			})
		}
	}

	var out []interface{}
	if len(toolResults) > 0 {
		out = append(out, toolResults...)
		if textParts != "" {
			out = append(out, map[string]interface{}{"role": role, "content": textParts})
		}
		return out
	}

	entry := map[string]interface{}{"role": role, "content": textParts}
	if len(toolCalls) > 0 {
		entry["tool_calls"] = toolCalls
		if textParts == "" {
			entry["content"] = nil
		}
	}
	return []interface{}{entry}
}

func toolResultText(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case []interface{}:
		var text string
		for _, raw := range v {
			if block, ok := raw.(map[string]interface{}); ok {
				if s, ok := block["text"].(string); ok {
					text += s
				}
			}
		}
		return text
	default:
		return fmt.Sprintf("%v", content)
	}
}

func encodeArguments(input interface{}) string {
	if input == nil {
		return "{}"
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

// convertTools converts Anthropic tool schemas ({name, description,
// input_schema}) into OpenAI's {type:"function", function:{...}} shape.
func convertTools(tools []interface{}) []interface{} {
	out := make([]interface{}, 0, len(tools))
	for _, raw := range tools {
		tool, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        tool["name"],
				"description": tool["description"],
				"parameters":  tool["input_schema"],
			},
		})
	}
	return out
}
