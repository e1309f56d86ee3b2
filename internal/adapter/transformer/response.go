package transformer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// finishReasonToStopReason implements §4.2's finish_reason -> stop_reason
// map.
var finishReasonToStopReason = map[string]string{
	"stop":       "end_turn",
	"length":     "max_tokens",
	"tool_calls": "tool_use",
}

// ToAnthropicResponse implements the OpenAI -> Anthropic response
// direction of §4.2: converts choices[0].message into Anthropic
// content[], maps finish_reason, and forces stop_reason:"tool_use" when
// the response carries tool calls but the upstream reported "stop".
func ToAnthropicResponse(_ context.Context, body map[string]interface{}) (map[string]interface{}, error) {
	if body == nil {
		return nil, fmt.Errorf("transformer: nil response body")
	}

	choices, _ := body["choices"].([]interface{})
	if len(choices) == 0 {
		return nil, fmt.Errorf("transformer: response has no choices")
	}
	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("transformer: choices[0] is not an object")
	}
	message, _ := choice["message"].(map[string]interface{})

	var content []interface{}
	if text, ok := message["content"].(string); ok && text != "" {
		content = append(content, map[string]interface{}{"type": "text", "text": text})
	}

	toolCalls, _ := message["tool_calls"].([]interface{})
	for _, raw := range toolCalls {
		call, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		fn, _ := call["function"].(map[string]interface{})
		id, _ := call["id"].(string)
		if id == "" {
			id = "toolu_" + uuid.NewString()
		}
		content = append(content, map[string]interface{}{
			"type":  "tool_use",
			"id":    id,
			"name":  fn["name"],
			"input": decodeArguments(fn["arguments"]),
		})
	}

	finishReason, _ := choice["finish_reason"].(string)
	stopReason, ok := finishReasonToStopReason[finishReason]
	if !ok {
		stopReason = "end_turn"
	}
	if len(toolCalls) > 0 && stopReason != "tool_use" {
		stopReason = "tool_use"
	}

	out := map[string]interface{}{
		"type":        "message",
		"role":        "assistant",
		"model":       body["model"],
		"content":     content,
		"stop_reason": stopReason,
	}
	if id, ok := body["id"]; ok {
		out["id"] = id
	}
	if usage, ok := body["usage"]; ok {
		out["usage"] = usage
	}
	return out, nil
}

func decodeArguments(raw interface{}) interface{} {
	s, ok := raw.(string)
	if !ok || s == "" {
		return map[string]interface{}{}
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return map[string]interface{}{}
	}
	return parsed
}
