package transformer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAnthropicResponse_TextStop(t *testing.T) {
	body := map[string]interface{}{
		"id":    "chatcmpl-1",
		"model": "gpt-4",
		"choices": []interface{}{
			map[string]interface{}{
				"finish_reason": "stop",
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": "hello there",
				},
			},
		},
	}

	out, err := ToAnthropicResponse(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "message", out["type"])
	assert.Equal(t, "end_turn", out["stop_reason"])

	content := out["content"].([]interface{})
	require.Len(t, content, 1)
	assert.Equal(t, "text", content[0].(map[string]interface{})["type"])
	assert.Equal(t, "hello there", content[0].(map[string]interface{})["text"])
}

func TestToAnthropicResponse_ToolCallsForcesToolUseStopReason(t *testing.T) {
	body := map[string]interface{}{
		"model": "gpt-4",
		"choices": []interface{}{
			map[string]interface{}{
				// Upstream incorrectly reports "stop" despite tool_calls.
				"finish_reason": "stop",
				"message": map[string]interface{}{
					"role": "assistant",
					"tool_calls": []interface{}{
						map[string]interface{}{
							"id":   "call_abc",
							"type": "function",
							"function": map[string]interface{}{
								"name":      "get_weather",
								"arguments": `{"city":"NYC"}`,
							},
						},
					},
				},
			},
		},
	}

	out, err := ToAnthropicResponse(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "tool_use", out["stop_reason"])

	content := out["content"].([]interface{})
	require.Len(t, content, 1)
	block := content[0].(map[string]interface{})
	assert.Equal(t, "tool_use", block["type"])
	assert.Equal(t, "call_abc", block["id"])
	assert.Equal(t, "get_weather", block["name"])
	input := block["input"].(map[string]interface{})
	assert.Equal(t, "NYC", input["city"])
}

func TestToAnthropicResponse_FinishReasonMapping(t *testing.T) {
	cases := map[string]string{
		"stop":       "end_turn",
		"length":     "max_tokens",
		"tool_calls": "tool_use",
		"unknown":    "end_turn",
	}
	for finish, expected := range cases {
		body := map[string]interface{}{
			"model": "gpt-4",
			"choices": []interface{}{
				map[string]interface{}{
					"finish_reason": finish,
					"message":       map[string]interface{}{"role": "assistant", "content": "x"},
				},
			},
		}
		out, err := ToAnthropicResponse(context.Background(), body)
		require.NoError(t, err)
		assert.Equal(t, expected, out["stop_reason"], "finish_reason=%s", finish)
	}
}

func TestToAnthropicResponse_NoChoices(t *testing.T) {
	_, err := ToAnthropicResponse(context.Background(), map[string]interface{}{"model": "gpt-4"})
	assert.Error(t, err)
}

func TestRoundTrip_PreservesModelMessagesToolsParams(t *testing.T) {
	anthropicReq := map[string]interface{}{
		"model": "claude-3",
		"messages": []interface{}{
			map[string]interface{}{"role": "user", "content": "hi"},
		},
		"max_tokens":  float64(100),
		"temperature": float64(0.3),
		"tools": []interface{}{
			map[string]interface{}{
				"name":          "lookup",
				"description":   "looks things up",
				"input_schema":  map[string]interface{}{"type": "object"},
			},
		},
	}

	openaiReq, err := ToOpenAIRequest(context.Background(), anthropicReq)
	require.NoError(t, err)

	assert.Equal(t, anthropicReq["model"], openaiReq["model"])
	assert.Equal(t, anthropicReq["max_tokens"], openaiReq["max_tokens"])
	assert.Equal(t, anthropicReq["temperature"], openaiReq["temperature"])

	messages := openaiReq["messages"].([]interface{})
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].(map[string]interface{})["content"])

	tools := openaiReq["tools"].([]interface{})
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]interface{})["function"].(map[string]interface{})
	assert.Equal(t, "lookup", fn["name"])
	assert.Equal(t, "looks things up", fn["description"])
}
