package transformer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventTypes(events []SSEEvent) []string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Event)
	}
	return names
}

func TestStreamState_TextOnlySequence(t *testing.T) {
	s := NewStreamState("gpt-4")

	var all []SSEEvent
	all = append(all, s.Feed(map[string]interface{}{
		"id": "1",
		"choices": []interface{}{
			map[string]interface{}{"delta": map[string]interface{}{"content": "hel"}},
		},
	})...)
	all = append(all, s.Feed(map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{"delta": map[string]interface{}{"content": "lo"}},
		},
	})...)
	all = append(all, s.Feed(map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{"delta": map[string]interface{}{}, "finish_reason": "stop"},
		},
	})...)

	types := eventTypes(all)
	require.Equal(t, "message_start", types[0])
	assert.Contains(t, types, "content_block_start")
	assert.Contains(t, types, "content_block_delta")
	assert.Contains(t, types, "content_block_stop")
	assert.Equal(t, "message_delta", types[len(types)-2])
	assert.Equal(t, "message_stop", types[len(types)-1])
}

func TestStreamState_ToolCallForcesToolUseStopReason(t *testing.T) {
	s := NewStreamState("gpt-4")
	var all []SSEEvent
	all = append(all, s.Feed(map[string]interface{}{"id": "1"})...)
	all = append(all, s.Feed(map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{
				"delta": map[string]interface{}{
					"tool_calls": []interface{}{
						map[string]interface{}{
							"index": float64(0),
							"id":    "call_1",
							"function": map[string]interface{}{
								"name":      "get_weather",
								"arguments": `{"city"`,
							},
						},
					},
				},
			},
		},
	})...)
	all = append(all, s.Feed(map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{"delta": map[string]interface{}{}, "finish_reason": "stop"},
		},
	})...)

	var delta map[string]interface{}
	for _, e := range all {
		if e.Event == "message_delta" {
			delta = e.Data["delta"].(map[string]interface{})
		}
	}
	require.NotNil(t, delta)
	assert.Equal(t, "tool_use", delta["stop_reason"])
}

func TestEncode(t *testing.T) {
	out, err := Encode(SSEEvent{Event: "message_stop", Data: map[string]interface{}{"type": "message_stop"}})
	require.NoError(t, err)
	assert.Contains(t, out, "event: message_stop")
	assert.Contains(t, out, "\"type\":\"message_stop\"")
}
