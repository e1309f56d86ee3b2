package transformer

import (
	"encoding/json"
	"fmt"
)

// SSEEvent is one emitted Anthropic-dialect streaming event (§4.2).
type SSEEvent struct {
	Event string
	Data  map[string]interface{}
}

// StreamState accumulates OpenAI streaming chunks and emits the Anthropic
// SSE event sequence: message_start -> (content_block_start ->
// content_block_delta* -> content_block_stop)+ -> message_delta ->
// message_stop. Text and each tool call occupy separate content blocks at
// distinct indices; empty or null events are never emitted.
type StreamState struct {
	started     bool
	textIndex   int
	textOpen    bool
	toolIndexes map[int]int // OpenAI tool_calls[] index -> Anthropic block index
	toolOpen    map[int]bool
	nextIndex   int
	model       string
	finalized   bool
}

// NewStreamState starts a fresh accumulator for one streamed response.
func NewStreamState(model string) *StreamState {
	return &StreamState{
		toolIndexes: make(map[int]int),
		toolOpen:    make(map[int]bool),
		model:       model,
	}
}

// Feed consumes one OpenAI streaming chunk (a parsed "data: {...}" SSE
// line from the upstream) and returns zero or more Anthropic SSE events
// to emit to the client.
func (s *StreamState) Feed(chunk map[string]interface{}) []SSEEvent {
	var events []SSEEvent

	if !s.started {
		s.started = true
		events = append(events, SSEEvent{
			Event: "message_start",
			Data: map[string]interface{}{
				"type": "message_start",
				"message": map[string]interface{}{
					"id":      chunk["id"],
					"type":    "message",
					"role":    "assistant",
					"model":   s.model,
					"content": []interface{}{},
				},
			},
		})
	}

	choices, _ := chunk["choices"].([]interface{})
	if len(choices) == 0 {
		return events
	}
	choice, _ := choices[0].(map[string]interface{})
	delta, _ := choice["delta"].(map[string]interface{})

	if text, ok := delta["content"].(string); ok && text != "" {
		if !s.textOpen {
			s.textOpen = true
			events = append(events, SSEEvent{
				Event: "content_block_start",
				Data: map[string]interface{}{
					"type":  "content_block_start",
					"index": s.textIndex,
					"content_block": map[string]interface{}{
						"type": "text",
						"text": "",
					},
				},
			})
		}
		events = append(events, SSEEvent{
			Event: "content_block_delta",
			Data: map[string]interface{}{
				"type":  "content_block_delta",
				"index": s.textIndex,
				"delta": map[string]interface{}{"type": "text_delta", "text": text},
			},
		})
	}

	if toolCalls, ok := delta["tool_calls"].([]interface{}); ok {
		for _, raw := range toolCalls {
			call, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			events = append(events, s.feedToolCallDelta(call)...)
		}
	}

	finishReason, _ := choice["finish_reason"].(string)
	if finishReason != "" && !s.finalized {
		events = append(events, s.finalize(finishReason)...)
	}

	return events
}

func (s *StreamState) feedToolCallDelta(call map[string]interface{}) []SSEEvent {
	var events []SSEEvent

	openAIIndex := 0
	if idx, ok := call["index"].(float64); ok {
		openAIIndex = int(idx)
	}

	blockIndex, known := s.toolIndexes[openAIIndex]
	if !known {
		s.nextIndex++
		blockIndex = s.textIndex + s.nextIndex
		s.toolIndexes[openAIIndex] = blockIndex

		fn, _ := call["function"].(map[string]interface{})
		events = append(events, SSEEvent{
			Event: "content_block_start",
			Data: map[string]interface{}{
				"type":  "content_block_start",
				"index": blockIndex,
				"content_block": map[string]interface{}{
					"type":  "tool_use",
					"id":    call["id"],
					"name":  fn["name"],
					"input": map[string]interface{}{},
				},
			},
		})
		s.toolOpen[openAIIndex] = true
	}

	fn, _ := call["function"].(map[string]interface{})
	if args, ok := fn["arguments"].(string); ok && args != "" {
		events = append(events, SSEEvent{
			Event: "content_block_delta",
			Data: map[string]interface{}{
				"type":  "content_block_delta",
				"index": blockIndex,
				"delta": map[string]interface{}{"type": "input_json_delta", "partial_json": args},
			},
		})
	}

	return events
}

// finalize closes every open content block and emits message_delta and
// message_stop, per §4.2's required event sequence.
func (s *StreamState) finalize(finishReason string) []SSEEvent {
	s.finalized = true
	var events []SSEEvent

	if s.textOpen {
		events = append(events, SSEEvent{
			Event: "content_block_stop",
			Data:  map[string]interface{}{"type": "content_block_stop", "index": s.textIndex},
		})
	}
	for openAIIndex, open := range s.toolOpen {
		if !open {
			continue
		}
		events = append(events, SSEEvent{
			Event: "content_block_stop",
			Data:  map[string]interface{}{"type": "content_block_stop", "index": s.toolIndexes[openAIIndex]},
		})
	}

	stopReason, ok := finishReasonToStopReason[finishReason]
	if !ok {
		stopReason = "end_turn"
	}
	if len(s.toolIndexes) > 0 && stopReason != "tool_use" {
		stopReason = "tool_use"
	}

	events = append(events,
		SSEEvent{
			Event: "message_delta",
			Data: map[string]interface{}{
				"type":  "message_delta",
				"delta": map[string]interface{}{"stop_reason": stopReason},
			},
		},
		SSEEvent{
			Event: "message_stop",
			Data:  map[string]interface{}{"type": "message_stop"},
		},
	)
	return events
}

// Encode renders one SSE event in the "event: X\ndata: {...}\n\n" wire
// format.
func Encode(ev SSEEvent) (string, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return "", fmt.Errorf("transformer: encoding SSE event %q: %w", ev.Event, err)
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Event, payload), nil
}
