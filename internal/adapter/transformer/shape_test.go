package transformer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOpenAIShaped(t *testing.T) {
	ok := map[string]interface{}{
		"model":    "gpt-4",
		"messages": []interface{}{map[string]interface{}{"role": "user", "content": "hi"}},
	}
	assert.True(t, IsOpenAIShaped(ok))
}

func TestIsOpenAIShaped_MissingModel(t *testing.T) {
	body := map[string]interface{}{"messages": []interface{}{}}
	assert.False(t, IsOpenAIShaped(body))
}

func TestIsOpenAIShaped_MissingMessages(t *testing.T) {
	body := map[string]interface{}{"model": "gpt-4"}
	assert.False(t, IsOpenAIShaped(body))
}

func TestIsOpenAIShaped_AnthropicMarkers(t *testing.T) {
	base := map[string]interface{}{
		"model":    "gpt-4",
		"messages": []interface{}{},
	}

	withType := cloneMap(base)
	withType["type"] = "message"
	assert.False(t, IsOpenAIShaped(withType))

	withStopReason := cloneMap(base)
	withStopReason["stop_reason"] = "end_turn"
	assert.False(t, IsOpenAIShaped(withStopReason))

	withContent := cloneMap(base)
	withContent["content"] = []interface{}{}
	assert.False(t, IsOpenAIShaped(withContent))
}

func TestIsOpenAIShaped_Nil(t *testing.T) {
	assert.False(t, IsOpenAIShaped(nil))
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
