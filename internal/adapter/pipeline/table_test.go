package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/gateway/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Providers: []config.ProviderConfig{
			{
				Name:       "p1",
				APIBaseURL: "http://localhost:1234/v1",
				APIKey:     []interface{}{"k1", "k2", "k3"},
				Protocol:   "openai",
			},
			{
				Name:       "p2",
				APIBaseURL: "https://api.example.com/v1",
				APIKey:     "single-key",
				Protocol:   "anthropic",
			},
		},
		Router: map[string]string{
			"default":     "p1,local-model",
			"longContext": "p1,mA;p2,mB",
		},
	}
}

func TestBuild_ExpandsAPIKeysIntoPipelines(t *testing.T) {
	table, err := Build(baseConfig())
	require.NoError(t, err)

	var p1Keys int
	for _, d := range table.Descriptors {
		if d.Provider == "p1" && d.TargetModel == "local-model" {
			p1Keys++
		}
	}
	assert.Equal(t, 3, p1Keys)
}

func TestBuild_PipelineIDStable(t *testing.T) {
	table, err := Build(baseConfig())
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, d := range table.Descriptors {
		assert.False(t, ids[d.PipelineID], "duplicate pipeline id %s", d.PipelineID)
		ids[d.PipelineID] = true
	}
	assert.Contains(t, ids, "p1-local-model-key0")
	assert.Contains(t, ids, "p1-local-model-key1")
	assert.Contains(t, ids, "p1-local-model-key2")
}

func TestBuild_UnknownProviderSkippedWithWarning(t *testing.T) {
	cfg := baseConfig()
	cfg.Router["broken"] = "ghost,model-x"

	table, err := Build(cfg)
	require.NoError(t, err)
	require.Len(t, table.Warnings, 1)
	assert.Contains(t, table.Warnings[0], "ghost")

	for _, d := range table.Descriptors {
		assert.NotEqual(t, "ghost", d.Provider)
	}
}

func TestBuild_EmptyKeyListProducesNoPipelines(t *testing.T) {
	cfg := &config.Config{
		Providers: []config.ProviderConfig{
			{Name: "empty", APIBaseURL: "http://x/v1", APIKey: []interface{}{}, Protocol: "openai"},
			{Name: "ok", APIBaseURL: "http://y/v1", APIKey: "k", Protocol: "openai"},
		},
		Router: map[string]string{
			"default": "empty,m;ok,m",
		},
	}
	table, err := Build(cfg)
	require.NoError(t, err)

	for _, d := range table.Descriptors {
		assert.NotEqual(t, "empty", d.Provider)
	}
	assert.Len(t, table.Descriptors, 1)
}

func TestBuild_CrossProviderModelRenamePreserved(t *testing.T) {
	table, err := Build(baseConfig())
	require.NoError(t, err)

	var mA, mB bool
	for _, d := range table.Descriptors {
		if d.Provider == "p1" && d.TargetModel == "mA" {
			mA = true
		}
		if d.Provider == "p2" && d.TargetModel == "mB" {
			mB = true
		}
	}
	assert.True(t, mA)
	assert.True(t, mB)
}

func TestComputeServerEndpoint(t *testing.T) {
	assert.Equal(t, "http://localhost:1234/v1/chat/completions", computeServerEndpoint("http://localhost:1234/v1"))
	assert.Equal(t, "http://localhost:1234/v1/chat/completions", computeServerEndpoint("http://localhost:1234/v1/"))
	assert.Equal(t, "http://localhost:1234/custom", computeServerEndpoint("http://localhost:1234/custom"))
}

func TestBuild_ByVirtualModelGrouping(t *testing.T) {
	table, err := Build(baseConfig())
	require.NoError(t, err)

	assert.Len(t, table.ByVirtualModel["default"], 3)
	assert.Len(t, table.ByVirtualModel["longContext"], 4) // p1,mA x 3 keys + p2,mB x 1 key
}
