package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/gateway/internal/adapter/pipeline"
	"github.com/thushan/gateway/internal/config"
	"github.com/thushan/gateway/internal/core/domain"
	"github.com/thushan/gateway/internal/logger"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		ConfigName: "gateway-test",
		ConfigFile: filepath.Join(dir, "gateway.yaml"),
		Server:     config.ServerConfig{Port: 40114, Host: "0.0.0.0"},
		Providers: []config.ProviderConfig{
			{Name: "p1", APIBaseURL: "http://localhost:1234/v1", APIKey: "k1", Protocol: "openai"},
			{Name: "p2", APIBaseURL: "https://api.example.com/v1", APIKey: []interface{}{"k2a", "k2b"}, Protocol: "openai"},
		},
		Router: map[string]string{
			"default":     "p1,local-model",
			"longContext": "p2,remote-model",
		},
		Scheduler: config.SchedulerConfig{Strategy: "round-robin"},
	}
}

func TestCoordinator_InitializeWiresTableSchedulerAndPipelines(t *testing.T) {
	dir := t.TempDir()
	c := New(nil, WithArtefactDir(dir))

	result, err := c.Initialize(context.Background(), testConfig(t))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotNil(t, result.PipelineTable)
	assert.NotNil(t, result.Scheduler)
	assert.Len(t, result.Pipelines, 3) // p1 has 1 key, p2 has 2 keys

	for _, p := range result.Pipelines {
		assert.Equal(t, domain.PipelineRuntime, p.Descriptor().Status())
	}

	selected, err := result.Scheduler.Select(context.Background(), "default")
	require.NoError(t, err)
	assert.Contains(t, selected.ID(), "p1")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestCoordinator_StyledLoggerExercisedOnSuccessAndTeardown(t *testing.T) {
	styled := logger.NewStyledLogger(slog.New(slog.NewTextHandler(os.Stdout, nil)), logger.GetTheme(""))

	c := New(nil, WithArtefactDir(t.TempDir()), WithStyledLogger(styled))
	result, err := c.Initialize(context.Background(), testConfig(t))
	require.NoError(t, err)
	assert.True(t, result.Success)

	failing := New(nil, WithArtefactDir(t.TempDir()), WithStyledLogger(styled), WithProbeFactory(func(desc pipeline.Descriptor) func(context.Context) error {
		return func(context.Context) error {
			if desc.Provider == "p2" {
				return fmt.Errorf("connection refused")
			}
			return nil
		}
	}))
	result, err = failing.Initialize(context.Background(), testConfig(t))
	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestCoordinator_SecondInitializeRefused(t *testing.T) {
	c := New(nil, WithArtefactDir(t.TempDir()))
	_, err := c.Initialize(context.Background(), testConfig(t))
	require.NoError(t, err)

	_, err = c.Initialize(context.Background(), testConfig(t))
	require.ErrorIs(t, err, domain.ErrAlreadyInitialized)
}

func TestCoordinator_InvalidConfigAbortsBeforeBuildingPipelines(t *testing.T) {
	c := New(nil, WithArtefactDir(t.TempDir()))
	cfg := testConfig(t)
	cfg.Providers = nil

	result, err := c.Initialize(context.Background(), cfg)
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Nil(t, result.PipelineTable)
}

func TestCoordinator_HandshakeFailureTearsDownAllPipelines(t *testing.T) {
	c := New(nil, WithArtefactDir(t.TempDir()), WithProbeFactory(func(desc pipeline.Descriptor) func(context.Context) error {
		return func(context.Context) error {
			if desc.Provider == "p2" {
				return fmt.Errorf("connection refused")
			}
			return nil
		}
	}))

	result, err := c.Initialize(context.Background(), testConfig(t))
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Nil(t, result.Scheduler)

	for _, p := range result.Pipelines {
		assert.Equal(t, domain.PipelineStopped, p.Descriptor().Status())
	}
}
