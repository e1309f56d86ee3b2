package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/gateway/internal/core/constants"
	"github.com/thushan/gateway/internal/core/domain"
	"github.com/thushan/gateway/internal/core/ports"
)

type fakePipeline struct {
	id         string
	descriptor *domain.Pipeline
	healthy    bool
}

func (p *fakePipeline) ID() string { return p.id }
func (p *fakePipeline) Execute(context.Context, *domain.RequestContext, map[string]interface{}) (map[string]interface{}, error) {
	return nil, nil
}
func (p *fakePipeline) Handshake(context.Context) error  { return nil }
func (p *fakePipeline) HealthCheck(context.Context) bool { return p.healthy }
func (p *fakePipeline) Stop(context.Context) error       { return nil }
func (p *fakePipeline) Descriptor() *domain.Pipeline     { return p.descriptor }
func (p *fakePipeline) Layers() [4]ports.Module          { return [4]ports.Module{} }

func newFakePipeline(id, provider, model string, keyIdx, priority int) *fakePipeline {
	d := domain.NewPipeline(provider, model, "key", keyIdx)
	d.PipelineID = id
	d.Priority = priority
	return &fakePipeline{id: id, descriptor: d, healthy: true}
}

func TestScheduler_RoundRobinCyclesEvenly(t *testing.T) {
	s := New(nil, WithStrategy(constants.StrategyRoundRobin))
	p1 := newFakePipeline("a", "p", "m", 0, 0)
	p2 := newFakePipeline("b", "p", "m", 1, 0)
	s.Register(p1, []string{"default"})
	s.Register(p2, []string{"default"})

	seen := map[string]int{}
	for i := 0; i < 10; i++ {
		picked, err := s.Select(context.Background(), "default")
		require.NoError(t, err)
		seen[picked.ID()]++
	}
	assert.Equal(t, 5, seen["a"])
	assert.Equal(t, 5, seen["b"])
}

func TestScheduler_RoundRobinCounterIsPerVirtualModel(t *testing.T) {
	s := New(nil, WithStrategy(constants.StrategyRoundRobin))
	a := newFakePipeline("a", "p", "m", 0, 0)
	b := newFakePipeline("b", "p", "m", 1, 0)
	x := newFakePipeline("x", "q", "m", 0, 0)
	y := newFakePipeline("y", "q", "m", 1, 0)
	z := newFakePipeline("z", "q", "m", 2, 0)
	s.Register(a, []string{"vmA"})
	s.Register(b, []string{"vmA"})
	s.Register(x, []string{"vmB"})
	s.Register(y, []string{"vmB"})
	s.Register(z, []string{"vmB"})

	seenA := map[string]int{}
	seenB := map[string]int{}
	for i := 0; i < 6; i++ {
		pickedA, err := s.Select(context.Background(), "vmA")
		require.NoError(t, err)
		seenA[pickedA.ID()]++

		pickedB, err := s.Select(context.Background(), "vmB")
		require.NoError(t, err)
		seenB[pickedB.ID()]++
	}

	// vmA's pool of 2 cycles evenly regardless of the interleaved vmB
	// selections, since each virtual model owns its own counter.
	assert.Equal(t, 3, seenA["a"])
	assert.Equal(t, 3, seenA["b"])
	assert.Equal(t, 2, seenB["x"])
	assert.Equal(t, 2, seenB["y"])
	assert.Equal(t, 2, seenB["z"])
}

func TestScheduler_SelectUnknownVirtualModelErrors(t *testing.T) {
	s := New(nil)
	_, err := s.Select(context.Background(), "nope")
	require.Error(t, err)
	var schedErr *domain.SchedulerError
	require.ErrorAs(t, err, &schedErr)
}

func TestScheduler_UnrecoverableErrorBlacklistsPermanently(t *testing.T) {
	s := New(nil)
	p1 := newFakePipeline("a", "p", "m", 0, 0)
	s.Register(p1, []string{"default"})

	s.Report("a", domain.ErrorClassUnrecoverable, 10)
	assert.True(t, s.Blacklisted("a"))

	_, err := s.Select(context.Background(), "default")
	require.Error(t, err)
}

func TestScheduler_RateLimitBlocksAfterMaxErrorCount(t *testing.T) {
	s := New(nil, WithMaxErrorCount(3), WithBlacklistDuration(time.Hour))
	p1 := newFakePipeline("a", "p", "m", 0, 0)
	p2 := newFakePipeline("b", "p", "m", 1, 0)
	s.Register(p1, []string{"default"})
	s.Register(p2, []string{"default"})

	s.Report("a", domain.ErrorClassRateLimit, 10)
	s.Report("a", domain.ErrorClassRateLimit, 10)
	// still under threshold: both pipelines remain routable
	_, err := s.Select(context.Background(), "default")
	require.NoError(t, err)

	s.Report("a", domain.ErrorClassRateLimit, 10)
	// third error hits maxErrorCount, "a" is temporarily blocked
	assert.False(t, s.Blacklisted("a"), "temp block is not a permanent blacklist")
	for i := 0; i < 5; i++ {
		picked, err := s.Select(context.Background(), "default")
		require.NoError(t, err)
		assert.Equal(t, "b", picked.ID())
	}
}

func TestScheduler_NetworkErrorBlocksOnSecondConsecutive(t *testing.T) {
	s := New(nil, WithHealthCheckPeriod(time.Hour))
	p1 := newFakePipeline("a", "p", "m", 0, 0)
	p2 := newFakePipeline("b", "p", "m", 1, 0)
	s.Register(p1, []string{"default"})
	s.Register(p2, []string{"default"})

	s.Report("a", domain.ErrorClassNetwork, 10)
	_, err := s.Select(context.Background(), "default")
	require.NoError(t, err) // first network error alone does not block

	s.Report("a", domain.ErrorClassNetwork, 10)
	picked, err := s.Select(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "b", picked.ID())
}

func TestScheduler_SuccessResetsErrorCounter(t *testing.T) {
	s := New(nil, WithMaxErrorCount(3))
	p1 := newFakePipeline("a", "p", "m", 0, 0)
	s.Register(p1, []string{"default"})

	s.Report("a", domain.ErrorClassRecoverable, 10)
	s.Report("a", domain.ErrorClassRecoverable, 10)
	s.Report("a", domain.ErrorClassUnknown, 10)
	s.Report("a", domain.ErrorClassRecoverable, 10)
	s.Report("a", domain.ErrorClassRecoverable, 10)

	// after the reset, two more recoverable errors should not yet reach
	// the threshold of three.
	_, err := s.Select(context.Background(), "default")
	require.NoError(t, err)
}

func TestScheduler_DegradedSelectionWhenAllTemporarilyBlocked(t *testing.T) {
	s := New(nil, WithMaxErrorCount(1), WithBlacklistDuration(time.Hour))
	p1 := newFakePipeline("a", "p", "m", 0, 0)
	s.Register(p1, []string{"default"})

	s.Report("a", domain.ErrorClassRecoverable, 10)
	// "a" is now temp-blocked and it's the only candidate; scheduler must
	// degrade to it rather than fail outright.
	picked, err := s.Select(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "a", picked.ID())
}

func TestScheduler_PriorityStrategyPrefersHighestTier(t *testing.T) {
	s := New(nil, WithStrategy(constants.StrategyPriority))
	low := newFakePipeline("low", "p", "m", 0, 1)
	high := newFakePipeline("high", "p", "m", 1, 10)
	s.Register(low, []string{"default"})
	s.Register(high, []string{"default"})

	for i := 0; i < 5; i++ {
		picked, err := s.Select(context.Background(), "default")
		require.NoError(t, err)
		assert.Equal(t, "high", picked.ID())
	}
}

func TestScheduler_HealthCheckTickClearsExpiredBlock(t *testing.T) {
	s := New(nil, WithMaxErrorCount(1), WithBlacklistDuration(time.Millisecond))
	p1 := newFakePipeline("a", "p", "m", 0, 0)
	s.Register(p1, []string{"default"})
	s.Report("a", domain.ErrorClassRecoverable, 10)

	time.Sleep(5 * time.Millisecond)
	s.tick(context.Background())

	picked, err := s.Select(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "a", picked.ID())
}

func TestScheduler_PersistentHealthCheckFailureTempBlocksNotBlacklists(t *testing.T) {
	s := New(nil, WithMaxErrorCount(2), WithBlacklistDuration(time.Hour))
	p1 := newFakePipeline("a", "p", "m", 0, 0)
	p2 := newFakePipeline("b", "p", "m", 1, 0)
	p1.healthy = false
	s.Register(p1, []string{"default"})
	s.Register(p2, []string{"default"})

	s.tick(context.Background())
	assert.False(t, s.Blacklisted("a"), "one failed tick should not blacklist")

	s.tick(context.Background())
	assert.False(t, s.Blacklisted("a"), "persistent failure temp-blocks, never blacklists")

	for i := 0; i < 10; i++ {
		picked, err := s.Select(context.Background(), "default")
		require.NoError(t, err)
		assert.Equal(t, "b", picked.ID())
	}
}
