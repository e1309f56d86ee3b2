package scheduler

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/thushan/gateway/internal/core/constants"
	"github.com/thushan/gateway/internal/core/domain"
	"github.com/thushan/gateway/internal/core/ports"
)

// candidate pairs a routable pipeline with its scheduler-owned stats, the
// unit every selection strategy picks from.
type candidate struct {
	pipeline ports.Pipeline
	stats    *pipelineStats
}

// strategy is the closed set of selection algorithms named in
// constants.Strategy* (§4.6). Each receives only the already-filtered
// routable candidates for one virtual model.
type strategy interface {
	name() string
	selectFrom(candidates []candidate) (ports.Pipeline, error)
}

func newStrategy(name string) strategy {
	switch name {
	case constants.StrategyLeastConnections:
		return &leastConnectionsStrategy{}
	case constants.StrategyWeighted:
		return &weightedStrategy{}
	case constants.StrategyResponseTime:
		return &responseTimeStrategy{}
	case constants.StrategyPriority:
		return &priorityStrategy{}
	default:
		return &roundRobinStrategy{}
	}
}

func noCandidatesErr() error {
	return fmt.Errorf("no routable pipelines available")
}

// priorityAware is satisfied by strategies that can honour a per-request
// priority hint in addition to the plain selectFrom contract (currently only
// priorityStrategy); the scheduler probes for it with a type assertion.
type priorityAware interface {
	selectFromWithPriority(candidates []candidate, priority domain.RequestPriority) (ports.Pipeline, error)
}

// keyedStrategy is satisfied by strategies whose state must be kept
// per-route rather than shared across every virtual model that selects
// through the one configured strategy instance (currently only
// roundRobinStrategy); the scheduler probes for it with a type assertion
// and passes the virtual model as the key.
type keyedStrategy interface {
	selectFromKeyed(candidates []candidate, key string) (ports.Pipeline, error)
}

// roundRobinStrategy is the default (§4.6): a stable, lexicographically
// sorted candidate list indexed by a per-route atomic counter. spec.md
// requires the counter to be "per-route" (one per virtual model), not a
// single process-wide counter shared across every virtual model that
// happens to use round-robin — the latter is exactly the "shared
// process-wide round-robin counter in a static map" anti-pattern §9 calls
// out to be replaced.
type roundRobinStrategy struct {
	mu       sync.Mutex
	counters map[string]*atomic.Uint64
}

func (s *roundRobinStrategy) name() string { return constants.StrategyRoundRobin }

// selectFrom satisfies the plain strategy interface for callers (tests, the
// responseTimeStrategy fallback) that have no route key to scope the
// counter to; it shares a single counter under the empty key.
func (s *roundRobinStrategy) selectFrom(candidates []candidate) (ports.Pipeline, error) {
	return s.selectFromKeyed(candidates, "")
}

func (s *roundRobinStrategy) selectFromKeyed(candidates []candidate, key string) (ports.Pipeline, error) {
	if len(candidates) == 0 {
		return nil, noCandidatesErr()
	}
	sorted := sortedByID(candidates)
	idx := s.counterFor(key).Add(1) - 1
	return sorted[idx%uint64(len(sorted))].pipeline, nil
}

func (s *roundRobinStrategy) counterFor(key string) *atomic.Uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters == nil {
		s.counters = make(map[string]*atomic.Uint64)
	}
	c, ok := s.counters[key]
	if !ok {
		c = &atomic.Uint64{}
		s.counters[key] = c
	}
	return c
}

// leastConnectionsStrategy picks the candidate with the fewest active
// executions, reading the pipeline's own atomic counter rather than a
// scheduler-side shadow copy. Ties are broken by pipelineId (§4.6), so the
// candidates are sorted by ID first rather than left in pool-registration
// order.
type leastConnectionsStrategy struct{}

func (s *leastConnectionsStrategy) name() string { return constants.StrategyLeastConnections }

func (s *leastConnectionsStrategy) selectFrom(candidates []candidate) (ports.Pipeline, error) {
	if len(candidates) == 0 {
		return nil, noCandidatesErr()
	}
	sorted := sortedByID(candidates)
	best := sorted[0]
	bestActive := best.pipeline.Descriptor().ActiveExecutions()
	for _, c := range sorted[1:] {
		active := c.pipeline.Descriptor().ActiveExecutions()
		if active < bestActive {
			best, bestActive = c, active
		}
	}
	return best.pipeline, nil
}

// weightedStrategy implements §4.6's formula:
// weight = 1000/max(lastResponseTime, 1) * max(0.1, 1 - 2*errorRate), a
// higher weight favouring fast, low-error pipelines, with a weighted-random
// draw across the whole set so a single fastest pipeline doesn't starve
// its siblings.
type weightedStrategy struct{}

func (s *weightedStrategy) name() string { return constants.StrategyWeighted }

func (s *weightedStrategy) selectFrom(candidates []candidate) (ports.Pipeline, error) {
	if len(candidates) == 0 {
		return nil, noCandidatesErr()
	}
	weights := make([]float64, len(candidates))
	var total float64
	for i, c := range candidates {
		rt := c.stats.lastResponseTime.Load()
		if rt < 1 {
			rt = 1
		}
		errFactor := 1 - 2*c.stats.errorRate()
		if errFactor < 0.1 {
			errFactor = 0.1
		}
		w := (1000 / float64(rt)) * errFactor
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return candidates[rand.Intn(len(candidates))].pipeline, nil
	}
	r := rand.Float64() * total
	var sum float64
	for i, w := range weights {
		sum += w
		if r <= sum {
			return candidates[i].pipeline, nil
		}
	}
	return candidates[len(candidates)-1].pipeline, nil
}

// responseTimeStrategy picks the candidate with the lowest mean response
// time across its windowed history (§4.6), falling back to round-robin
// order among pipelines that have no history yet.
type responseTimeStrategy struct {
	fallback roundRobinStrategy
}

func (s *responseTimeStrategy) name() string { return constants.StrategyResponseTime }

func (s *responseTimeStrategy) selectFrom(candidates []candidate) (ports.Pipeline, error) {
	if len(candidates) == 0 {
		return nil, noCandidatesErr()
	}
	var withHistory []candidate
	for _, c := range candidates {
		if c.stats.meanResponseTime() > 0 {
			withHistory = append(withHistory, c)
		}
	}
	if len(withHistory) == 0 {
		return s.fallback.selectFrom(candidates)
	}
	best := withHistory[0]
	bestMean := best.stats.meanResponseTime()
	for _, c := range withHistory[1:] {
		mean := c.stats.meanResponseTime()
		if mean < bestMean {
			best, bestMean = c, mean
		}
	}
	return best.pipeline, nil
}

// priorityStrategy implements §4.6: group by descriptor priority (highest
// first), then break ties within the top tier by lowest last response
// time, matching the teacher's sort-then-weighted-tiebreak shape but using
// response time instead of traffic weight as the tiebreaker.
type priorityStrategy struct{}

func (s *priorityStrategy) name() string { return constants.StrategyPriority }

func (s *priorityStrategy) selectFrom(candidates []candidate) (ports.Pipeline, error) {
	if len(candidates) == 0 {
		return nil, noCandidatesErr()
	}
	sorted := orderByPriority(candidates)

	topPriority := sorted[0].pipeline.Descriptor().Priority
	var top []candidate
	for _, c := range sorted {
		if c.pipeline.Descriptor().Priority != topPriority {
			break
		}
		top = append(top, c)
	}
	if len(top) == 1 {
		return top[0].pipeline, nil
	}

	best := top[0]
	bestRT := best.stats.lastResponseTime.Load()
	for _, c := range top[1:] {
		rt := c.stats.lastResponseTime.Load()
		if bestRT == 0 || (rt > 0 && rt < bestRT) {
			best, bestRT = c, rt
		}
	}
	return best.pipeline, nil
}

// selectFromWithPriority implements §4.6's request-priority dispatch over
// the full (descriptor priority desc, lastResponseTime asc) ordering:
// priority=high takes position 0, low the last position, anything else
// (including the unset default) the middle position.
func (s *priorityStrategy) selectFromWithPriority(candidates []candidate, priority domain.RequestPriority) (ports.Pipeline, error) {
	if len(candidates) == 0 {
		return nil, noCandidatesErr()
	}
	sorted := orderByPriority(candidates)

	var idx int
	switch priority {
	case domain.PriorityHigh:
		idx = 0
	case domain.PriorityLow:
		idx = len(sorted) - 1
	default:
		idx = len(sorted) / 2
	}
	return sorted[idx].pipeline, nil
}

// orderByPriority sorts by descriptor priority descending, breaking ties by
// ascending last response time (pipelines with no recorded response time
// sort after ones that do, matching the tie-break in selectFrom above).
func orderByPriority(candidates []candidate) []candidate {
	sorted := make([]candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := sorted[i].pipeline.Descriptor().Priority, sorted[j].pipeline.Descriptor().Priority
		if pi != pj {
			return pi > pj
		}
		ri, rj := sorted[i].stats.lastResponseTime.Load(), sorted[j].stats.lastResponseTime.Load()
		if ri == 0 {
			ri = 1<<63 - 1
		}
		if rj == 0 {
			rj = 1<<63 - 1
		}
		return ri < rj
	})
	return sorted
}

func sortedByID(candidates []candidate) []candidate {
	sorted := make([]candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].pipeline.ID() < sorted[j].pipeline.ID()
	})
	return sorted
}
