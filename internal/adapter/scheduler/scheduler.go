package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/gateway/internal/core/constants"
	"github.com/thushan/gateway/internal/core/domain"
	"github.com/thushan/gateway/internal/core/ports"
)

// Scheduler is the C6 implementation: a per-virtual-model pool of
// registered pipelines, the five selection strategies, the error-class
// accounting table, and blacklist/temporary-block state. Grounded on the
// teacher's balancer selector family (for selection) and its
// internal/adapter/health tracker/circuit-breaker pair (for error
// accounting and the periodic health tick), generalised from HTTP
// endpoints to pipelines and widened from a boolean up/down state to the
// blacklist-vs-temporary-block split §4.6 requires.
type Scheduler struct {
	mu     sync.RWMutex
	pools  map[string][]ports.Pipeline // virtualModel -> member pipelines, registration order
	byID   map[string]ports.Pipeline

	stats *xsync.Map[string, *pipelineStats]

	strategyName string
	strategy     strategy

	maxErrorCount     int
	blacklistDuration time.Duration
	authRetryDelay    time.Duration
	networkBlockDelay time.Duration
	healthCheckPeriod time.Duration

	observer ports.SchedulerObserver
	log      *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

func WithStrategy(name string) Option {
	return func(s *Scheduler) {
		s.strategyName = name
		s.strategy = newStrategy(name)
	}
}

func WithObserver(observer ports.SchedulerObserver) Option {
	return func(s *Scheduler) { s.observer = observer }
}

func WithMaxErrorCount(n int) Option {
	return func(s *Scheduler) { s.maxErrorCount = n }
}

func WithBlacklistDuration(d time.Duration) Option {
	return func(s *Scheduler) { s.blacklistDuration = d }
}

func WithHealthCheckPeriod(d time.Duration) Option {
	return func(s *Scheduler) { s.healthCheckPeriod = d }
}

func New(log *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		pools:             make(map[string][]ports.Pipeline),
		byID:              make(map[string]ports.Pipeline),
		stats:             xsync.NewMap[string, *pipelineStats](),
		strategyName:      constants.StrategyRoundRobin,
		strategy:          newStrategy(constants.StrategyRoundRobin),
		maxErrorCount:     constants.DefaultMaxErrorCount,
		blacklistDuration: constants.DefaultBlacklistDuration,
		authRetryDelay:    constants.DefaultAuthRetryDelay,
		networkBlockDelay: constants.DefaultNetworkBlockDelay,
		healthCheckPeriod: constants.DefaultHealthCheckPeriod,
		log:               log,
		stopCh:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register implements ports.Scheduler: adds p to the pool for every named
// virtual model (a pipeline commonly serves several, per §4.3's grouping).
func (s *Scheduler) Register(p ports.Pipeline, virtualModels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[p.ID()] = p
	s.stats.LoadOrStore(p.ID(), newPipelineStats())

	for _, vm := range virtualModels {
		if containsPipeline(s.pools[vm], p) {
			continue
		}
		s.pools[vm] = append(s.pools[vm], p)
		if s.observer != nil {
			s.observer.OnPipelineRegistered(p.ID(), vm)
		}
	}
}

func containsPipeline(pool []ports.Pipeline, p ports.Pipeline) bool {
	for _, existing := range pool {
		if existing.ID() == p.ID() {
			return true
		}
	}
	return false
}

// Select implements ports.Scheduler: §4.6's pick-a-pipeline path. It first
// filters to candidates that are neither blacklisted nor temporarily
// blocked; if none remain it clears any expired temporary blocks once and
// retries, allowing a degraded pick with a logged warning before finally
// surfacing a *domain.SchedulerError.
func (s *Scheduler) Select(ctx context.Context, virtualModel string) (ports.Pipeline, error) {
	return s.selectWithPriority(ctx, virtualModel, domain.PriorityNormal, false)
}

// SelectPriority implements ports.PriorityAwareScheduler: the same §4.6
// selection path as Select, except that when the configured strategy is
// priority-based, the request's own priority hint picks the position within
// the (descriptor priority desc, response time asc) ordering — high takes
// the first, low the last, normal the median.
func (s *Scheduler) SelectPriority(ctx context.Context, virtualModel string, priority domain.RequestPriority) (ports.Pipeline, error) {
	return s.selectWithPriority(ctx, virtualModel, priority, true)
}

func (s *Scheduler) selectWithPriority(_ context.Context, virtualModel string, priority domain.RequestPriority, hinted bool) (ports.Pipeline, error) {
	s.mu.RLock()
	pool := append([]ports.Pipeline(nil), s.pools[virtualModel]...)
	s.mu.RUnlock()

	if len(pool) == 0 {
		return nil, &domain.SchedulerError{VirtualModel: virtualModel, Reason: "no pipelines registered"}
	}

	candidates := s.routableCandidates(pool)
	if len(candidates) == 0 {
		cleared := s.clearExpiredBlocksIn(pool)
		if cleared > 0 {
			candidates = s.routableCandidates(pool)
		}
	}
	if len(candidates) == 0 {
		// Degraded pick: allow a temporarily blocked (but not blacklisted)
		// pipeline through rather than fail the request outright.
		candidates = s.degradedCandidates(pool)
		if len(candidates) > 0 && s.log != nil {
			s.log.Warn("scheduler: no clean pipelines, degrading to blocked candidate", "virtualModel", virtualModel)
		}
	}
	if len(candidates) == 0 {
		return nil, &domain.SchedulerError{VirtualModel: virtualModel, Reason: "all pipelines blacklisted"}
	}

	var (
		selected ports.Pipeline
		err      error
	)
	switch st := s.strategy.(type) {
	case priorityAware:
		if hinted {
			selected, err = st.selectFromWithPriority(candidates, priority)
		} else {
			selected, err = s.strategy.selectFrom(candidates)
		}
	case keyedStrategy:
		selected, err = st.selectFromKeyed(candidates, virtualModel)
	default:
		selected, err = s.strategy.selectFrom(candidates)
	}
	if err != nil {
		return nil, &domain.SchedulerError{VirtualModel: virtualModel, Reason: err.Error()}
	}
	return selected, nil
}

func (s *Scheduler) routableCandidates(pool []ports.Pipeline) []candidate {
	var out []candidate
	for _, p := range pool {
		stats, ok := s.stats.Load(p.ID())
		if !ok {
			continue
		}
		if stats.isBlacklisted() || stats.isTempBlocked() {
			continue
		}
		out = append(out, candidate{pipeline: p, stats: stats})
	}
	return out
}

func (s *Scheduler) degradedCandidates(pool []ports.Pipeline) []candidate {
	var out []candidate
	for _, p := range pool {
		stats, ok := s.stats.Load(p.ID())
		if !ok || stats.isBlacklisted() {
			continue
		}
		out = append(out, candidate{pipeline: p, stats: stats})
	}
	return out
}

func (s *Scheduler) clearExpiredBlocksIn(pool []ports.Pipeline) int {
	cleared := 0
	for _, p := range pool {
		stats, ok := s.stats.Load(p.ID())
		if !ok {
			continue
		}
		if stats.clearExpiredBlock() {
			cleared++
			if s.observer != nil {
				s.observer.OnPipelineReactivated(p.ID())
			}
		}
	}
	return cleared
}

// Report implements ports.Scheduler: the §4.6 error-classification action
// table. success (ErrorClassUnknown) resets the error counter; every other
// class drives its own blacklist/block rule.
func (s *Scheduler) Report(pipelineID string, class domain.ErrorClass, latencyMs int64) {
	stats, ok := s.stats.Load(pipelineID)
	if !ok {
		return
	}
	stats.totalRequests.Add(1)

	if latencyMs > 0 {
		stats.recordResponseTime(latencyMs)
	}

	switch class {
	case domain.ErrorClassUnknown:
		stats.resetErrors()
		if s.observer != nil {
			s.observer.OnRouteResult(pipelineID, true)
		}
		return
	case domain.ErrorClassUnrecoverable:
		stats.blacklisted.Store(true)
		stats.lastErrorTime.Store(time.Now().UnixNano())
		if s.observer != nil {
			s.observer.OnPipelineBlocked(pipelineID, "unrecoverable")
			s.observer.OnDestroyRequested(pipelineID)
		}
	case domain.ErrorClassAuthentication:
		stats.blockFor(s.authRetryDelay)
		stats.lastErrorTime.Store(time.Now().UnixNano())
		if s.observer != nil {
			s.observer.OnAuthenticationRequired(pipelineID)
			s.observer.OnPipelineBlocked(pipelineID, "authentication")
		}
	case domain.ErrorClassNetwork:
		n := stats.consecutiveNetworkErrors.Add(1)
		stats.lastErrorTime.Store(time.Now().UnixNano())
		if n >= 2 {
			stats.blockFor(s.networkBlockDelay)
			if s.observer != nil {
				s.observer.OnPipelineBlocked(pipelineID, "network")
			}
		}
	case domain.ErrorClassRateLimit, domain.ErrorClassRecoverable:
		stats.consecutiveNetworkErrors.Store(0)
		n := stats.errorCount.Add(1)
		stats.lastErrorTime.Store(time.Now().UnixNano())
		if int(n) >= s.maxErrorCount {
			stats.blockFor(s.blacklistDuration)
			stats.errorCount.Store(0)
			if s.observer != nil {
				s.observer.OnPipelineBlocked(pipelineID, class.String())
			}
		}
	}

	if s.observer != nil && class != domain.ErrorClassUnknown {
		s.observer.OnRouteResult(pipelineID, false)
	}
}

// Blacklisted implements ports.Scheduler.
func (s *Scheduler) Blacklisted(pipelineID string) bool {
	stats, ok := s.stats.Load(pipelineID)
	if !ok {
		return false
	}
	return stats.isBlacklisted()
}

// StrategyName reports the configured selection strategy, for diagnostics
// and the persisted artefact (§6).
func (s *Scheduler) StrategyName() string { return s.strategyName }

// Run starts the periodic health-check loop (§4.6: default period 30s). It
// blocks until ctx is cancelled or Stop is called, so callers run it in its
// own goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.healthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop ends the health-check loop (idempotent).
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// tick implements one health-check sweep (§4.6 Health check): clears
// expired temporary blocks and re-probes every registered pipeline.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.RLock()
	pipelines := make([]ports.Pipeline, 0, len(s.byID))
	for _, p := range s.byID {
		pipelines = append(pipelines, p)
	}
	s.mu.RUnlock()

	for _, p := range pipelines {
		stats, ok := s.stats.Load(p.ID())
		if !ok {
			continue
		}
		if stats.clearExpiredBlock() && s.observer != nil {
			s.observer.OnPipelineReactivated(p.ID())
		}

		if p.HealthCheck(ctx) {
			stats.consecutiveHealthFailures.Store(0)
			continue
		}

		if s.log != nil {
			s.log.Warn("scheduler: health check failed", "pipeline", p.ID())
		}
		// A persistent health-check failure promotes the pipeline to a
		// temporary block, not a blacklist (§4.6 Health check).
		if n := stats.consecutiveHealthFailures.Add(1); int(n) >= s.maxErrorCount {
			stats.blockFor(s.blacklistDuration)
			stats.consecutiveHealthFailures.Store(0)
			if s.observer != nil {
				s.observer.OnPipelineBlocked(p.ID(), "health-check")
			}
		}
	}
}
