// Package scheduler implements C6, the runtime scheduler / load balancer:
// per-virtual-model pipeline pools, the five selection strategies, error
// classification and accounting, blacklist/temporary-block state, and the
// periodic health check. Grounded on the teacher's internal/adapter/balancer
// selector family and internal/adapter/health's circuit-breaker/tracker
// pair, generalised from HTTP endpoints to pipelines.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/thushan/gateway/internal/core/constants"
)

// pipelineStats is the scheduler's per-pipeline accounting record (§4.6
// Data): error counters, blacklist/temp-block state, and the windowed
// response-time history the response-time strategy reads.
type pipelineStats struct {
	errorCount                atomic.Int64
	consecutiveNetworkErrors  atomic.Int64
	consecutiveHealthFailures atomic.Int64
	lastErrorTime             atomic.Int64 // unix nano
	totalRequests             atomic.Int64
	lastResponseTime          atomic.Int64 // milliseconds

	blacklisted   atomic.Bool
	blockedUntil  atomic.Int64 // unix nano; 0 means not blocked
	activeConns   atomic.Int64

	historyMu sync.Mutex
	history   []int64 // ring buffer of the last N response times, milliseconds
}

func newPipelineStats() *pipelineStats {
	return &pipelineStats{}
}

// recordResponseTime appends to the windowed history (§4.6: "window size:
// last 100 executions"), evicting the oldest entry once full.
func (s *pipelineStats) recordResponseTime(ms int64) {
	s.lastResponseTime.Store(ms)
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append(s.history, ms)
	if len(s.history) > constants.ResponseTimeWindowSize {
		s.history = s.history[len(s.history)-constants.ResponseTimeWindowSize:]
	}
}

func (s *pipelineStats) meanResponseTime() float64 {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	if len(s.history) == 0 {
		return 0
	}
	var sum int64
	for _, v := range s.history {
		sum += v
	}
	return float64(sum) / float64(len(s.history))
}

// errorRate is errorCount relative to totalRequests, used by the weighted
// strategy's formula (§4.6).
func (s *pipelineStats) errorRate() float64 {
	total := s.totalRequests.Load()
	if total == 0 {
		return 0
	}
	return float64(s.errorCount.Load()) / float64(total)
}

func (s *pipelineStats) isBlacklisted() bool {
	return s.blacklisted.Load()
}

func (s *pipelineStats) isTempBlocked() bool {
	until := s.blockedUntil.Load()
	if until == 0 {
		return false
	}
	return time.Now().UnixNano() < until
}

// clearExpiredBlock clears a temporary block whose timer has elapsed,
// returning true if it did so (§4.6 Health check: "clears expired
// temporary blocks").
func (s *pipelineStats) clearExpiredBlock() bool {
	until := s.blockedUntil.Load()
	if until != 0 && time.Now().UnixNano() >= until {
		s.blockedUntil.Store(0)
		return true
	}
	return false
}

func (s *pipelineStats) blockFor(d time.Duration) {
	s.blockedUntil.Store(time.Now().Add(d).UnixNano())
}

func (s *pipelineStats) resetErrors() {
	s.errorCount.Store(0)
	s.consecutiveNetworkErrors.Store(0)
}
