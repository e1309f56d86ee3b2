// Package coordinator implements C7, the initialization coordinator: the
// one-shot orchestrator that turns a loaded configuration into a running
// pipeline table, a populated scheduler, and a persisted inspection
// artefact. Grounded on the teacher's application bootstrap sequence
// (config -> registry -> balancer -> proxy, wired once at startup and
// refusing a second run), narrowed here to the gateway's own four stages.
package coordinator

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thushan/gateway/internal/adapter/compat"
	"github.com/thushan/gateway/internal/adapter/pipeline"
	"github.com/thushan/gateway/internal/adapter/scheduler"
	"github.com/thushan/gateway/internal/config"
	"github.com/thushan/gateway/internal/core/domain"
	"github.com/thushan/gateway/internal/core/ports"
	"github.com/thushan/gateway/internal/logger"
)

// InitializationResult is §4.7's contract: everything a caller needs to
// start serving requests, or to diagnose why initialization failed.
type InitializationResult struct {
	Success       bool
	PipelineTable *pipeline.Table
	Scheduler     *scheduler.Scheduler
	Pipelines     []*pipeline.Pipeline
	Errors        []error
	Warnings      []string
	Timings       map[string]time.Duration
}

// ProbeFactory builds the optional handshake liveness probe for one
// descriptor. A nil factory marks every pipeline live with no network
// round trip, matching pipeline.New's own nil-probe behaviour.
type ProbeFactory func(desc pipeline.Descriptor) func(ctx context.Context) error

// Coordinator runs Initialize at most once (§4.7's terminal idempotency
// requirement); a second call always fails with domain.ErrAlreadyInitialized
// regardless of the first call's outcome.
type Coordinator struct {
	mu          sync.Mutex
	initialized bool

	log       *slog.Logger
	styledLog *logger.StyledLogger

	httpClient   pipeline.HTTPDoer
	probeFactory ProbeFactory

	artefactDir string
}

// Option configures a Coordinator at construction.
type Option func(*Coordinator)

func WithHTTPClient(client pipeline.HTTPDoer) Option {
	return func(c *Coordinator) { c.httpClient = client }
}

func WithProbeFactory(f ProbeFactory) Option {
	return func(c *Coordinator) { c.probeFactory = f }
}

func WithStyledLogger(l *logger.StyledLogger) Option {
	return func(c *Coordinator) { c.styledLog = l }
}

// WithArtefactDir sets the directory the pipeline-table artefacts are
// written under (§6 Persisted state); empty keeps pipeline.Persist's
// own default of the working directory.
func WithArtefactDir(dir string) Option {
	return func(c *Coordinator) { c.artefactDir = dir }
}

func New(log *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize runs §4.7's five-step sequence. It is safe for at most one
// caller to succeed; concurrent callers racing the first invocation are
// serialised by the internal mutex, and every call after the first
// (successful or not) returns domain.ErrAlreadyInitialized.
func (c *Coordinator) Initialize(ctx context.Context, cfg *config.Config) (*InitializationResult, error) {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil, domain.ErrAlreadyInitialized
	}
	c.initialized = true
	c.mu.Unlock()

	result := &InitializationResult{Timings: make(map[string]time.Duration)}

	// Step 1: preprocess config.
	preprocessStart := time.Now()
	if err := config.Validate(cfg); err != nil {
		result.Errors = append(result.Errors, err)
		return result, err
	}
	result.Timings["preprocessConfig"] = time.Since(preprocessStart)

	// Step 2+3: preprocess router and build the pipeline table (§4.3).
	tableStart := time.Now()
	table, err := pipeline.Build(cfg)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result, err
	}
	result.PipelineTable = table
	result.Warnings = append(result.Warnings, table.Warnings...)
	result.Timings["buildPipelineTable"] = time.Since(tableStart)

	// Step 3 (continued): instantiate Pipeline objects and handshake each,
	// fanning the handshakes out concurrently (§5: the system expects
	// parallel execution; handshakes are independent per pipeline).
	instantiateStart := time.Now()
	registry := compat.NewRegistry(c.log)
	pipelines := make([]*pipeline.Pipeline, len(table.Descriptors))
	for i, desc := range table.Descriptors {
		var probe func(ctx context.Context) error
		if c.probeFactory != nil {
			probe = c.probeFactory(desc)
		}
		pipelines[i] = pipeline.New(desc, registry, c.httpClient, probe)
		if c.styledLog != nil {
			c.styledLog.InfoWithPipeline("coordinator: pipeline instantiated", pipelines[i].ID())
		}
	}
	result.Pipelines = pipelines

	group, groupCtx := errgroup.WithContext(ctx)
	for _, p := range pipelines {
		p := p
		group.Go(func() error {
			if err := p.Handshake(groupCtx); err != nil {
				return err
			}
			if c.styledLog != nil {
				c.styledLog.InfoPipelineStatus("coordinator: handshake complete", p.ID(), p.Descriptor().Status())
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		c.teardown(ctx, pipelines)
		result.Errors = append(result.Errors, err)
		return result, err
	}
	result.Timings["instantiateAndHandshake"] = time.Since(instantiateStart)

	// Step 4: register every pipeline with the scheduler under every
	// virtual model whose route entry names its (provider, model) pair.
	registerStart := time.Now()
	sched := scheduler.New(c.log,
		scheduler.WithStrategy(cfg.Scheduler.Strategy),
		scheduler.WithMaxErrorCount(nonZeroOr(cfg.Scheduler.MaxErrorCount, 3)),
		scheduler.WithBlacklistDuration(nonZeroDurationOr(cfg.Scheduler.BlacklistDuration, 300*time.Second)),
		scheduler.WithHealthCheckPeriod(nonZeroDurationOr(cfg.Scheduler.HealthCheckPeriod, 30*time.Second)),
	)
	byID := make(map[string]*pipeline.Pipeline, len(pipelines))
	for _, p := range pipelines {
		byID[p.ID()] = p
	}
	for vm, pipelineIDs := range table.ByVirtualModel {
		for _, id := range pipelineIDs {
			if p, ok := byID[id]; ok {
				sched.Register(portsPipeline(p), []string{vm})
			}
		}
		if c.styledLog != nil {
			c.styledLog.InfoWithVirtualModel("coordinator: registered pipelines", vm, "count", len(pipelineIDs))
		}
	}
	result.Scheduler = sched
	result.Timings["registerScheduler"] = time.Since(registerStart)

	// Persist the inspection artefact (§6 Persisted state); write failures
	// are logged but never fail initialization.
	artefact := pipeline.BuildArtefact(cfg.ConfigName, cfg.ConfigFile, table, pipelines)
	stablePath := filepath.Join(c.artefactDir, cfg.ConfigName+"-pipeline-table.json")
	for _, werr := range pipeline.Persist(artefact, stablePath, c.artefactDir, cfg.Server.Port) {
		result.Warnings = append(result.Warnings, werr.Error())
	}

	result.Success = true
	return result, nil
}

// teardown stops every pipeline that was constructed before a handshake
// failure (§4.7 step 3: "on any handshake failure, teardown all
// already-created pipelines and return failure").
func (c *Coordinator) teardown(ctx context.Context, pipelines []*pipeline.Pipeline) {
	for _, p := range pipelines {
		if p.Descriptor().Status() == domain.PipelineStopped {
			continue
		}
		if c.styledLog != nil {
			c.styledLog.WarnWithPipeline("coordinator: tearing down pipeline after handshake failure", p.ID())
		}
		if err := p.Stop(ctx); err != nil && c.log != nil {
			c.log.Warn("coordinator: teardown failed to stop pipeline", "pipeline", p.ID(), "error", err)
		}
	}
}

func portsPipeline(p *pipeline.Pipeline) ports.Pipeline { return p }

func nonZeroOr(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func nonZeroDurationOr(v, fallback time.Duration) time.Duration {
	if v == 0 {
		return fallback
	}
	return v
}
