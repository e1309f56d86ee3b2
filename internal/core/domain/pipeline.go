package domain

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// PipelineStatus is the lifecycle state of a Pipeline object (§4.4).
type PipelineStatus int

const (
	PipelineInitializing PipelineStatus = iota
	PipelineRuntime
	PipelineError
	PipelineStopped
)

func (s PipelineStatus) String() string {
	switch s {
	case PipelineInitializing:
		return "initializing"
	case PipelineRuntime:
		return "runtime"
	case PipelineError:
		return "error"
	case PipelineStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ModuleDescriptor names one of the four module instances a pipeline is
// assembled from, for persistence and introspection (§6 Persisted state).
type ModuleDescriptor struct {
	Name     string
	Type     string
	Endpoint string // only populated for the server module
}

// Pipeline is the canonical concrete routing target: one
// (provider, target-model, api-key) triple plus its four module
// descriptors. Identity is PipelineID; immutable fields are set once at
// construction, mutable fields are updated by the scheduler and the
// pipeline's own lifecycle methods.
type Pipeline struct {
	// Immutable
	PipelineID              string
	VirtualModels           []string // labels this pipeline is registered under; may be several
	Provider                string
	TargetModel             string
	APIKey                  string
	APIKeyIndex             int
	Endpoint                string
	TransformerName         string
	ProtocolName            string
	ServerCompatibilityName string
	ServerEndpoint          string
	Priority                int // expanded-routing priority (§4.3 step 6); 0 when unset
	CreatedAt               time.Time

	// Mutable — guarded by statusMu / accessed via atomics where noted.
	statusMu          atomic.Int32
	lastHandshakeTime atomic.Int64 // unix nano; 0 means never

	// Runtime counters used by the scheduler (§4.6); kept on the pipeline
	// itself so a pipeline object is self-describing in diagnostics even
	// though the scheduler is the authoritative accounting owner.
	activeExecutions atomic.Int64
	totalRequests    atomic.Int64
}

// NewPipeline constructs a pipeline in the initializing state.
func NewPipeline(provider, targetModel, apiKey string, apiKeyIndex int) *Pipeline {
	p := &Pipeline{
		PipelineID:  BuildPipelineID(provider, targetModel, apiKeyIndex),
		Provider:    provider,
		TargetModel: targetModel,
		APIKey:      apiKey,
		APIKeyIndex: apiKeyIndex,
		CreatedAt:   time.Now(),
	}
	p.statusMu.Store(int32(PipelineInitializing))
	return p
}

// BuildPipelineID implements §4.3 step 3: lowercase provider, lowercase
// model with '/' and whitespace collapsed to '-', plus a -key<idx> suffix.
func BuildPipelineID(provider, model string, keyIndex int) string {
	norm := strings.ToLower(strings.TrimSpace(model))
	norm = strings.ReplaceAll(norm, "/", "-")
	fields := strings.Fields(norm)
	norm = strings.Join(fields, "-")
	return fmt.Sprintf("%s-%s-key%d", strings.ToLower(strings.TrimSpace(provider)), norm, keyIndex)
}

func (p *Pipeline) Status() PipelineStatus {
	return PipelineStatus(p.statusMu.Load())
}

func (p *Pipeline) SetStatus(s PipelineStatus) {
	p.statusMu.Store(int32(s))
}

func (p *Pipeline) LastHandshakeTime() time.Time {
	nano := p.lastHandshakeTime.Load()
	if nano == 0 {
		return time.Time{}
	}
	return time.Unix(0, nano)
}

func (p *Pipeline) MarkHandshaked() {
	p.lastHandshakeTime.Store(time.Now().UnixNano())
	p.SetStatus(PipelineRuntime)
}

func (p *Pipeline) IncrementActive() int64 { return p.activeExecutions.Add(1) }
func (p *Pipeline) DecrementActive() int64 { return p.activeExecutions.Add(-1) }
func (p *Pipeline) ActiveExecutions() int64 { return p.activeExecutions.Load() }
func (p *Pipeline) IncrementTotal() int64  { return p.totalRequests.Add(1) }
func (p *Pipeline) TotalRequests() int64   { return p.totalRequests.Load() }

// Descriptors returns the four module descriptors for persistence (§6).
func (p *Pipeline) Descriptors() []ModuleDescriptor {
	return []ModuleDescriptor{
		{Name: p.TransformerName, Type: "transformer"},
		{Name: p.ProtocolName, Type: "protocol"},
		{Name: p.ServerCompatibilityName, Type: "serverCompatibility"},
		{Name: p.ServerEndpoint, Type: "server", Endpoint: p.ServerEndpoint},
	}
}
