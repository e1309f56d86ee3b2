// Package constants collects the gateway's closed vocabularies: compat
// tags, strategy and event names, status buckets, and the scheduler's and
// server layer's default tunables. Grouped by
// concern, matching the teacher's internal/core/constants layout.
package constants

import "time"

// Compatibility tags recognised by the registry (§4.1).
const (
	CompatLMStudio   = "lmstudio"
	CompatOllama     = "ollama"
	CompatVLLM       = "vllm"
	CompatAnthropic  = "anthropic"
	CompatModelScope = "modelscope"
	CompatQwen       = "qwen"
	CompatIFlow      = "iflow"
	CompatPassthrough = "openai/passthrough"
)

// CompatTagsRequiringFatalLoad lists the tags for which an adapter load
// failure must be fatal rather than fall back to passthrough (§4.1).
var CompatTagsRequiringFatalLoad = map[string]bool{
	CompatModelScope: true,
	CompatQwen:       true,
	CompatIFlow:      true,
}

// Selection strategy names (§4.6).
const (
	StrategyRoundRobin      = "round-robin"
	StrategyLeastConnections = "least-connections"
	StrategyWeighted         = "weighted"
	StrategyResponseTime     = "response-time"
	StrategyPriority         = "priority"
)

// Scheduler defaults (§4.6).
const (
	DefaultMaxErrorCount     = 3
	DefaultBlacklistDuration = 300 * time.Second
	DefaultAuthRetryDelay    = 60 * time.Second
	DefaultNetworkBlockDelay = 60 * time.Second
	DefaultHealthCheckPeriod = 30 * time.Second
	ResponseTimeWindowSize   = 100
)

// Request timeout defaults (§5 Cancellation and timeouts).
const (
	DefaultRequestTimeout  = 300 * time.Second
	LongContextTimeout     = 200 * time.Second
	LongRequestTimeout      = 600 * time.Second
	LargeRequestThreshold   = 256 * 1024 // bytes; above this the pipeline server module switches to LongRequestTimeout
)

// Retry policy defaults for the server layer (§4.5.5).
const (
	DefaultMaxRetries    = 3
	BackoffStart         = time.Second
	BackoffCap           = 10 * time.Second
	BackoffMultiplier    = 2.0
)

// HTTP status buckets used by the server layer's error classifier.
const (
	StatusUnauthorized = 401
	StatusForbidden    = 403
	StatusRequestTimeout = 408
	StatusRateLimited    = 429
	StatusGatewayTimeout = 504
)

// Scheduler event names (§6 Failure/event emission).
const (
	EventPipelineRegistered     = "pipelineRegistered"
	EventPipelineUnregistered   = "pipelineUnregistered"
	EventPipelineError          = "pipelineError"
	EventPipelineBlocked        = "pipelineBlocked"
	EventPipelineReactivated    = "pipelineReactivated"
	EventAuthenticationRequired = "authenticationRequired"
	EventDestroyPipelineRequired = "destroyPipelineRequired"
	EventRouteSuccess           = "routeSuccess"
	EventRouteError             = "routeError"
)
