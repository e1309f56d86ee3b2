// Package compat is the Compatibility Adapter Registry (C1): it lazily
// loads and caches per-provider request adjusters keyed by a
// compatibility tag, grounded on the per-profile quirks the teacher
// expresses as RequestParsingRules / DetectionHints in its model-registry
// profiles, but applied to outbound request shaping instead of model
// discovery.
package compat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/singleflight"

	"github.com/thushan/gateway/internal/core/constants"
	"github.com/thushan/gateway/internal/core/domain"
	"github.com/thushan/gateway/internal/core/ports"
)

type constructor func(options map[string]interface{}) (ports.Adapter, error)

// Registry resolves a tag to a cached Adapter (§4.1). The first
// resolution for a tag instantiates and caches it; concurrent first-use
// resolutions for the same tag are coalesced by a singleflight barrier so
// exactly one adapter is constructed per tag regardless of how many
// requests race to resolve it at once.
type Registry struct {
	cache        *xsync.Map[string, ports.Adapter]
	constructors map[string]constructor
	group        singleflight.Group
	logger       *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{
		cache:  xsync.NewMap[string, ports.Adapter](),
		logger: logger,
	}
	r.constructors = map[string]constructor{
		constants.CompatPassthrough: func(map[string]interface{}) (ports.Adapter, error) { return passthroughAdapter{}, nil },
		constants.CompatLMStudio:    func(map[string]interface{}) (ports.Adapter, error) { return lmStudioAdapter{}, nil },
		constants.CompatOllama:      func(map[string]interface{}) (ports.Adapter, error) { return ollamaAdapter{}, nil },
		constants.CompatVLLM:        func(map[string]interface{}) (ports.Adapter, error) { return vllmAdapter{}, nil },
		constants.CompatAnthropic:   func(map[string]interface{}) (ports.Adapter, error) { return anthropicAdapter{}, nil },
		constants.CompatModelScope:  func(map[string]interface{}) (ports.Adapter, error) { return modelscopeAdapter{}, nil },
		constants.CompatQwen:        func(map[string]interface{}) (ports.Adapter, error) { return qwenAdapter{}, nil },
		constants.CompatIFlow:       func(map[string]interface{}) (ports.Adapter, error) { return iflowAdapter{}, nil },
	}
	return r
}

// Resolve returns the cached adapter for tag, constructing it on first
// use. A load failure for a non-fatal tag falls back to passthrough with
// a warning; for modelscope/qwen/iflow it is returned as a
// *domain.CompatibilityError instead, per §4.1's fatal-load exception.
func (r *Registry) Resolve(ctx context.Context, tag string, options map[string]interface{}) (ports.Adapter, error) {
	if cached, ok := r.cache.Load(tag); ok {
		return cached, nil
	}

	result, err, _ := r.group.Do(tag, func() (interface{}, error) {
		if cached, ok := r.cache.Load(tag); ok {
			return cached, nil
		}
		ctor, known := r.constructors[tag]
		if !known {
			return r.loadFailed(tag, fmt.Errorf("no adapter registered for tag %q", tag))
		}
		adapter, buildErr := ctor(options)
		if buildErr != nil {
			return r.loadFailed(tag, buildErr)
		}
		r.cache.Store(tag, adapter)
		return adapter, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(ports.Adapter), nil
}

func (r *Registry) loadFailed(tag string, cause error) (ports.Adapter, error) {
	if constants.CompatTagsRequiringFatalLoad[tag] {
		return nil, &domain.CompatibilityError{Tag: tag, Err: cause}
	}
	if r.logger != nil {
		r.logger.Warn("compatibility adapter load failed, falling back to passthrough",
			"tag", tag, "error", cause)
	}
	fallback := passthroughAdapter{}
	r.cache.Store(tag, fallback)
	return fallback, nil
}
