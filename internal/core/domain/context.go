package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// TransformationRecord notes that a named layer ran against the request,
// used to satisfy the testable property that a served request's
// transformations contain at least router, transformer and server in
// chronological order (§8).
type TransformationRecord struct {
	Layer string
	At    time.Time
	Note  string
}

// ProtocolConfig is the sole channel an adapter may use to communicate
// mutations back to the caller (§9: no "__internal" fields on the
// outbound body). Endpoint/APIKey/Timeout are set by the Protocol layer;
// CustomHeaders may be added to by the ServerCompatibility layer's
// adapter and must be copied back into this struct before the layer
// returns.
type ProtocolConfig struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	CustomHeaders map[string]string
}

// RequestContext is the one mutable object carried across layers (§3). It
// is never leaked into the upstream request body.
type RequestContext struct {
	RequestID      string
	StartTime      time.Time
	PerLayerTimings map[string]time.Duration
	Transformations []TransformationRecord
	Errors          []error
	RoutingDecision RoutingDecision
	ProtocolConfig  ProtocolConfig

	// Metadata is free-form per-request state beyond the structured
	// fields above (mirrors the teacher's RequestProfile metadata map),
	// kept concurrency-safe since adapters/layers may run on different
	// goroutines that still share one request's context during
	// concurrent fan-out work such as streaming.
	Metadata *xsync.Map[string, interface{}]
}

// NewRequestContext allocates a fresh per-request context with a unique
// RequestID.
func NewRequestContext() *RequestContext {
	return &RequestContext{
		RequestID:       uuid.NewString(),
		StartTime:       time.Now(),
		PerLayerTimings: make(map[string]time.Duration),
		Metadata:        xsync.NewMap[string, interface{}](),
	}
}

// RecordLayer appends a transformation record and a timing entry for the
// named layer.
func (c *RequestContext) RecordLayer(layer string, started time.Time, note string) {
	c.Transformations = append(c.Transformations, TransformationRecord{
		Layer: layer,
		At:    time.Now(),
		Note:  note,
	})
	c.PerLayerTimings[layer] = time.Since(started)
}

// RecordError appends a layer failure; the caller re-raises it.
func (c *RequestContext) RecordError(err error) {
	c.Errors = append(c.Errors, err)
}

// Failed reports whether any layer recorded an error.
func (c *RequestContext) Failed() bool {
	return len(c.Errors) > 0
}
