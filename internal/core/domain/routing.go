package domain

// RoutingDecision is produced by the Router layer (§4.5.1) and attached to
// the request context; it is the record of how a client request ended up
// on a particular pipeline.
type RoutingDecision struct {
	OriginalModel      string
	VirtualModel       string
	AvailablePipelines []string
	SelectedPipeline   string
	Reasoning          string
	ProviderType       Protocol
}

// ContentHints carries the request characteristics the virtual-model
// mapper may consult (§3: "mapping may depend on request characteristics
// e.g. token count or presence of images").
type ContentHints struct {
	ApproxTokenCount int
	HasImages        bool
	HasTools         bool
	Priority         RequestPriority
}

// RequestPriority is the per-request priority hint the priority-based
// selection strategy consults (§4.6: "priority=high requests take the
// first, low the last, otherwise the median"). The zero value,
// PriorityNormal, selects the median.
type RequestPriority string

const (
	PriorityNormal RequestPriority = ""
	PriorityHigh   RequestPriority = "high"
	PriorityLow    RequestPriority = "low"
)

// VirtualModelRule is one configured mapping rule: a requested model name
// (or alias) maps to a virtual model, optionally gated by a minimum token
// count (the §9 Open Question on the longContext threshold is resolved by
// making the threshold a per-rule config value rather than a constant;
// see DESIGN.md).
type VirtualModelRule struct {
	RequestedModel   string
	VirtualModel     string
	MinTokens        int
	RequiresImages   bool
}

// VirtualModelMapper resolves a client-requested model name plus content
// hints to a virtual model label. It consults the alias resolver first
// (deterministic, static), then scans rules for the first content-aware
// match, falling back to "default".
type VirtualModelMapper struct {
	aliases *AliasResolver
	rules   []VirtualModelRule
}

func NewVirtualModelMapper(aliases *AliasResolver, rules []VirtualModelRule) *VirtualModelMapper {
	return &VirtualModelMapper{aliases: aliases, rules: rules}
}

func (m *VirtualModelMapper) Resolve(requestedModel string, hints ContentHints) (virtualModel, reasoning string) {
	model := requestedModel
	if m.aliases != nil && m.aliases.IsAlias(model) {
		if resolved, ok := m.aliases.ResolvedVirtualModel(model); ok {
			return resolved, "alias:" + model
		}
	}

	for _, rule := range m.rules {
		if rule.RequestedModel != "" && rule.RequestedModel != model {
			continue
		}
		if rule.RequiresImages && !hints.HasImages {
			continue
		}
		if rule.MinTokens > 0 && hints.ApproxTokenCount < rule.MinTokens {
			continue
		}
		return rule.VirtualModel, "rule:" + rule.VirtualModel
	}

	return "default", "fallback:default"
}
