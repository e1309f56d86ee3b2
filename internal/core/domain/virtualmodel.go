package domain

// AliasResolver is the deterministic first-resort step of virtual-model
// mapping: a client-facing model name configured as an alias resolves
// directly to a virtual model before any heuristic rule is consulted.
//
// Adapted from the teacher's endpoint-alias resolver: there an alias
// expanded to a list of interchangeable backend model names; here it
// expands to the one or more virtual models the alias is allowed to
// resolve to, with the first entry taken as primary.
type AliasResolver struct {
	aliases      map[string][]string
	reverseIndex map[string]string
}

// NewAliasResolver mirrors the teacher's constructor: an empty alias table
// is not an error, it simply means no aliasing is configured, so callers
// get back a nil resolver and every IsAlias/ResolvedVirtualModel check
// becomes a cheap nil-receiver no-op.
func NewAliasResolver(aliases map[string][]string) *AliasResolver {
	if len(aliases) == 0 {
		return nil
	}
	r := &AliasResolver{
		aliases:      make(map[string][]string, len(aliases)),
		reverseIndex: make(map[string]string),
	}
	for alias, virtualModels := range aliases {
		if len(virtualModels) == 0 {
			continue
		}
		cp := make([]string, len(virtualModels))
		copy(cp, virtualModels)
		r.aliases[alias] = cp
		for _, vm := range cp {
			if _, exists := r.reverseIndex[vm]; !exists {
				r.reverseIndex[vm] = alias
			}
		}
	}
	return r
}

func (r *AliasResolver) IsAlias(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.aliases[name]
	return ok
}

// ResolvedVirtualModel returns the primary virtual model an alias resolves
// to (the first entry of its configured list).
func (r *AliasResolver) ResolvedVirtualModel(alias string) (string, bool) {
	if r == nil {
		return "", false
	}
	vms, ok := r.aliases[alias]
	if !ok || len(vms) == 0 {
		return "", false
	}
	return vms[0], true
}

// CandidateVirtualModels returns every virtual model the alias may resolve
// to, preserving configured preference order.
func (r *AliasResolver) CandidateVirtualModels(alias string) []string {
	if r == nil {
		return nil
	}
	return r.aliases[alias]
}

// AliasFor returns the alias name that resolves primarily to the given
// virtual model, if one is registered.
func (r *AliasResolver) AliasFor(virtualModel string) (string, bool) {
	if r == nil {
		return "", false
	}
	alias, ok := r.reverseIndex[virtualModel]
	return alias, ok
}
