package domain

import "strings"

// Protocol is the wire protocol a provider speaks (§3 Provider descriptor).
type Protocol string

const (
	ProtocolOpenAI    Protocol = "openai"
	ProtocolAnthropic Protocol = "anthropic"
)

// ServerCompatibility names the per-provider adapter tag and any options
// passed through to it, resolved at the ServerCompatibility layer (§4.1).
type ServerCompatibility struct {
	Use     string
	Options map[string]interface{}
}

// Provider is the provider descriptor from §3: one upstream account, one
// or more API keys, and the hints needed to build pipelines against it.
type Provider struct {
	Name                string
	APIBaseURL          string
	APIKeys             []string // always normalised to a slice, even for a single scalar key
	Protocol            Protocol
	TransformerHint     string
	ServerCompatibility ServerCompatibility
	CustomHeaders       map[string]string
	Timeout             int // seconds; 0 means use the default
	MaxRetries          int
	Models              []string

	// Expanded-routing fields (§4.3 step 6). Selection orders by Priority
	// only; Security is carried as data and no selection code reads it, so
	// a security-enhanced provider is preferred only when it also has the
	// higher Priority (see DESIGN.md).
	Priority int
	Security bool
}

// RouteEntry is one (provider-name, target-model-name) pair from a parsed
// router-map value (§3 Route entry).
type RouteEntry struct {
	Provider string
	Model    string
}

// RouteEntries parses a semicolon/comma delimited router value such as
// "p1,m1;p2,m2" into ordered route entries, per §4.3 step 1. Comment
// lines (handled by the config loader, which drops keys starting with
// "//") are not this function's concern.
func RouteEntries(value string) []RouteEntry {
	var entries []RouteEntry
	for _, segment := range splitAndTrim(value, ";") {
		parts := splitAndTrim(segment, ",")
		if len(parts) != 2 {
			continue
		}
		entries = append(entries, RouteEntry{Provider: parts[0], Model: parts[1]})
	}
	return entries
}

func splitAndTrim(s, sep string) []string {
	raw := strings.Split(s, sep)
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
