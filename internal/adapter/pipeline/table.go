// Package pipeline implements C3 (the pipeline table builder) and C4 (the
// pipeline object): expanding routing configuration into the canonical
// (provider, target-model, api-key) pipeline set, and the pre-assembled
// four-module chain each pipeline executes requests through.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/thushan/gateway/internal/config"
	"github.com/thushan/gateway/internal/core/domain"
)

// Descriptor is one row of the pipeline table: everything C3 derives for
// one (provider, model, key-index) triple before a Pipeline object exists.
type Descriptor struct {
	PipelineID              string
	VirtualModels           []string
	Provider                string
	TargetModel             string
	APIKey                  string
	APIKeyIndex             int
	Endpoint                string
	Protocol                domain.Protocol
	TransformerName         string
	ProtocolName            string
	ServerCompatibilityName string
	ServerEndpoint          string
	CustomHeaders           map[string]string
	Timeout                 int
	MaxRetries              int
	Priority                int
	Security                bool
}

// Table is the built pipeline table: the full descriptor list plus the
// grouping by virtual model that the scheduler registers against.
type Table struct {
	Descriptors    []Descriptor
	ByVirtualModel map[string][]string // virtualModel -> ordered pipelineIDs
	Warnings       []string
}

// Build implements §4.3's algorithm: expand every router-map entry into
// one descriptor per API key of the named provider, skipping routes that
// reference an unknown provider with a warning rather than failing the
// whole build.
func Build(cfg *config.Config) (*Table, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: nil config")
	}

	providers := make(map[string]config.ProviderConfig, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers[strings.ToLower(p.Name)] = p
	}

	table := &Table{ByVirtualModel: make(map[string][]string)}
	seen := make(map[string]bool)

	for virtualModel, routeValue := range cfg.Router {
		for _, entry := range domain.RouteEntries(routeValue) {
			providerCfg, ok := providers[strings.ToLower(entry.Provider)]
			if !ok {
				table.Warnings = append(table.Warnings, fmt.Sprintf(
					"router entry %q -> %s,%s: unknown provider, route skipped",
					virtualModel, entry.Provider, entry.Model))
				continue
			}

			keys := providerCfg.NormalizeAPIKeys()
			for idx, key := range keys {
				desc := buildDescriptor(providerCfg, entry.Model, key, idx)
				if !seen[desc.PipelineID] {
					seen[desc.PipelineID] = true
					table.Descriptors = append(table.Descriptors, desc)
				}
				table.ByVirtualModel[virtualModel] = appendUnique(table.ByVirtualModel[virtualModel], desc.PipelineID)
				addVirtualModel(table.Descriptors, desc.PipelineID, virtualModel)
			}
		}
	}

	return table, nil
}

func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}

func addVirtualModel(descriptors []Descriptor, pipelineID, virtualModel string) {
	for i := range descriptors {
		if descriptors[i].PipelineID != pipelineID {
			continue
		}
		for _, vm := range descriptors[i].VirtualModels {
			if vm == virtualModel {
				return
			}
		}
		descriptors[i].VirtualModels = append(descriptors[i].VirtualModels, virtualModel)
		return
	}
}

// buildDescriptor implements §4.3 steps 3-4: pipeline-ID generation, the
// four module-name derivation, and the endpoint-path computation (§4.3
// step 4: append /chat/completions when the endpoint ends in /v1 and no
// specific API path is present).
func buildDescriptor(p config.ProviderConfig, targetModel, apiKey string, keyIndex int) Descriptor {
	protocol := domain.Protocol(p.Protocol)

	transformerName := p.Transformer
	if transformerName == "" {
		if protocol == domain.ProtocolAnthropic {
			transformerName = "passthrough"
		} else {
			transformerName = "anthropic-to-openai"
		}
	}

	return Descriptor{
		PipelineID:              domain.BuildPipelineID(p.Name, targetModel, keyIndex),
		Provider:                p.Name,
		TargetModel:             targetModel,
		APIKey:                  apiKey,
		APIKeyIndex:             keyIndex,
		Endpoint:                p.APIBaseURL,
		Protocol:                protocol,
		TransformerName:         transformerName,
		ProtocolName:            string(protocol),
		ServerCompatibilityName: p.ServerCompatibility.Use,
		ServerEndpoint:          computeServerEndpoint(p.APIBaseURL),
		CustomHeaders:           p.CustomHeaders,
		Timeout:                 p.Timeout,
		MaxRetries:              p.MaxRetries,
		Priority:                p.Priority,
		Security:                p.Security,
	}
}

// computeServerEndpoint appends /chat/completions when the configured
// base URL ends in /v1 and carries no more specific API path already.
func computeServerEndpoint(base string) string {
	trimmed := strings.TrimRight(base, "/")
	if strings.HasSuffix(trimmed, "/v1") {
		return trimmed + "/chat/completions"
	}
	return trimmed
}
