package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ArtefactModule mirrors one entry of a persisted pipeline's four-module
// architecture descriptor (§6 Persisted state).
type ArtefactModule struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Status   string `json:"status,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// ArtefactPipeline is one persisted pipeline entry.
type ArtefactPipeline struct {
	ID            string           `json:"id"`
	VirtualModels []string         `json:"virtualModels"`
	Provider      string           `json:"provider"`
	TargetModel   string           `json:"targetModel"`
	Status        string           `json:"status"`
	Modules       []ArtefactModule `json:"modules"`
}

// Artefact is the full persisted table (§4.3 Persistence / §6 Persisted
// state): configName, configFile, generatedAt, totalPipelines,
// pipelinesGroupedByVirtualModel, allPipelines[].
type Artefact struct {
	ConfigName                     string                      `json:"configName"`
	ConfigFile                     string                      `json:"configFile"`
	GeneratedAt                    time.Time                   `json:"generatedAt"`
	TotalPipelines                 int                         `json:"totalPipelines"`
	PipelinesGroupedByVirtualModel map[string][]string         `json:"pipelinesGroupedByVirtualModel"`
	AllPipelines                   []ArtefactPipeline          `json:"allPipelines"`
}

// BuildArtefact assembles the persisted-state shape from a built table and
// its instantiated pipelines.
func BuildArtefact(configName, configFile string, table *Table, pipelines []*Pipeline) Artefact {
	byID := make(map[string]*Pipeline, len(pipelines))
	for _, p := range pipelines {
		byID[p.ID()] = p
	}

	entries := make([]ArtefactPipeline, 0, len(table.Descriptors))
	for _, desc := range table.Descriptors {
		status := "initializing"
		if p, ok := byID[desc.PipelineID]; ok {
			status = p.Descriptor().Status().String()
		}
		modules := []ArtefactModule{
			{Name: desc.TransformerName, Type: "transformer"},
			{Name: desc.ProtocolName, Type: "protocol"},
			{Name: desc.ServerCompatibilityName, Type: "serverCompatibility"},
			{Name: "server", Type: "server", Endpoint: desc.ServerEndpoint},
		}
		entries = append(entries, ArtefactPipeline{
			ID:            desc.PipelineID,
			VirtualModels: desc.VirtualModels,
			Provider:      desc.Provider,
			TargetModel:   desc.TargetModel,
			Status:        status,
			Modules:       modules,
		})
	}

	return Artefact{
		ConfigName:                     configName,
		ConfigFile:                     configFile,
		GeneratedAt:                    time.Now(),
		TotalPipelines:                 len(table.Descriptors),
		PipelinesGroupedByVirtualModel: table.ByVirtualModel,
		AllPipelines:                   entries,
	}
}

// Persist writes the artefact twice per §4.3: a stable path for
// inspection, and a timestamped file under a debug-log directory keyed by
// listening port. Write failures do not abort initialization — each is
// returned but the caller may choose to only log them.
func Persist(artefact Artefact, stablePath, debugLogDir string, port int) []error {
	var errs []error

	encoded, err := json.MarshalIndent(artefact, "", "  ")
	if err != nil {
		return []error{fmt.Errorf("pipeline: encoding artefact: %w", err)}
	}

	if stablePath != "" {
		if err := os.WriteFile(stablePath, encoded, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: writing stable table %s: %w", stablePath, err))
		}
	}

	if debugLogDir != "" {
		if err := os.MkdirAll(debugLogDir, 0o755); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: creating debug log dir %s: %w", debugLogDir, err))
		} else {
			name := fmt.Sprintf("pipeline-table-%d-%s.json", port, artefact.GeneratedAt.Format("20060102-150405"))
			debugPath := filepath.Join(debugLogDir, name)
			if err := os.WriteFile(debugPath, encoded, 0o644); err != nil {
				errs = append(errs, fmt.Errorf("pipeline: writing debug table %s: %w", debugPath, err))
			}
		}
	}

	return errs
}
