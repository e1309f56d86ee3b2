package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load reads the named config file through viper, applying environment
// overrides with a GATEWAY_ prefix, and wires fsnotify (via viper's
// OnConfigChange) so router/provider edits hot-reload without a restart —
// the same pattern as the teacher's config.Load.
func Load(path string, onConfigChange func(*Config)) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GATEWAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	cfg.ConfigFile = path
	cfg.ConfigName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stripCommentRoutes(cfg)

	if onConfigChange != nil {
		v.OnConfigChange(func(e fsnotify.Event) {
			reloaded := DefaultConfig()
			if err := v.Unmarshal(reloaded); err != nil {
				return
			}
			reloaded.ConfigFile = path
			reloaded.ConfigName = cfg.ConfigName
			stripCommentRoutes(reloaded)
			onConfigChange(reloaded)
		})
		v.WatchConfig()
	}

	return cfg, nil
}

// stripCommentRoutes drops router-map entries whose key starts with "//",
// per §6: "Entries starting with // are comments and must be ignored."
func stripCommentRoutes(cfg *Config) {
	for key := range cfg.Router {
		if strings.HasPrefix(strings.TrimSpace(key), "//") {
			delete(cfg.Router, key)
		}
	}
}

// Validate applies the structural checks C7 runs before touching routing
// (§4.7 step 1, §8 boundary behaviours): an empty provider list is
// config-invalid, not a silent default.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("providers list is empty")
	}
	seen := make(map[string]bool, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Protocol != "openai" && p.Protocol != "anthropic" {
			return fmt.Errorf("provider %q: unsupported protocol %q", p.Name, p.Protocol)
		}
	}
	return nil
}
