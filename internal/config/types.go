// Package config loads the gateway's configuration via viper, matching
// the teacher's mapstructure-tagged, DefaultConfig-backed pattern.
package config

import "time"

// ServerConfig is the external listening surface's settings. The gateway
// core does not open a socket itself, but carries the values so the
// external HTTP collaborator and the pipeline-table debug-file naming
// (keyed by listening port, §4.3 Persistence) can share one source.
type ServerConfig struct {
	Port  int    `mapstructure:"port"`
	Host  string `mapstructure:"host"`
	Debug bool   `mapstructure:"debug"`
}

// ServerCompatibilityConfig is the optional serverCompatibility block of a
// provider descriptor (§6).
type ServerCompatibilityConfig struct {
	Use     string                 `mapstructure:"use"`
	Options map[string]interface{} `mapstructure:"options"`
}

// ProviderConfig is one entry of the configuration's providers list (§6).
// APIKey is read as either a scalar string or a list; NormalizeAPIKeys turns it
// into the always-a-slice form domain.Provider expects.
type ProviderConfig struct {
	Name                string                    `mapstructure:"name"`
	APIBaseURL          string                    `mapstructure:"api_base_url"`
	APIKey              interface{}               `mapstructure:"api_key"`
	Protocol            string                    `mapstructure:"protocol"`
	Transformer         string                    `mapstructure:"transformer"`
	ServerCompatibility ServerCompatibilityConfig `mapstructure:"serverCompatibility"`
	CustomHeaders       map[string]string         `mapstructure:"customHeaders"`
	Timeout             int                       `mapstructure:"timeout"`
	MaxRetries          int                       `mapstructure:"maxRetries"`
	Models              []string                  `mapstructure:"models"`

	// Expanded-routing fields, present only when the expandedRouting form
	// is used (§4.3 step 6).
	Priority int  `mapstructure:"priority"`
	Security bool `mapstructure:"security"`
}

// NormalizeAPIKeys turns the scalar-or-list APIKey field into a slice,
// matching §3's "apiKey (scalar or list)".
func (p ProviderConfig) NormalizeAPIKeys() []string {
	switch v := p.APIKey.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []interface{}:
		keys := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				keys = append(keys, s)
			}
		}
		return keys
	default:
		return nil
	}
}

// SchedulerConfig carries the C6 tunables that spec.md gives defaults for
// (§4.6) but allows overriding. The coordinator applies Strategy,
// MaxErrorCount, BlacklistDuration and HealthCheckPeriod to the scheduler;
// AuthRetryDelay is decoded but not passed on, so the scheduler keeps its
// own 60s default.
type SchedulerConfig struct {
	Strategy          string        `mapstructure:"strategy"`
	MaxErrorCount     int           `mapstructure:"maxErrorCount"`
	BlacklistDuration time.Duration `mapstructure:"blacklistDuration"`
	AuthRetryDelay    time.Duration `mapstructure:"authRetryDelay"`
	HealthCheckPeriod time.Duration `mapstructure:"healthCheckPeriod"`
}

// LoggingConfig mirrors the teacher's logger.Config shape.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	LogDir     string `mapstructure:"logDir"`
	Theme      string `mapstructure:"theme"`
	MaxSize    int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"`
	FileOutput bool   `mapstructure:"fileOutput"`
	PrettyLogs bool   `mapstructure:"prettyLogs"`
}

// VirtualModelRuleConfig configures one VirtualModelMapper rule.
type VirtualModelRuleConfig struct {
	RequestedModel string `mapstructure:"requestedModel"`
	VirtualModel   string `mapstructure:"virtualModel"`
	MinTokens      int    `mapstructure:"minTokens"`
	RequiresImages bool   `mapstructure:"requiresImages"`
}

// Config is the whole merged configuration (§6 External Interfaces).
type Config struct {
	ConfigName string `mapstructure:"-"`
	ConfigFile string `mapstructure:"-"`

	Server    ServerConfig               `mapstructure:"server"`
	Providers []ProviderConfig           `mapstructure:"providers"`
	Router    map[string]string          `mapstructure:"router"`
	Aliases   map[string][]string        `mapstructure:"aliases"`
	VirtualModelRules []VirtualModelRuleConfig `mapstructure:"virtualModelRules"`
	Scheduler SchedulerConfig            `mapstructure:"scheduler"`
	Logging   LoggingConfig              `mapstructure:"logging"`
}

// DefaultConfig mirrors the teacher's config.go: a constructor that fills
// production-sane defaults rather than relying on zero values.
func DefaultConfig() *Config {
	return &Config{
		ConfigName: "gateway",
		Server: ServerConfig{
			Port: 40114,
			Host: "0.0.0.0",
		},
		Scheduler: SchedulerConfig{
			Strategy:          "round-robin",
			MaxErrorCount:     3,
			BlacklistDuration: 300 * time.Second,
			AuthRetryDelay:    60 * time.Second,
			HealthCheckPeriod: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogDir:     "logs",
			Theme:      "dark",
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
			FileOutput: true,
			PrettyLogs: true,
		},
	}
}
