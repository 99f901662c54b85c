// config is the package containing configuration for the worker.
package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	ConfigPath    = "/etc/artifactory-worker"
	ConfigName    = "worker-config"
	ConfigType    = "yaml"
	ConfigVersion = "v1"
	EnvPrefix     = "ARTIFACTORY_WORKER"
)

type Config struct {
	// This is expected to be present in a config file (and will not
	// correspond to a flag). If present, it must equal ConfigVersion
	// above.
	ConfigVersion string `mapstructure:"workerConfigVersion"`

	ListenMetrics string `mapstructure:"listenMetrics"`
	Region        string `mapstructure:"region"`

	ActionProvider string        `mapstructure:"actionProvider"`
	ActionVersion  string        `mapstructure:"actionVersion"`
	PollInterval   time.Duration `mapstructure:"pollInterval"`

	TempDir string `mapstructure:"tmpDir"`

	NPM         string        `mapstructure:"npm"`
	NPMRC       string        `mapstructure:"npmrc"`
	NPMCache    string        `mapstructure:"npmCache"`
	HTTPTimeout time.Duration `mapstructure:"httpTimeout"`
}

func (c Config) Validate() error {
	var problems []string
	if c.ConfigVersion != "" && c.ConfigVersion != ConfigVersion {
		problems = append(problems, fmt.Sprintf("config version %q is not supported (expected %q)", c.ConfigVersion, ConfigVersion))
	}
	if c.ActionProvider == "" {
		problems = append(problems, "action provider must not be empty")
	}
	if c.ActionVersion == "" {
		problems = append(problems, "action version must not be empty")
	}
	if c.PollInterval <= 0 {
		problems = append(problems, "poll interval must be positive")
	}
	if c.HTTPTimeout < 0 {
		problems = append(problems, "HTTP timeout must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
