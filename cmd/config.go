package cmd

import (
	"fmt"
	"os"

	"github.com/tanq16/dlbar/internal/progress"
	"gopkg.in/yaml.v3"
)

// loadDisplayConfig reads a YAML display config; keys it leaves out keep
// their defaults.
func loadDisplayConfig(path string) (progress.Config, error) {
	cfg := progress.DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("error reading config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config file: %v", err)
	}
	return cfg, nil
}
