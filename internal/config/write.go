package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// WriteConfig serializes the given Config to YAML and writes it to path.
// Git tokens are never written.
func WriteConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	content := "# codegraph configuration\n" + string(data)
	return os.WriteFile(path, []byte(content), 0o644)
}

// FileName is the config file written by init in dir.
func FileName(dir string) string {
	return filepath.Join(dir, DefaultConfigFile+"."+DefaultConfigType)
}
