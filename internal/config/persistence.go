// file: internal/config/persistence.go
// version: 2.0.0
// guid: 9c8d7e6f-5a4b-3c2d-1e0f-9a8b7c6d5e4f

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FilePath returns the settings file location inside the data dir.
func (c *Config) FilePath() string {
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.DataDir, "config.yaml")
}

// SaveToFile persists the configuration as YAML. The file may contain API
// keys, so it is written with owner-only permissions.
func (c *Config) SaveToFile() error {
	path := c.FilePath()
	if path == "" {
		return fmt.Errorf("cannot determine config file path")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	log.Printf("[INFO] config: saved to %s", path)
	return nil
}

// LoadFromFile fills in gaps from a previously saved settings file. Values
// already set (by flags or environment) win over file values. A missing or
// unparseable file is not an error.
func (c *Config) LoadFromFile() error {
	path := c.FilePath()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var saved Config
	if err := yaml.Unmarshal(data, &saved); err != nil {
		log.Printf("[WARN] config: cannot parse %s, ignoring: %v", path, err)
		return nil
	}

	applied := 0
	stringFallbacks := map[*string]string{
		&c.RootDir:               saved.RootDir,
		&c.PlaylistDir:           saved.PlaylistDir,
		&c.GoogleBooksAPIKey:     saved.GoogleBooksAPIKey,
		&c.OpenAIAPIKey:          saved.OpenAIAPIKey,
		&c.BasicAuthUsername:     saved.BasicAuthUsername,
		&c.BasicAuthPasswordHash: saved.BasicAuthPasswordHash,
	}
	for ptr, val := range stringFallbacks {
		if *ptr == "" && val != "" {
			*ptr = val
			applied++
		}
	}
	if !c.EnableAIParsing && saved.EnableAIParsing {
		c.EnableAIParsing = true
		applied++
	}
	if !c.BasicAuthEnabled && saved.BasicAuthEnabled {
		c.BasicAuthEnabled = true
		applied++
	}

	if applied > 0 {
		log.Printf("[INFO] config: applied %d settings from %s", applied, path)
	}
	return nil
}
