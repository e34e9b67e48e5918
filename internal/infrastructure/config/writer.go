package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigYAML is the default configuration content.
const DefaultConfigYAML = `# HistoryMap configuration

llm:
  provider: openai
  model: gpt-4o-mini
  # api_key: your-api-key (or set OPENAI_API_KEY env var)
  # base_url: https://api.openai.com/v1 (or set OPENAI_BASE_URL env var)

github:
  # api_url: https://api.github.com/ (or set GITHUB_API_URL env var)
  gist_filename: history_map_events.json
  gist_description: 历迹 HistoryMap 数据存储

sync:
  debounce: 30s

ingest:
  # title-year skips suggested events whose title and year already exist
  dedup: title-year

sqlite:
  path: cache.db

session:
  dir: session

# metrics:
#   addr: ":9464"
`

// WriteDefault creates home and writes a default config file.
func WriteDefault(home string) error {
	configFile := ConfigFilePath(home)

	if err := os.MkdirAll(home, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists: %s", configFile)
	}

	if err := os.WriteFile(configFile, []byte(DefaultConfigYAML), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Write writes the given config to the config file.
func Write(home string, cfg *Config) error {
	if err := os.MkdirAll(home, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(ConfigFilePath(home), data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
