// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/ersonp/history-map/internal/domain/services"
)

const (
	// DefaultHomeDir is the directory under the user's home holding all state.
	DefaultHomeDir = ".histmap"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// HomeEnv overrides the state directory.
	HomeEnv = "HISTMAP_HOME"

	// DefaultGistFilename is the file inside the gist that holds the events.
	DefaultGistFilename = "history_map_events.json"
	// DefaultGistDescription identifies the gist among the user's gists.
	DefaultGistDescription = "历迹 HistoryMap 数据存储"
)

// Config holds static configuration (read-only after load).
type Config struct {
	LLM     LLMConfig     `yaml:"llm,omitempty"`
	GitHub  GitHubConfig  `yaml:"github,omitempty"`
	Sync    SyncConfig    `yaml:"sync,omitempty"`
	Ingest  IngestConfig  `yaml:"ingest,omitempty"`
	SQLite  SQLiteConfig  `yaml:"sqlite,omitempty"`
	Session SessionConfig `yaml:"session,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// LLMConfig holds configuration for the completion provider.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// GitHubConfig locates the remote gist.
type GitHubConfig struct {
	APIURL          string `yaml:"api_url,omitempty"`
	GistFilename    string `yaml:"gist_filename,omitempty"`
	GistDescription string `yaml:"gist_description,omitempty"`
}

// SyncConfig controls automatic synchronization.
type SyncConfig struct {
	// Debounce is the quiet period after the last edit before an automatic write.
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// IngestConfig controls how completer candidates are merged.
type IngestConfig struct {
	// Dedup applies to name and search batches: "title-year" or "none".
	Dedup string `yaml:"dedup,omitempty"`
}

// SQLiteConfig holds configuration for the local workspace cache.
type SQLiteConfig struct {
	// Path is relative to the home directory unless absolute.
	Path string `yaml:"path,omitempty"`
}

// SessionConfig holds configuration for the credential store.
type SessionConfig struct {
	// Dir is relative to the home directory unless absolute.
	Dir          string `yaml:"dir,omitempty"`
	CacheSizeMax uint64 `yaml:"cache_size_max,omitempty"`
}

// MetricsConfig holds configuration for the Prometheus endpoint.
type MetricsConfig struct {
	// Addr enables the endpoint in the interactive shell, e.g. ":9464".
	Addr string `yaml:"addr,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		GitHub: GitHubConfig{
			GistFilename:    DefaultGistFilename,
			GistDescription: DefaultGistDescription,
		},
		Sync: SyncConfig{
			Debounce: services.DefaultSyncDelay,
		},
		Ingest: IngestConfig{
			Dedup: string(services.DedupTitleYear),
		},
		SQLite: SQLiteConfig{
			Path: "cache.db",
		},
		Session: SessionConfig{
			Dir:          "session",
			CacheSizeMax: 1 << 20,
		},
	}
}

// ResolveHome picks the state directory: the explicit value, then
// $HISTMAP_HOME, then ~/.histmap.
func ResolveHome(explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv(HomeEnv)
	}
	if explicit != "" {
		dir, err := homedir.Expand(explicit)
		if err != nil {
			return "", fmt.Errorf("expanding home directory: %w", err)
		}
		return dir, nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("locating user home directory: %w", err)
	}
	return filepath.Join(home, DefaultHomeDir), nil
}

// Load loads configuration from home. A missing file yields the defaults.
func Load(home string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ConfigFilePath(home))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	if c.Sync.Debounce <= 0 {
		return fmt.Errorf("sync.debounce must be positive, got %s", c.Sync.Debounce)
	}
	if _, err := services.ParseDedupPolicy(c.Ingest.Dedup); err != nil {
		return fmt.Errorf("ingest.dedup: %w", err)
	}
	if c.GitHub.GistFilename == "" {
		return fmt.Errorf("github.gist_filename must not be empty")
	}
	return nil
}

// DedupPolicy returns the parsed merge policy for completer batches.
func (c *Config) DedupPolicy() services.DedupPolicy {
	p, err := services.ParseDedupPolicy(c.Ingest.Dedup)
	if err != nil {
		return services.DedupTitleYear
	}
	return p
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = url
	}
	if url := os.Getenv("GITHUB_API_URL"); url != "" {
		c.GitHub.APIURL = url
	}
	if addr := os.Getenv("HISTMAP_METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
	}
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(home string) string {
	return filepath.Join(home, DefaultConfigFile)
}

// SQLitePath returns the workspace cache database path.
func (c *Config) SQLitePath(home string) string {
	return resolve(home, c.SQLite.Path)
}

// SessionDir returns the credential store directory.
func (c *Config) SessionDir(home string) string {
	return resolve(home, c.Session.Dir)
}

// Exists checks if a config file exists in home.
func Exists(home string) bool {
	_, err := os.Stat(ConfigFilePath(home))
	return err == nil
}

func resolve(home, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(home, path)
}
