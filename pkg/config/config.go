// Package config loads streamforge configuration from the config
// directory and environment. Environment variables take precedence over
// file configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults used when neither file nor environment specify a value.
const (
	DefaultAdapter             = "anthropic"
	DefaultRetrievalCap        = 20
	DefaultConfidenceThreshold = 0.7
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string

	DefaultAdapter      string
	DefaultModel        string
	CatalogPath         string
	DataDir             string
	RetrievalCap        int
	ConfidenceThreshold float64
	SourceEndpoints     map[string]string

	ConfigDir string
}

// FileConfig represents the structure of ~/.streamforge/config.yaml
type FileConfig struct {
	APIKeys  APIKeysConfig  `yaml:"api_keys"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Sources  SourcesConfig  `yaml:"sources"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
}

// DefaultsConfig holds adapter and threshold defaults from file.
type DefaultsConfig struct {
	Adapter             string  `yaml:"adapter"`
	Model               string  `yaml:"model"`
	RetrievalCap        int     `yaml:"retrieval_cap"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// SourcesConfig holds catalog and endpoint configuration from file.
type SourcesConfig struct {
	CatalogPath string            `yaml:"catalog_path"`
	Endpoints   map[string]string `yaml:"endpoints"`
}

// Load reads configuration from config files and environment variables.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return load(configDir)
}

// LoadFromDir reads configuration rooted at a specific directory.
func LoadFromDir(configDir string) (*Config, error) {
	if configDir == "" {
		return nil, fmt.Errorf("config directory is required")
	}
	return load(configDir)
}

func load(configDir string) (*Config, error) {
	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey:     getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:        getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:        getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		DefaultAdapter:      getEnvOrDefault("STREAMFORGE_ADAPTER", fileConfig.Defaults.Adapter),
		DefaultModel:        getEnvOrDefault("STREAMFORGE_MODEL", fileConfig.Defaults.Model),
		CatalogPath:         getEnvOrDefault("STREAMFORGE_CATALOG", fileConfig.Sources.CatalogPath),
		DataDir:             getEnvOrDefault("STREAMFORGE_DATA_DIR", ""),
		RetrievalCap:        fileConfig.Defaults.RetrievalCap,
		ConfidenceThreshold: fileConfig.Defaults.ConfidenceThreshold,
		SourceEndpoints:     fileConfig.Sources.Endpoints,
		ConfigDir:           configDir,
	}

	if cfg.DefaultAdapter == "" {
		cfg.DefaultAdapter = DefaultAdapter
	}
	if cfg.RetrievalCap <= 0 {
		cfg.RetrievalCap = DefaultRetrievalCap
	}
	if raw := os.Getenv("STREAMFORGE_THRESHOLD"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("STREAMFORGE_THRESHOLD %q is not a number: %w", raw, err)
		}
		cfg.ConfidenceThreshold = v
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("confidence_threshold must be within (0, 1], got %v", cfg.ConfidenceThreshold)
	}
	if cfg.SourceEndpoints == nil {
		cfg.SourceEndpoints = map[string]string{}
	}

	return cfg, nil
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	default:
		return false
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg // Return empty config if file doesn't exist
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".streamforge")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
