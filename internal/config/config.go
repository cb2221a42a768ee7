// Package config handles AXIOM configuration loading.
//
// Configuration comes from a YAML file (with ${VAR} expansion), an
// optional .env file, and the environment variables the Home Assistant
// add-on sets. Environment overrides are applied after the file is parsed.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from --config) is checked first by FindConfig.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "axiom", "config.yaml"))
	}

	// /config is where the add-on supervisor mounts persistent config.
	paths = append(paths, "/config/axiom.yaml", "/etc/axiom/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the
// process environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Config holds all AXIOM configuration.
type Config struct {
	Listen        ListenConfig        `yaml:"listen"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Models        ModelsConfig        `yaml:"models"`
	OpenAI        OpenAIConfig        `yaml:"openai"`
	Memory        MemoryConfig        `yaml:"memory"`
	Embeddings    EmbeddingsConfig    `yaml:"embeddings"`
	Search        SearchConfig        `yaml:"search"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	FileSorter    FileSorterConfig    `yaml:"filesorter"`
	RateLimit     RateLimitConfig     `yaml:"ratelimit"`
	DataDir       string              `yaml:"data_dir"`
	LogLevel      string              `yaml:"log_level"`
	LogFormat     string              `yaml:"log_format"` // text or json
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// HomeAssistantConfig defines HA connection settings. URL is the base
// address without the /api suffix.
type HomeAssistantConfig struct {
	URL                string `yaml:"url"`
	Token              string `yaml:"token"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// Configured reports whether both URL and token are present.
func (c HomeAssistantConfig) Configured() bool {
	return c.URL != "" && c.Token != ""
}

// ModelsConfig selects the language models.
type ModelsConfig struct {
	OllamaURL string `yaml:"ollama_url"`
	Default   string `yaml:"default"`
	// Custom, when set, replaces Default for prompts that don't name a model.
	Custom  string        `yaml:"custom"`
	Vision  string        `yaml:"vision"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// PromptModel returns the model used when a request doesn't name one.
func (c ModelsConfig) PromptModel() string {
	if c.Custom != "" {
		return c.Custom
	}
	return c.Default
}

// BreakerConfig tunes the per-provider circuit breaker.
type BreakerConfig struct {
	MaxFailures    uint32 `yaml:"max_failures"`
	OpenTimeoutSec int    `yaml:"open_timeout_sec"`
}

// OpenAIConfig configures an OpenAI-compatible provider. Models named
// "openai/<name>" are routed to it.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// Configured reports whether the provider has credentials.
func (c OpenAIConfig) Configured() bool {
	return c.APIKey != ""
}

// MemoryConfig selects the long-term vector memory backend.
type MemoryConfig struct {
	// Backend is "sqlite", "postgres", or "" to disable memory.
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"` // sqlite database file
	DSN     string `yaml:"dsn"`  // postgres connection string
	TopK    int    `yaml:"top_k"`
}

// EmbeddingsConfig defines embedding generation settings.
type EmbeddingsConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseurl"` // defaults to models.ollama_url
}

// SearchConfig configures web search providers.
type SearchConfig struct {
	Default    string           `yaml:"default"`
	MaxResults int              `yaml:"max_results"`
	SearXNG    SearXNGConfig    `yaml:"searxng"`
	Brave      BraveConfig      `yaml:"brave"`
	DuckDuckGo DuckDuckGoConfig `yaml:"duckduckgo"`
}

// SearXNGConfig points at a self-hosted SearXNG instance.
type SearXNGConfig struct {
	URL string `yaml:"url"`
}

// Configured reports whether the provider has a URL.
func (c SearXNGConfig) Configured() bool { return c.URL != "" }

// BraveConfig holds the Brave Search API key.
type BraveConfig struct {
	APIKey string `yaml:"api_key"`
}

// Configured reports whether the provider has a key.
func (c BraveConfig) Configured() bool { return c.APIKey != "" }

// DuckDuckGoConfig controls the keyless DuckDuckGo HTML provider.
type DuckDuckGoConfig struct {
	Disabled bool   `yaml:"disabled"`
	URL      string `yaml:"url"`
}

// MQTTConfig configures the broker connection and the two bridges.
type MQTTConfig struct {
	Broker          string             `yaml:"broker"`
	Username        string             `yaml:"username"`
	Password        string             `yaml:"password"`
	ClientID        string             `yaml:"client_id"`
	DiscoveryPrefix string             `yaml:"discovery_prefix"`
	PromptBridge    PromptBridgeConfig `yaml:"prompt_bridge"`
	SwitchLights    SwitchLightsConfig `yaml:"switch_lights"`
}

// Configured reports whether a broker is set.
func (c MQTTConfig) Configured() bool { return c.Broker != "" }

// PromptBridgeConfig exposes the orchestrator over MQTT.
type PromptBridgeConfig struct {
	Enabled           bool   `yaml:"enabled"`
	RequestTopic      string `yaml:"request_topic"`
	ResponseTopic     string `yaml:"response_topic"`
	AvailabilityTopic string `yaml:"availability_topic"`
}

// SwitchLightsConfig mirrors switch entities as MQTT lights.
type SwitchLightsConfig struct {
	Enabled   bool     `yaml:"enabled"`
	ResyncSec int      `yaml:"resync_sec"`
	Exclude   []string `yaml:"exclude"`
}

// FileSorterConfig configures the file ingest pipeline.
type FileSorterConfig struct {
	Enabled     bool   `yaml:"enabled"`
	DestRoot    string `yaml:"dest_root"`
	MaxImageDim int    `yaml:"max_image_dim"`

	// Roots names directories that requests may reference as
	// "<name>:<relative path>", e.g. share: /share.
	Roots map[string]string `yaml:"roots"`
}

// RateLimitConfig throttles the prompt endpoint. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Load reads configuration from a YAML file, expands ${VAR} references,
// applies environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.ApplyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. It is used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8099
	}
	c.HomeAssistant.URL = strings.TrimSuffix(strings.TrimRight(c.HomeAssistant.URL, "/"), "/api")
	if c.Models.OllamaURL == "" {
		c.Models.OllamaURL = "http://localhost:11434"
	}
	if c.Models.Default == "" {
		c.Models.Default = "llama3"
	}
	if c.Models.Vision == "" {
		c.Models.Vision = "llava"
	}
	if c.Models.Breaker.MaxFailures == 0 {
		c.Models.Breaker.MaxFailures = 5
	}
	if c.Models.Breaker.OpenTimeoutSec == 0 {
		c.Models.Breaker.OpenTimeoutSec = 30
	}
	if c.Memory.TopK == 0 {
		c.Memory.TopK = 3
	}
	if c.Memory.Backend == "sqlite" && c.Memory.Path == "" {
		c.Memory.Path = filepath.Join(c.DataPath(), "memory.db")
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "nomic-embed-text"
	}
	if c.Embeddings.BaseURL == "" {
		c.Embeddings.BaseURL = c.Models.OllamaURL
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 5
	}
	if c.Search.Default == "" {
		c.Search.Default = "duckduckgo"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "axiom"
	}
	if c.MQTT.DiscoveryPrefix == "" {
		c.MQTT.DiscoveryPrefix = "homeassistant"
	}
	if c.MQTT.PromptBridge.RequestTopic == "" {
		c.MQTT.PromptBridge.RequestTopic = "central_ai/prompt/request"
	}
	if c.MQTT.PromptBridge.ResponseTopic == "" {
		c.MQTT.PromptBridge.ResponseTopic = "central_ai/prompt/response"
	}
	if c.MQTT.PromptBridge.AvailabilityTopic == "" {
		c.MQTT.PromptBridge.AvailabilityTopic = "central_ai/availability"
	}
	if c.MQTT.SwitchLights.ResyncSec == 0 {
		c.MQTT.SwitchLights.ResyncSec = 10
	}
	if c.FileSorter.MaxImageDim == 0 {
		c.FileSorter.MaxImageDim = 1024
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 1
	}
}

// DataPath returns the directory for local state, "./data" by default.
func (c *Config) DataPath() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return "./data"
}

// ApplyEnv overrides file values with the add-on environment variables.
func (c *Config) ApplyEnv() {
	setFromEnv(&c.Models.OllamaURL, "OLLAMA_URL")
	setFromEnv(&c.Models.Default, "DEFAULT_MODEL")
	setFromEnv(&c.Models.Custom, "CUSTOM_MODEL")
	setFromEnv(&c.HomeAssistant.URL, "HA_API_URL")
	setFromEnv(&c.HomeAssistant.Token, "SUPERVISOR_TOKEN")
	setFromEnv(&c.HomeAssistant.Token, "HA_API_TOKEN")
	setFromEnv(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setFromEnv(&c.MQTT.Broker, "MQTT_BROKER")
	setFromEnv(&c.MQTT.Username, "MQTT_USERNAME")
	setFromEnv(&c.MQTT.Password, "MQTT_PASSWORD")
	setFromEnv(&c.LogLevel, "AXIOM_LOG_LEVEL")
}

func setFromEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate checks for values that would fail later at runtime.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format %q (valid: text, json)", c.LogFormat)
	}
	switch c.Memory.Backend {
	case "", "sqlite":
	case "postgres":
		if c.Memory.DSN == "" {
			return errors.New("memory.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("memory.backend %q (valid: sqlite, postgres)", c.Memory.Backend)
	}
	if (c.MQTT.PromptBridge.Enabled || c.MQTT.SwitchLights.Enabled) && !c.MQTT.Configured() {
		return errors.New("mqtt.broker is required when an MQTT bridge is enabled")
	}
	if c.FileSorter.Enabled && c.FileSorter.DestRoot == "" {
		return errors.New("filesorter.dest_root is required when the file sorter is enabled")
	}
	return nil
}
