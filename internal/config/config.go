package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Version     string             `mapstructure:"version" yaml:"version"`
	Gateway     GatewayConfig      `mapstructure:"gateway" yaml:"gateway"`
	Provider    ProviderConfig     `mapstructure:"provider" yaml:"provider"`
	OpenAI      OpenAIConfig       `mapstructure:"openai" yaml:"openai"`
	Ollama      OllamaConfig       `mapstructure:"ollama" yaml:"ollama"`
	Log         LogConfig          `mapstructure:"log" yaml:"log"`
	Storage     StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Agent       AgentConfig        `mapstructure:"agent" yaml:"agent"`
	Permission  PermissionConfig   `mapstructure:"permission" yaml:"permission"`
	Tools       ToolsConfig        `mapstructure:"tools" yaml:"tools"`
	ToolServers []ToolServerConfig `mapstructure:"tool_servers" yaml:"tool_servers,omitempty"`
}

// GatewayConfig configures the HTTP gateway.
type GatewayConfig struct {
	Enabled   bool            `mapstructure:"enabled" yaml:"enabled"`
	Host      string          `mapstructure:"host" yaml:"host"`
	Port      int             `mapstructure:"port" yaml:"port"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures per-client request throttling.
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// ProviderConfig selects which model adapters are active.
type ProviderConfig struct {
	Default string   `mapstructure:"default" yaml:"default"`
	Enabled []string `mapstructure:"enabled" yaml:"enabled"`
}

// EnabledProviders returns the active adapter identifiers. An empty list
// falls back to the default, then to ollama.
func (c *ProviderConfig) EnabledProviders() []string {
	if len(c.Enabled) > 0 {
		return c.Enabled
	}
	if c.Default != "" {
		return []string{c.Default}
	}
	return []string{"ollama"}
}

// OpenAIConfig configures the OpenAI-compatible adapter.
type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout   string `mapstructure:"timeout" yaml:"timeout"`
}

// OllamaConfig configures the Ollama adapter.
type OllamaConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Model     string `mapstructure:"model" yaml:"model"`
	Timeout   string `mapstructure:"timeout" yaml:"timeout"`
	KeepAlive string `mapstructure:"keep_alive" yaml:"keep_alive"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// StorageConfig configures the persistent allow-list database.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AgentConfig tunes the conversation loop.
type AgentConfig struct {
	Model              string  `mapstructure:"model" yaml:"model,omitempty"`
	SystemPrompt       string  `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
	MaxIterations      int     `mapstructure:"max_iterations" yaml:"max_iterations"`
	MaxToolResultBytes int     `mapstructure:"max_tool_result_bytes" yaml:"max_tool_result_bytes"`
	Temperature        float64 `mapstructure:"temperature" yaml:"temperature,omitempty"`
	MaxTokens          int     `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
}

// PermissionConfig configures the permission gate.
type PermissionConfig struct {
	// Mode is the approval mode: suggest, auto-edit or full-auto.
	Mode string `mapstructure:"mode" yaml:"mode"`

	// PolicyFile pre-seeds the allow lists and is watched for changes.
	PolicyFile string `mapstructure:"policy_file" yaml:"policy_file,omitempty"`

	// ApprovalTimeout bounds how long an escalation waits for an answer.
	ApprovalTimeout time.Duration `mapstructure:"approval_timeout" yaml:"approval_timeout"`

	AllowPaths    []string `mapstructure:"allow_paths" yaml:"allow_paths,omitempty"`
	AllowCommands []string `mapstructure:"allow_commands" yaml:"allow_commands,omitempty"`
	AllowHosts    []string `mapstructure:"allow_hosts" yaml:"allow_hosts,omitempty"`
}

// ToolsConfig tunes the built-in tools.
type ToolsConfig struct {
	// FetchAllowedHosts exempts hosts from the private-address guard.
	FetchAllowedHosts []string `mapstructure:"fetch_allowed_hosts" yaml:"fetch_allowed_hosts,omitempty"`

	// ScriptEnabled registers the JavaScript execution tool.
	ScriptEnabled bool `mapstructure:"script_enabled" yaml:"script_enabled"`

	// ScriptTimeout bounds one script run.
	ScriptTimeout time.Duration `mapstructure:"script_timeout" yaml:"script_timeout"`

	// Scripts are user-defined JavaScript tools.
	Scripts []ScriptConfig `mapstructure:"scripts" yaml:"scripts,omitempty"`
}

// ScriptConfig declares one user-defined JavaScript tool.
type ScriptConfig struct {
	Name        string         `mapstructure:"name" yaml:"name"`
	Description string         `mapstructure:"description" yaml:"description,omitempty"`
	Parameters  map[string]any `mapstructure:"parameters" yaml:"parameters,omitempty"`
	Source      string         `mapstructure:"source" yaml:"source"`
	Timeout     time.Duration  `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// ToolServerConfig describes one remote tool server to bridge at startup.
type ToolServerConfig struct {
	Name     string        `mapstructure:"name" yaml:"name"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

var (
	globalConfig *Config
	configPath   string
	mu           sync.RWMutex
)

// Load reads configuration with precedence ENV > file > defaults.
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("LOOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		expandedPath, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expandedPath

		viper.SetConfigFile(expandedPath)
		if err := viper.ReadInConfig(); err != nil {
			// A missing file is fine; a malformed one is not.
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) && !os.IsNotExist(err) {
				if _, ok := err.(viper.ConfigParseError); ok {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Get returns an arbitrary configuration value by key.
func Get(key string) any {
	return viper.Get(key)
}

// GetString returns a string configuration value.
func GetString(key string) string {
	return viper.GetString(key)
}

// Set stores a value and persists it when a config file path is known.
func Set(key string, value any) error {
	mu.Lock()
	defer mu.Unlock()

	viper.Set(key, value)

	if configPath != "" {
		return save()
	}
	return nil
}

// Save persists the current configuration to the loaded file.
func Save() error {
	mu.Lock()
	defer mu.Unlock()
	return save()
}

// save writes the configuration. Caller holds the lock.
func save() error {
	if configPath == "" {
		return errors.New("config path not set")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return err
	}

	// 0600: the file may hold API keys.
	return os.WriteFile(configPath, data, 0600)
}

// SaveTo writes a configuration to an explicit path.
func SaveTo(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ParseTimeout converts a duration string with a fallback default.
func ParseTimeout(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Validate reports configuration problems that would break startup.
func (c *Config) Validate() error {
	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway port out of range: %d", c.Gateway.Port)
	}
	if c.Agent.MaxIterations < 0 {
		return fmt.Errorf("agent max_iterations must not be negative")
	}
	for _, ts := range c.ToolServers {
		if ts.Name == "" || ts.Endpoint == "" {
			return fmt.Errorf("tool server entries require name and endpoint")
		}
	}
	return nil
}

// Reset clears the loaded state. Intended for tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	configPath = ""
	viper.Reset()
}
