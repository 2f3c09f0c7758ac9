package config

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults registers the default value for every configuration key.
func SetDefaults() {
	// Gateway
	viper.SetDefault("gateway.enabled", true)
	viper.SetDefault("gateway.host", "127.0.0.1")
	viper.SetDefault("gateway.port", 8080)
	viper.SetDefault("gateway.rate_limit.enabled", true)
	viper.SetDefault("gateway.rate_limit.requests_per_minute", 60)
	viper.SetDefault("gateway.rate_limit.burst", 10)
	viper.SetDefault("gateway.rate_limit.cleanup_interval", 5*time.Minute)

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.file", "")

	// Provider selection
	viper.SetDefault("provider.default", "ollama")
	viper.SetDefault("provider.enabled", []string{"ollama"})

	// OpenAI-compatible adapter
	viper.SetDefault("openai.endpoint", "https://api.openai.com/v1")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.max_tokens", 16384)
	viper.SetDefault("openai.timeout", "5m")

	// Ollama adapter
	viper.SetDefault("ollama.endpoint", "http://localhost:11434")
	viper.SetDefault("ollama.model", "llama3.2")
	viper.SetDefault("ollama.timeout", "5m")
	viper.SetDefault("ollama.keep_alive", "5m")

	// Conversation loop
	viper.SetDefault("agent.max_iterations", 20)
	viper.SetDefault("agent.max_tool_result_bytes", 65536)

	// Permission gate
	viper.SetDefault("permission.mode", "suggest")
	viper.SetDefault("permission.approval_timeout", 5*time.Minute)

	// Built-in tools
	viper.SetDefault("tools.script_enabled", true)
	viper.SetDefault("tools.script_timeout", 30*time.Second)
}
