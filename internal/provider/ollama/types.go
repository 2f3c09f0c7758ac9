package ollama

import "time"

// Default configuration values.
const (
	DefaultEndpoint  = "http://localhost:11434"
	DefaultModel     = "llama3.2"
	DefaultTimeout   = 5 * time.Minute
	DefaultKeepAlive = "5m"
)

// Config holds the adapter configuration.
type Config struct {
	Endpoint  string        `json:"endpoint" mapstructure:"endpoint"`
	Model     string        `json:"model" mapstructure:"model"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	KeepAlive string        `json:"keep_alive" mapstructure:"keep_alive"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint:  DefaultEndpoint,
		Model:     DefaultModel,
		Timeout:   DefaultTimeout,
		KeepAlive: DefaultKeepAlive,
	}
}

// --- Ollama API types ---

// ollamaRequest is the /api/chat request body. Tool definitions are never
// sent: this adapter carries the invocation convention in the system prompt
// and mines the response text instead.
type ollamaRequest struct {
	Model     string          `json:"model"`
	Messages  []ollamaMessage `json:"messages"`
	Stream    bool            `json:"stream"`
	KeepAlive string          `json:"keep_alive,omitempty"`
	Options   *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ollamaChunk is one NDJSON line of a streaming /api/chat response.
type ollamaChunk struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason,omitempty"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
	Error           string        `json:"error,omitempty"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

type ollamaModelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
