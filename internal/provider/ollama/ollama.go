// Package ollama implements the Provider interface for Ollama. This is the
// prompt-based adapter: Ollama's chat API carries no tool-call framing for
// most local models, so tool availability is injected into the system
// instructions as a sentinel convention and invocations are recovered from
// the response text.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"loom/internal/provider"
	"loom/internal/provider/textcall"
	"loom/pkg/logger"
)

// Compile-time interface checks.
var (
	_ provider.Provider         = (*Client)(nil)
	_ provider.NativeToolCaller = (*Client)(nil)
)

// Error definitions.
var (
	ErrConnectionFailed = errors.New("failed to connect to Ollama server")
	ErrModelNotFound    = errors.New("model not found")
	ErrInvalidResponse  = errors.New("invalid response from Ollama")
)

// Client talks to an Ollama server.
type Client struct {
	endpoint   string
	model      string
	keepAlive  string
	httpClient *http.Client
}

func init() {
	provider.RegisterFactory("ollama", func(cfg map[string]any) (provider.Provider, error) {
		c := DefaultConfig()
		raw, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encode provider config: %w", err)
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode provider config: %w", err)
		}
		return New(c), nil
	})
}

// New creates an Ollama client.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.KeepAlive == "" {
		cfg.KeepAlive = DefaultKeepAlive
	}

	return &Client{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		model:     cfg.Model,
		keepAlive: cfg.KeepAlive,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "ollama"
}

// NativeToolCalls reports that this adapter recovers tool calls from free
// text rather than wire framing.
func (c *Client) NativeToolCalls() bool {
	return false
}

// Models lists the models installed on the server.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch models: status %d", resp.StatusCode)
	}

	var mr ollamaModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	models := make([]string, 0, len(mr.Models))
	for _, m := range mr.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// Chat sends a streaming chat request and returns the canonical event
// stream. Tool definitions from the request are folded into the system
// instructions and never sent on the wire.
func (c *Client) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	ollamaReq := c.buildRequest(req)

	logger.Debug().Str("model", ollamaReq.Model).
		Int("messages", len(ollamaReq.Messages)).
		Int("tools", len(req.Tools)).
		Msg("Ollama stream request")

	body, err := json.Marshal(ollamaReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, c.handleErrorResponse(resp.StatusCode, respBody)
	}

	known := make(map[string]bool, len(req.Tools))
	for _, t := range req.Tools {
		known[t.Function.Name] = true
	}
	return processStream(resp.Body, known), nil
}

// buildRequest converts a canonical request to an Ollama request, injecting
// the invocation convention and flattening tool traffic to plain text.
func (c *Client) buildRequest(req provider.ChatRequest) *ollamaRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	ollamaReq := &ollamaRequest{
		Model:     model,
		Stream:    true,
		KeepAlive: c.keepAlive,
		Messages:  make([]ollamaMessage, 0, len(req.Messages)+1),
	}

	instructions := textcall.Instructions(req.Tools)
	injected := false

	for _, msg := range req.Messages {
		switch msg.Role {
		case provider.RoleSystem:
			content := msg.Content
			if !injected && instructions != "" {
				content += instructions
				injected = true
			}
			ollamaReq.Messages = append(ollamaReq.Messages, ollamaMessage{
				Role: provider.RoleSystem, Content: content,
			})

		case provider.RoleTool:
			// The model never saw native framing, so results come back as
			// plain user text tagged with the call they answer.
			ollamaReq.Messages = append(ollamaReq.Messages, ollamaMessage{
				Role:    provider.RoleUser,
				Content: fmt.Sprintf("[tool result %s]\n%s", msg.ToolCallID, msg.Content),
			})

		default:
			content := msg.Content
			if msg.Role == provider.RoleAssistant && content == "" && len(msg.ToolCalls) > 0 {
				// Rebuild the invocation text the model emitted so the
				// transcript stays coherent from its point of view.
				var b strings.Builder
				for _, tc := range msg.ToolCalls {
					fmt.Fprintf(&b, "```tool_call\n{\"name\": %q, \"arguments\": %s}\n```\n",
						tc.Name, tc.Arguments)
				}
				content = b.String()
			}
			ollamaReq.Messages = append(ollamaReq.Messages, ollamaMessage{
				Role: msg.Role, Content: content,
			})
		}
	}

	if !injected && instructions != "" {
		ollamaReq.Messages = append([]ollamaMessage{{
			Role: provider.RoleSystem, Content: strings.TrimSpace(instructions),
		}}, ollamaReq.Messages...)
	}

	if req.Temperature > 0 || req.MaxTokens > 0 {
		ollamaReq.Options = &ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		}
	}

	return ollamaReq
}

// handleErrorResponse converts an error response to an appropriate error.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var errResp ollamaErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		if statusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrModelNotFound, errResp.Error)
		}
		return fmt.Errorf("ollama error: %s", errResp.Error)
	}

	switch statusCode {
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusServiceUnavailable:
		return ErrConnectionFailed
	default:
		return fmt.Errorf("ollama returned status %d: %s", statusCode, string(body))
	}
}
