// Package openai implements the Provider interface for OpenAI-compatible
// chat completion APIs. This is the structured adapter: the vendor frames
// tool calls natively in the wire protocol, and the adapter normalizes
// fragmented deltas into fully-formed canonical events.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"loom/internal/provider"
	"loom/pkg/logger"
)

// Compile-time interface checks.
var (
	_ provider.Provider         = (*Client)(nil)
	_ provider.NativeToolCaller = (*Client)(nil)
)

// Error definitions.
var (
	ErrConnectionFailed = errors.New("failed to connect to provider API")
	ErrInvalidResponse  = errors.New("invalid response from provider")
	ErrAuthFailed       = errors.New("authentication failed")
)

// Client talks to an OpenAI-compatible endpoint.
type Client struct {
	name         string
	apiKey       string
	endpoint     string
	model        string
	maxTokens    int
	httpClient   *http.Client // non-streaming requests, overall timeout
	streamClient *http.Client // streaming requests, header timeout only
}

func init() {
	provider.RegisterFactory("openai", func(cfg map[string]any) (provider.Provider, error) {
		c, err := configFromMap(cfg)
		if err != nil {
			return nil, err
		}
		return New("openai", c)
	})
}

func configFromMap(m map[string]any) (Config, error) {
	c := DefaultConfig()
	raw, err := json.Marshal(m)
	if err != nil {
		return c, fmt.Errorf("encode provider config: %w", err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("decode provider config: %w", err)
	}
	return c, nil
}

// New creates a client for an OpenAI-compatible endpoint.
func New(name string, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api_key is required", provider.ErrNotConfigured)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		name:      name,
		apiKey:    cfg.APIKey,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		// streamClient has NO overall timeout. http.Client.Timeout includes
		// response body read time, which kills long-running SSE streams.
		// Transport-level timeouts cover connection and headers instead.
		streamClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   15 * time.Second,
				ResponseHeaderTimeout: cfg.Timeout,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// NativeToolCalls reports that this adapter receives tool calls through the
// wire protocol rather than free text.
func (c *Client) NativeToolCalls() bool {
	return true
}

// Models lists the models the endpoint advertises.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, c.handleErrorResponse(resp.StatusCode, body)
	}

	var mr modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	models := make([]string, 0, len(mr.Data))
	for _, m := range mr.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// Chat sends a streaming chat completion request and returns the canonical
// event stream.
func (c *Client) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	chatReq := c.buildRequest(req)

	logger.Debug().Str("provider", c.name).Str("model", chatReq.Model).
		Int("messages", len(chatReq.Messages)).
		Int("tools", len(chatReq.Tools)).
		Msg("Chat stream request")

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, c.handleErrorResponse(resp.StatusCode, respBody)
	}

	return processStream(resp.Body), nil
}

// buildRequest converts a canonical request into the wire format.
func (c *Client) buildRequest(req provider.ChatRequest) *chatRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	chatReq := &chatRequest{
		Model:     model,
		Messages:  make([]chatMessage, 0, len(req.Messages)),
		Stream:    true,
		MaxTokens: maxTokens,
	}
	if req.Temperature > 0 {
		t := req.Temperature
		chatReq.Temperature = &t
	}

	for _, msg := range req.Messages {
		cm := chatMessage{
			Role:       msg.Role,
			ToolCallID: msg.ToolCallID,
		}
		// Assistant messages that only carry tool calls keep Content nil,
		// which marshals to JSON null.
		if msg.Content != "" || msg.Role != provider.RoleAssistant || len(msg.ToolCalls) == 0 {
			cm.Content = strPtr(msg.Content)
		}
		for _, tc := range msg.ToolCalls {
			wtc := chatToolCall{
				Index: tc.Index,
				ID:    tc.ID,
				Type:  "function",
			}
			wtc.Function.Name = tc.Name
			wtc.Function.Arguments = tc.Arguments
			cm.ToolCalls = append(cm.ToolCalls, wtc)
		}
		chatReq.Messages = append(chatReq.Messages, cm)
	}

	for _, t := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	if len(chatReq.Tools) > 0 {
		chatReq.ToolChoice = "auto"
	}

	return chatReq
}

// handleErrorResponse maps an HTTP error status to a provider error.
func (c *Client) handleErrorResponse(status int, body []byte) error {
	var apiErr struct {
		Error *chatRespError `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil {
		msg = apiErr.Error.Message
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
	default:
		return fmt.Errorf("provider API error (HTTP %d): %s", status, msg)
	}
}
