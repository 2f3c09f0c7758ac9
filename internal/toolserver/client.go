// Package toolserver connects remote capability servers to the tool
// registry. A server publishes a manifest naming its protocol version and
// tool descriptors; compatible descriptors are converted to the canonical
// schema vocabulary and registered under namespaced names.
package toolserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"loom/pkg/logger"
)

// ProtocolConstraint is the manifest protocol range this client speaks.
const ProtocolConstraint = "^1.0"

// DefaultTimeout bounds manifest fetches and tool calls.
const DefaultTimeout = 30 * time.Second

var (
	// ErrProtocolIncompatible is returned when the server's protocol
	// version falls outside ProtocolConstraint.
	ErrProtocolIncompatible = errors.New("incompatible tool server protocol")

	// ErrServerFailure is returned when the server answers with a
	// non-success status.
	ErrServerFailure = errors.New("tool server request failed")
)

// Manifest is the document a tool server publishes at /manifest.
type Manifest struct {
	Server   string       `json:"server"`
	Protocol string       `json:"protocol"`
	Tools    []Descriptor `json:"tools"`
}

// Config configures a tool server connection.
type Config struct {
	// Name namespaces the server's tools, e.g. "search" registers
	// search.lookup. Required.
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Endpoint is the server base URL. Required.
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// Timeout per request. Zero uses DefaultTimeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// Client talks to one remote tool server.
type Client struct {
	name       string
	endpoint   string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for one server.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("tool server requires a name")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("tool server %s requires an endpoint", cfg.Name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		name:       cfg.Name,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.Component("toolserver").With().Str("server", cfg.Name).Logger(),
	}, nil
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.name }

// Endpoint returns the server base URL.
func (c *Client) Endpoint() string { return c.endpoint }

// FetchManifest retrieves and validates the server manifest. The protocol
// version must parse as semver and satisfy ProtocolConstraint.
func (c *Client) FetchManifest(ctx context.Context) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/manifest", nil)
	if err != nil {
		return nil, fmt.Errorf("build manifest request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest from %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: manifest returned %d", ErrServerFailure, resp.StatusCode)
	}

	var manifest Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decode manifest from %s: %w", c.name, err)
	}

	if err := checkProtocol(manifest.Protocol); err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("protocol", manifest.Protocol).
		Int("tools", len(manifest.Tools)).
		Msg("manifest fetched")
	return &manifest, nil
}

// checkProtocol validates the manifest protocol version.
func checkProtocol(version string) error {
	if version == "" {
		return fmt.Errorf("%w: manifest has no protocol version", ErrProtocolIncompatible)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: cannot parse protocol version %q: %v", ErrProtocolIncompatible, version, err)
	}
	constraint, err := semver.NewConstraint(ProtocolConstraint)
	if err != nil {
		return fmt.Errorf("parse protocol constraint: %w", err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: server speaks %s, client accepts %s", ErrProtocolIncompatible, version, ProtocolConstraint)
	}
	return nil
}

// callRequest is the body of a tool invocation.
type callRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// callResponse is the server's answer to a tool invocation.
type callResponse struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
	Error   string `json:"error,omitempty"`
}

// CallTool invokes a tool by its original (un-namespaced) name.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*callResponse, error) {
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(callRequest{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("encode call request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/tools/call", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", name, c.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read call response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: call %s returned %d: %s", ErrServerFailure, name, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result callResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode call response: %w", err)
	}
	return &result, nil
}
