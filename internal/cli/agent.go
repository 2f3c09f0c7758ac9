package cli

import (
	"context"
	"fmt"
	"time"

	"loom/internal/config"
	"loom/internal/permission"
	"loom/internal/provider"
	"loom/internal/provider/ollama"
	"loom/internal/provider/openai"
	"loom/internal/runner"
	"loom/internal/storage"
	"loom/internal/tools"
	"loom/internal/tools/builtin"
	"loom/internal/toolserver"
	"loom/pkg/logger"
)

// agent bundles the wired conversation loop and the resources behind it.
type agent struct {
	provider provider.Provider
	registry *tools.Registry
	gate     *permission.Gate
	runner   *runner.Runner

	store   *storage.Store
	watcher *permission.PolicyWatcher
	bridge  *toolserver.Bridge
}

// Close releases agent resources.
func (a *agent) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close allow-list store")
		}
	}
}

// buildAgent wires providers, tools, the permission gate and the loop
// from configuration. The approver handles gate escalations; nil means
// anything policy does not grant is refused.
func buildAgent(ctx context.Context, cliCtx *CLIContext, approver permission.Approver) (*agent, error) {
	cfg := cliCtx.Config

	prov, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	registry, bridge, err := buildRegistry(ctx, cfg, cliCtx.WorkDir)
	if err != nil {
		return nil, err
	}

	store := openStore(cfg, cliCtx.WorkDir)

	gate, watcher, err := buildGate(cfg, cliCtx.WorkDir, approver, store)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	r := runner.New(prov, registry, gate, runner.Config{
		Model:              cfg.Agent.Model,
		SystemPrompt:       cfg.Agent.SystemPrompt,
		MaxIterations:      cfg.Agent.MaxIterations,
		MaxToolResultBytes: cfg.Agent.MaxToolResultBytes,
		Temperature:        cfg.Agent.Temperature,
		MaxTokens:          cfg.Agent.MaxTokens,
	})

	return &agent{
		provider: prov,
		registry: registry,
		gate:     gate,
		runner:   r,
		store:    store,
		watcher:  watcher,
		bridge:   bridge,
	}, nil
}

// buildProvider registers every enabled adapter and returns the default.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	for _, name := range cfg.Provider.EnabledProviders() {
		switch name {
		case "openai":
			p, err := openai.New("openai", openai.Config{
				APIKey:    cfg.OpenAI.APIKey,
				Endpoint:  cfg.OpenAI.Endpoint,
				Model:     cfg.OpenAI.Model,
				MaxTokens: cfg.OpenAI.MaxTokens,
				Timeout:   config.ParseTimeout(cfg.OpenAI.Timeout, 5*time.Minute),
			})
			if err != nil {
				logger.Warn().Err(err).Msg("OpenAI provider not available")
				continue
			}
			provider.Register(p)

		case "ollama":
			provider.Register(ollama.New(ollama.Config{
				Endpoint:  cfg.Ollama.Endpoint,
				Model:     cfg.Ollama.Model,
				Timeout:   config.ParseTimeout(cfg.Ollama.Timeout, 5*time.Minute),
				KeepAlive: cfg.Ollama.KeepAlive,
			}))

		default:
			logger.Warn().Str("provider", name).Msg("Unknown provider in config")
		}
	}

	if cfg.Provider.Default != "" {
		provider.SetDefault(cfg.Provider.Default)
	}

	prov := provider.Default()
	if prov == nil {
		return nil, fmt.Errorf("no provider configured; run \"loom init\" and set one up")
	}
	return prov, nil
}

// buildRegistry assembles the tool catalogue: builtins, configured
// script tools and remote tool servers.
func buildRegistry(ctx context.Context, cfg *config.Config, workDir string) (*tools.Registry, *toolserver.Bridge, error) {
	registry := builtin.NewRegistry(workDir)

	if len(cfg.Tools.FetchAllowedHosts) > 0 {
		if t, ok := registry.Get("fetch"); ok {
			if ft, ok := t.(*builtin.FetchTool); ok {
				ft.AllowedHosts = cfg.Tools.FetchAllowedHosts
			}
		}
	}

	if cfg.Tools.ScriptEnabled {
		for _, sc := range cfg.Tools.Scripts {
			timeout := sc.Timeout
			if timeout == 0 {
				timeout = cfg.Tools.ScriptTimeout
			}
			tool, err := tools.NewScriptTool(tools.ScriptDefinition{
				Name:        sc.Name,
				Description: sc.Description,
				Parameters:  sc.Parameters,
				Source:      sc.Source,
				Timeout:     timeout,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("script tool %q: %w", sc.Name, err)
			}
			if err := registry.Register(tool); err != nil {
				return nil, nil, fmt.Errorf("register script tool %q: %w", sc.Name, err)
			}
		}
	}

	bridge := toolserver.NewBridge(registry)
	for _, ts := range cfg.ToolServers {
		client, err := toolserver.NewClient(toolserver.Config{
			Name:     ts.Name,
			Endpoint: ts.Endpoint,
			Timeout:  ts.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("tool server %q: %w", ts.Name, err)
		}
		// An unreachable server degrades the catalogue, not the session.
		if err := bridge.Connect(ctx, client); err != nil {
			logger.Warn().Err(err).Str("server", ts.Name).Msg("Tool server unavailable")
		}
	}

	return registry, bridge, nil
}

// openStore opens the persisted allow list. Failure is non-fatal: the
// session runs without remembered approvals.
func openStore(cfg *config.Config, workDir string) *storage.Store {
	path := cfg.Storage.Path
	if path == "" {
		p, err := config.DefaultDataPath()
		if err != nil {
			logger.Warn().Err(err).Msg("Cannot resolve data path")
			return nil
		}
		path = p
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		logger.Warn().Err(err).Msg("Cannot expand data path")
		return nil
	}

	store, err := storage.Open(expanded, workDir)
	if err != nil {
		logger.Warn().Err(err).Str("path", expanded).Msg("Approvals will not be persisted")
		return nil
	}
	return store
}

// buildGate creates the permission gate and starts the policy watcher
// when a policy file is configured.
func buildGate(cfg *config.Config, workDir string, approver permission.Approver, store *storage.Store) (*permission.Gate, *permission.PolicyWatcher, error) {
	mode, err := permission.ParseMode(cfg.Permission.Mode)
	if err != nil {
		return nil, nil, err
	}

	gateCfg := permission.Config{
		Mode:          mode,
		WorkDir:       workDir,
		AllowPaths:    cfg.Permission.AllowPaths,
		AllowCommands: cfg.Permission.AllowCommands,
		AllowHosts:    cfg.Permission.AllowHosts,
		Approver:      approver,
	}
	if store != nil {
		gateCfg.Store = store
	}

	gate, err := permission.NewGate(gateCfg)
	if err != nil {
		return nil, nil, err
	}

	policyPath := cfg.Permission.PolicyFile
	if policyPath == "" {
		if p, err := config.DefaultPolicyPath(); err == nil {
			policyPath = p
		}
	}
	if policyPath == "" {
		return gate, nil, nil
	}
	expanded, err := config.ExpandPath(policyPath)
	if err != nil {
		return nil, nil, err
	}

	watcher, err := permission.NewPolicyWatcher(gate, expanded)
	if err != nil {
		logger.Warn().Err(err).Msg("Policy watching disabled")
		return gate, nil, nil
	}
	if err := watcher.Start(); err != nil {
		watcher.Stop()
		return nil, nil, fmt.Errorf("apply policy %s: %w", expanded, err)
	}

	return gate, watcher, nil
}
