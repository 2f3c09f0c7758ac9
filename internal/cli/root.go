// Package cli implements the loom command line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/config"
	"loom/pkg/logger"
)

// contextKey keys the CLIContext in the command context.
type contextKey struct{}

var (
	flagConfig  string
	flagVerbose bool
	flagQuiet   bool
)

// NewRootCommand builds the root command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "loom",
		Short: "loom is a tool-using agent loop for your terminal",
		Long: `loom runs a conversation loop against a chat model, dispatching the
tool calls the model proposes through a permission gate. Use "loom chat"
for an interactive session or "loom serve" to expose the loop over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// version and help work without configuration.
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}

			path := flagConfig
			if path == "" {
				p, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = p
			}

			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logCfg := logger.LogConfig{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			}
			if flagVerbose {
				logCfg.Level = "debug"
			}
			if flagQuiet {
				logCfg.Level = "error"
			}
			if err := logger.Init(logCfg); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			cliCtx, err := NewCLIContext(cfg, path, flagVerbose, flagQuiet)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, cliCtx))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Close()
		},
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file (default ~/.loom/config.yaml)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "errors only")

	root.AddCommand(
		newVersionCommand(),
		newInitCommand(),
		newConfigCommand(),
		newModeCommand(),
		newChatCommand(),
		newServeCommand(),
		newToolCommand(),
	)

	return root
}

// getCLIContext retrieves the CLIContext placed by PersistentPreRunE.
func getCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx, ok := cmd.Context().Value(contextKey{}).(*CLIContext)
	if !ok || ctx == nil {
		return nil, fmt.Errorf("command context not initialized")
	}
	return ctx, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}
