package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/tools"
)

func newToolCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Inspect and invoke tools directly",
	}

	cmd.AddCommand(
		newToolListCommand(),
		newToolRunCommand(),
	)
	return cmd
}

func newToolListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := getCLIContext(cmd)
			if err != nil {
				return err
			}

			a, err := buildAgent(cmd.Context(), cliCtx, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, t := range a.registry.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", t.Name(), t.Description())
			}
			return nil
		},
	}
}

func newToolRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name> [json-args]",
		Short: "Invoke one tool through the permission gate",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := getCLIContext(cmd)
			if err != nil {
				return err
			}

			toolArgs := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
					return fmt.Errorf("parse arguments: %w", err)
				}
			}

			a, err := buildAgent(cmd.Context(), cliCtx, NewTerminalApprover())
			if err != nil {
				return err
			}
			defer a.Close()

			tool, ok := a.registry.Get(args[0])
			if !ok {
				return fmt.Errorf("tool not found: %s", args[0])
			}

			if gated, ok := tool.(tools.Gated); ok {
				for _, req := range gated.Permissions(toolArgs) {
					decision, err := a.gate.Check(cmd.Context(), req)
					if err != nil {
						return err
					}
					if !decision.Allowed {
						return fmt.Errorf("permission denied: %s %s (%s)", req.Kind, req.Target, decision.Reason)
					}
				}
			}

			result, err := a.registry.Execute(cmd.Context(), args[0], toolArgs)
			if err != nil {
				return err
			}
			if result.IsError {
				return fmt.Errorf("%s", result.Content)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Content)
			return nil
		},
	}
}
