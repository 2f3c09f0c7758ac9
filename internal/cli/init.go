package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"loom/internal/config"
)

const samplePolicy = `# Permission policy. Reloaded automatically while loom is running.
# Entries only ever widen the allow lists; removing one takes effect on
# the next start.
#
# mode: suggest | auto-edit | full-auto
#
# allow:
#   paths:
#     - /tmp/scratch
#   commands:
#     - git status
#   hosts:
#     - api.example.com
allow: {}
`

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the configuration directory and default files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := getCLIContext(cmd)
			if err != nil {
				return err
			}

			dir := filepath.Dir(cliCtx.ConfigPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}

			if _, err := os.Stat(cliCtx.ConfigPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cliCtx.ConfigPath)
			}

			if err := config.SaveTo(cliCtx.Config, cliCtx.ConfigPath); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cliCtx.ConfigPath)

			policyPath := filepath.Join(dir, "policy.yaml")
			if _, err := os.Stat(policyPath); os.IsNotExist(err) || force {
				if err := os.WriteFile(policyPath, []byte(samplePolicy), 0644); err != nil {
					return fmt.Errorf("write policy: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", policyPath)
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing files")
	return cmd
}
