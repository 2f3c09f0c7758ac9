package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/config"
	"loom/internal/permission"
)

func newModeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Inspect and change the approval mode",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the configured approval mode",
			RunE: func(cmd *cobra.Command, args []string) error {
				cliCtx, err := getCLIContext(cmd)
				if err != nil {
					return err
				}
				mode, err := permission.ParseMode(cliCtx.Config.Permission.Mode)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), mode)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <mode>",
			Short: "Set the approval mode (suggest, auto-edit, full-auto)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				mode, err := permission.ParseMode(args[0])
				if err != nil {
					return err
				}
				if err := config.Set("permission.mode", string(mode)); err != nil {
					return fmt.Errorf("persist mode: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Approval mode set to %s\n", mode)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List approval modes",
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), "suggest    reads are granted, everything else asks")
				fmt.Fprintln(cmd.OutOrStdout(), "auto-edit  reads and workspace writes are granted")
				fmt.Fprintln(cmd.OutOrStdout(), "full-auto  everything classifiable is granted")
				return nil
			},
		},
	)

	return cmd
}
