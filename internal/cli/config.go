package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"loom/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change configuration",
	}

	cmd.AddCommand(
		newConfigGetCommand(),
		newConfigSetCommand(),
		newConfigListCommand(),
	)
	return cmd
}

func newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.Get(args[0])
			if v == nil {
				return fmt.Errorf("unknown key: %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value and persist it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Set(args[0], args[1]); err != nil {
				return fmt.Errorf("set %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			return nil
		},
	}
}

func newConfigListCommand() *cobra.Command {
	var flat bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := getCLIContext(cmd)
			if err != nil {
				return err
			}

			if flat {
				keys := flattenKeys("", cliCtx.Config)
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", k, config.Get(k))
				}
				return nil
			}

			data, err := yaml.Marshal(cliCtx.Config)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&flat, "flat", false, "print as key = value lines")
	return cmd
}

// flattenKeys walks the marshalled config to enumerate dotted keys.
func flattenKeys(prefix string, cfg *config.Config) []string {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil
	}
	return walkKeys(prefix, tree)
}

func walkKeys(prefix string, node map[string]any) []string {
	var keys []string
	for k, v := range node {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			keys = append(keys, walkKeys(full, child)...)
			continue
		}
		keys = append(keys, full)
	}
	return keys
}
