package command

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/adamavenir/coverchat/internal/core"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [key] [value]",
		Short: "Get or set configuration",
		Long: "Get or set settings stored in config.yaml. Environment variables and\n" +
			"command-line flags still override the saved values.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonMode, _ := cmd.Flags().GetBool("json")
			dataDir, _ := cmd.Flags().GetString("data-dir")

			cfg, err := core.LoadConfigFile(dataDir)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			entries, err := configEntries(cfg)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				if jsonMode {
					return json.NewEncoder(out).Encode(entries)
				}
				keys := make([]string, 0, len(entries))
				for key := range entries {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				fmt.Fprintln(out, "Configuration:")
				for _, key := range keys {
					fmt.Fprintf(out, "  %s: %s\n", key, entries[key])
				}
				return nil
			}

			key := normalizeConfigKey(args[0])
			if len(args) == 1 {
				value, ok := entries[key]
				if !ok {
					return writeCommandError(cmd, fmt.Errorf("config key '%s' not found", args[0]))
				}
				if jsonMode {
					return json.NewEncoder(out).Encode(map[string]string{key: value})
				}
				fmt.Fprintf(out, "%s: %s\n", key, value)
				return nil
			}

			if err := cfg.Set(key, args[1]); err != nil {
				return writeCommandError(cmd, err)
			}
			if err := cfg.Validate(); err != nil {
				return writeCommandError(cmd, err)
			}
			if err := core.SaveConfig(cfg); err != nil {
				return writeCommandError(cmd, err)
			}
			if jsonMode {
				return json.NewEncoder(out).Encode(map[string]string{key: args[1]})
			}
			fmt.Fprintf(out, "Set %s = %s\n", key, args[1])
			return nil
		},
	}

	return cmd
}

// configEntries flattens the persisted settings to their YAML spelling.
func configEntries(cfg *core.Config) (map[string]string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	entries := make(map[string]string, len(raw))
	for key, value := range raw {
		entries[key] = fmt.Sprint(value)
	}
	return entries, nil
}

func normalizeConfigKey(value string) string {
	return strings.ReplaceAll(value, "-", "_")
}
