package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// configKeys are the settings the CLI reads from its config file
var configKeys = []string{"server_url", "output", "db_driver", "db_path", "context", "manifest_dir", "log_level"}

func newConfigCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
	}

	cmd.AddCommand(newConfigInitCmd(o))
	cmd.AddCommand(newConfigSetCmd(o))
	cmd.AddCommand(newConfigGetCmd(o))
	cmd.AddCommand(newConfigListCmd(o))

	return cmd
}

func newConfigInitCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive first-time setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			prompt := func(label, def string) string {
				fmt.Fprintf(out, "%s [%s]: ", label, def)
				v, _ := reader.ReadString('\n')
				if v = strings.TrimSpace(v); v == "" {
					return def
				}
				return v
			}

			o.v.Set("server_url", prompt("Enter server URL", o.v.GetString("server_url")))
			o.v.Set("output", prompt("Default output format (table/json/yaml)", getOutputFormat(o)))
			o.v.Set("db_path", prompt("Local database path", "./snapdrift.db"))
			o.v.Set("context", prompt("Default cluster context", "default"))

			path, err := o.writeConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Configuration saved to %s\n", path)
			return nil
		},
	}
}

func newConfigSetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !knownConfigKey(args[0]) {
				return fmt.Errorf("unknown config key %q, want one of %s", args[0], strings.Join(configKeys, ", "))
			}
			o.v.Set(args[0], args[1])
			if _, err := o.writeConfig(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
			return nil
		},
	}
}

func newConfigGetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val := o.v.Get(args[0])
			if val == nil || val == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: (not set)\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", args[0], val)
			}
			return nil
		},
	}
}

func newConfigListCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all configuration values",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := o.v.AllSettings()
			keys := make([]string, 0, len(settings))
			for k := range settings {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", k, settings[k])
			}
			return nil
		},
	}
}

func knownConfigKey(key string) bool {
	for _, k := range configKeys {
		if k == key {
			return true
		}
	}
	return false
}

// writeConfig persists the config file, creating its directory if needed
func (o *options) writeConfig() (string, error) {
	path := o.cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := o.v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}
