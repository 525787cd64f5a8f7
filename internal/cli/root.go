package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pratik-mahalle/snapdrift/internal/config"
	"github.com/pratik-mahalle/snapdrift/pkg/client"
)

// options is shared by every subcommand of one root command
type options struct {
	cfgFile      string
	outputFormat string
	noColor      bool
	serverURL    string

	v   *viper.Viper
	app *app
}

// NewRootCmd builds the snapdrift command tree
func NewRootCmd() *cobra.Command {
	o := &options{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "snapdrift",
		Short: "snapdrift - cluster snapshot history and drift analysis",
		Long: `snapdrift captures point-in-time snapshots of cluster resources, records
what was created, updated or deleted between snapshots, and reports drift,
stability and health over time.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := o.initConfig(); err != nil {
				return err
			}
			switch getOutputFormat(o) {
			case "table", "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unknown output format %q, want table, json or yaml", getOutputFormat(o))
			}
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return o.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&o.cfgFile, "config", "", "config file (default $HOME/.snapdrift/config.yaml)")
	flags.StringVarP(&o.outputFormat, "output", "o", "", "output format: table, json, yaml")
	flags.BoolVar(&o.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&o.serverURL, "server", "", "server URL for remote commands (overrides config)")
	flags.String("db", "", "sqlite database path (overrides DB_PATH)")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	_ = o.v.BindPFlag("output", flags.Lookup("output"))
	_ = o.v.BindPFlag("server_url", flags.Lookup("server"))
	_ = o.v.BindPFlag("db_path", flags.Lookup("db"))
	_ = o.v.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(newScanCmd(o))
	rootCmd.AddCommand(newHistoryCmd(o))
	rootCmd.AddCommand(newChangesCmd(o))
	rootCmd.AddCommand(newCompareCmd(o))
	rootCmd.AddCommand(newDriftCmd(o))
	rootCmd.AddCommand(newTimelineCmd(o))
	rootCmd.AddCommand(newHealthCmd(o))
	rootCmd.AddCommand(newSummaryCmd(o))
	rootCmd.AddCommand(newEvolutionCmd(o))
	rootCmd.AddCommand(newCleanupCmd(o))
	rootCmd.AddCommand(newServeCmd(o))
	rootCmd.AddCommand(newMigrateCmd(o))
	rootCmd.AddCommand(newRemoteCmd(o))
	rootCmd.AddCommand(newConfigCmd(o))

	return rootCmd
}

// Execute runs the snapdrift CLI
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *options) initConfig() error {
	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
	} else if dir, err := configDir(); err == nil {
		o.v.AddConfigPath(dir)
		o.v.SetConfigName("config")
		o.v.SetConfigType("yaml")
	}

	o.v.SetEnvPrefix("SNAPDRIFT")
	o.v.AutomaticEnv()

	o.v.SetDefault("server_url", "http://localhost:8080")
	o.v.SetDefault("output", "table")
	o.v.SetDefault("log_level", "warn")

	if err := o.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// loadConfig reads the environment configuration and applies overrides from
// flags and the CLI config file.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if v := o.v.GetString("db_driver"); v != "" {
		cfg.Database.Driver = v
	}
	if v := o.v.GetString("db_path"); v != "" {
		cfg.Database.Path = v
	}
	if v := o.v.GetString("context"); v != "" {
		cfg.Scanner.Context = v
	}
	if v := o.v.GetString("manifest_dir"); v != "" {
		cfg.Scanner.ManifestDir = v
	}
	if v := o.v.GetString("log_level"); v != "" {
		cfg.Logging.Level = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (o *options) apiClient() *client.Client {
	url := o.v.GetString("server_url")
	if o.serverURL != "" {
		url = o.serverURL
	}
	return client.NewClient(client.Config{BaseURL: url})
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".snapdrift"), nil
}

func getOutputFormat(o *options) string {
	if o.outputFormat != "" {
		return o.outputFormat
	}
	return o.v.GetString("output")
}
