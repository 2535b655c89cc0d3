package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/apporte/internal/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change configuration",
		Long: `Read and write apporte settings.

Settings come from, lowest precedence first: built-in defaults, the config
file (~/.apporte/config.yaml), a .env file in the working directory,
APPORTE_* environment variables, and command-line flags.

Keys:
  ` + strings.Join(config.Keys(), "\n  ") + `

Examples:
  apporte config view
  apporte config get api_url
  apporte config set api_url https://api.apporte.example/api/v1
  apporte config set storage.backend memory`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "view",
			Short: "Print the effective configuration as YAML",
			Args:  cobra.NoArgs,
			RunE:  runConfigView,
		},
		&cobra.Command{
			Use:       "get <key>",
			Short:     "Print one effective setting",
			Args:      cobra.ExactArgs(1),
			ValidArgs: config.Keys(),
			RunE:      runConfigGet,
		},
		&cobra.Command{
			Use:       "set <key> <value>",
			Short:     "Write a setting to the config file",
			Args:      cobra.ExactArgs(2),
			ValidArgs: config.Keys(),
			RunE:      runConfigSet,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE:  runConfigPath,
		},
	)
	return configCmd
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg, err := cc.LoadConfig()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Settings())
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg, err := cc.LoadConfig()
	if err != nil {
		return err
	}

	value, err := cfg.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

// runConfigSet edits the file without loading it first, so a bad value
// already in the file can still be fixed.
func runConfigSet(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	path, err := configPath(cc)
	if err != nil {
		return err
	}

	if err := config.Set(path, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	path, err := configPath(cc)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func configPath(cc *CommandContext) (string, error) {
	if cc.ConfigFile != "" {
		return cc.ConfigFile, nil
	}
	home := cc.Home
	if home == "" {
		var err error
		if home, err = config.DefaultHome(); err != nil {
			return "", err
		}
	}
	return filepath.Join(home, "config.yaml"), nil
}
