package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/apporte/internal/config"
)

// CommandContext holds the persistent flags. Commands read it in RunE
// instead of sharing package-level flag variables, so a fresh command
// tree can run in tests without interference.
type CommandContext struct {
	// Connection
	APIURL  string
	Storage string

	// Configuration
	ConfigFile string
	Home       string

	// Logging
	LogLevel  string
	LogFormat string

	// Interaction
	NoInput bool
	NoColor bool
}

// NewCommandContext extracts command context from cobra.Command flags.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	apiURL, err := cmd.Flags().GetString("api-url")
	if err != nil {
		return nil, err
	}

	storage, err := cmd.Flags().GetString("storage")
	if err != nil {
		return nil, err
	}

	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	home, err := cmd.Flags().GetString("home")
	if err != nil {
		return nil, err
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	logFormat, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, err
	}

	noInput, err := cmd.Flags().GetBool("no-input")
	if err != nil {
		return nil, err
	}

	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		APIURL:     apiURL,
		Storage:    storage,
		ConfigFile: configFile,
		Home:       home,
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		NoInput:    noInput,
		NoColor:    noColor,
	}, nil
}

// LoadConfig resolves the configuration and applies flag overrides on top.
func (c *CommandContext) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{Home: c.Home, File: c.ConfigFile})
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		key   string
		value string
	}{
		{"api_url", c.APIURL},
		{"storage.backend", c.Storage},
		{"logging.level", c.LogLevel},
		{"logging.format", c.LogFormat},
	}
	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		if err := cfg.Override(o.key, o.value); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
