package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/apporte/internal/platform"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "apporte",
		Short: "Command-line client for the Apporte Delivery API",
		Long: `apporte signs you in to the Apporte Delivery API and keeps the session
between runs. Sign in with email and password, answer a two-factor challenge
when the account requires one, check what your role is allowed to do, and
manage user accounts from the terminal.

The session token is stored in ~/.apporte/credentials.json by default. Use
--storage memory for a session that ends with the process, or --storage redis
to share it between machines.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("api-url", "", "API base URL (default "+platform.DefaultBaseURL+")")
	flags.String("config", "", "config file (default is $APPORTE_HOME/config.yaml)")
	flags.String("home", "", "apporte directory (default is ~/.apporte)")
	flags.String("storage", "", "token storage: file, memory or redis")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	flags.Bool("no-input", false, "never prompt; fail when input is missing")
	flags.Bool("no-color", false, "disable colored output")

	root.AddCommand(
		newAuthCmd(),
		newUsersCmd(),
		newConfigCmd(),
		newDoctorCmd(),
		newVersionCmd(),
		newCompletionCmd(),
	)

	return root
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command; cancelling ctx aborts in-flight
// requests and prompts.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
