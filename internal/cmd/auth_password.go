package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/apporte/internal/platform"
	"github.com/felixgeelhaar/apporte/internal/tui"
)

func newAuthForgotPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Request a password reset link",
		Long: `Ask the API to email a password reset link. The reset token in that email
is used with 'apporte auth reset-password'.

Examples:
  apporte auth forgot-password --email ops@apporte.test`,
		Args: cobra.NoArgs,
		RunE: runForgotPassword,
	}

	cmd.Flags().String("email", "", "account email")
	return cmd
}

func runForgotPassword(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	email, err := flagOrPrompt(app, cmd, "email", tui.Prompt{
		Message:     "Email",
		Placeholder: "you@company.com",
		Required:    true,
	})
	if err != nil {
		return err
	}
	if err := tui.ValidateEmail(email); err != nil {
		return NewErrorWithSuggestions("invalid email", err, "Pass the address the account was registered with")
	}

	err = app.Busy("Requesting reset link", func() error {
		return app.Client.ForgotPassword(cmd.Context(), email)
	})
	if err != nil {
		return requestError("password reset request", err)
	}

	app.Println(app.Styles.Check(true, "If an account exists for %s, a reset link is on its way.", email))
	return nil
}

func newAuthResetPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset token",
		Long: `Set a new password using the token from a reset email. The new password is
prompted for twice when --password is not given.

Examples:
  apporte auth reset-password --token 3f2a... --email ops@apporte.test`,
		Args: cobra.NoArgs,
		RunE: runResetPassword,
	}

	cmd.Flags().String("token", "", "reset token from the email")
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "new password")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func runResetPassword(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	token, _ := cmd.Flags().GetString("token")
	email, err := flagOrPrompt(app, cmd, "email", tui.Prompt{
		Message:     "Email",
		Placeholder: "you@company.com",
		Required:    true,
	})
	if err != nil {
		return err
	}

	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		if !app.Interactive() {
			return InputRequiredError("password")
		}
		if password, err = tui.PromptNewPassword(); err != nil {
			return err
		}
	}

	err = app.Busy("Resetting password", func() error {
		return app.Client.ResetPassword(cmd.Context(), platform.ResetPasswordRequest{
			Token:                token,
			Email:                email,
			Password:             password,
			PasswordConfirmation: password,
		})
	})
	if err != nil {
		return requestError("password reset", err)
	}

	app.Println(app.Styles.Check(true, "Password updated. Sign in with 'apporte auth login'."))
	return nil
}

// flagOrPrompt returns the flag's value, prompting for it when empty and
// prompting is allowed.
func flagOrPrompt(app *App, cmd *cobra.Command, flag string, p tui.Prompt) (string, error) {
	value, _ := cmd.Flags().GetString(flag)
	if value != "" {
		return value, nil
	}
	if !app.Interactive() {
		return "", InputRequiredError(flag)
	}
	return tui.PromptForString(p)
}
