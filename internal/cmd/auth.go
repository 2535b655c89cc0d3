package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/felixgeelhaar/apporte/internal/errors"
	"github.com/felixgeelhaar/apporte/internal/tui"
)

func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign out and inspect the session",
		Long: `Manage the Apporte session.

Subcommands:
  login            Sign in with email and password
  verify           Answer a pending two-factor challenge
  logout           Sign out and remove the stored token
  status           Show the current session
  can              Check a permission
  has-role         Check the session's role
  forgot-password  Request a password reset link
  reset-password   Set a new password with a reset token

Examples:
  apporte auth login --email ops@apporte.test
  apporte auth status
  apporte auth can users.suspend
  apporte auth logout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	authCmd.AddCommand(
		newAuthLoginCmd(),
		newAuthVerifyCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
		newAuthCanCmd(),
		newAuthHasRoleCmd(),
		newAuthForgotPasswordCmd(),
		newAuthResetPasswordCmd(),
	)
	return authCmd
}

func newAuthLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in to the Apporte API. Missing credentials are prompted for when
running in a terminal.

If the account has two-factor authentication enabled you are asked for the
verification code; a rejected code can be retried. Without a terminal, pass
--code, or finish later with 'apporte auth verify'.

Examples:
  apporte auth login
  apporte auth login --email ops@apporte.test --password "$PASSWORD"
  apporte auth login --email ops@apporte.test --password "$PASSWORD" --code 123456`,
		Args: cobra.NoArgs,
		RunE: runAuthLogin,
	}

	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password")
	cmd.Flags().String("code", "", "two-factor verification code")
	return cmd
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	code, _ := cmd.Flags().GetString("code")

	if email == "" || password == "" {
		if !app.Interactive() {
			if email == "" {
				return InputRequiredError("email")
			}
			return InputRequiredError("password")
		}
		creds, err := tui.PromptCredentials(tui.Credentials{Email: email, Password: password})
		if err != nil {
			return err
		}
		email, password = creds.Email, creds.Password
	}

	var challenge bool
	var userID int64
	err = app.Busy("Signing in", func() error {
		res, err := app.Session.Login(ctx, email, password)
		challenge, userID = res.RequiresTwoFactor, res.UserID
		return err
	})
	if err != nil {
		return loginError(app.Client.BaseURL(), err)
	}

	if challenge {
		app.Println(app.Styles.Warning.Render("Two-factor authentication required."))
		if err := completeTwoFactor(ctx, app, userID, code); err != nil {
			return err
		}
	}

	printSignedIn(app)
	return nil
}

// completeTwoFactor answers the pending challenge. A code from the flag
// gets one attempt; after that, and whenever no code was given, the user
// is prompted until a code is accepted or the prompt is aborted.
func completeTwoFactor(ctx context.Context, app *App, userID int64, code string) error {
	var lastErr string
	if code != "" {
		err := submitCode(ctx, app, userID, code)
		if err == nil {
			return nil
		}
		if !app.Interactive() || !retryable(err) {
			return err
		}
		lastErr = rejectionMessage(err)
	}

	if !app.Interactive() {
		return apperrors.NewTwoFactorRequiredError(userID)
	}

	for {
		code, err := tui.PromptTwoFactorCode(lastErr)
		if err != nil {
			if errors.Is(err, tui.ErrAborted) {
				app.Session.CancelChallenge()
			}
			return err
		}

		err = submitCode(ctx, app, userID, code)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = rejectionMessage(err)
	}
}

// submitCode sends one verification attempt. A code the server turns down
// comes back as AUTH-004 carrying the server's message.
func submitCode(ctx context.Context, app *App, userID int64, code string) error {
	code = tui.NormalizeTwoFactorCode(code)
	if err := tui.ValidateTwoFactorCode(code); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInvalidTwoFactorCode, "invalid verification code", err)
	}

	err := app.Busy("Verifying code", func() error {
		return app.Session.VerifyTwoFactor(ctx, userID, code)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), isTransport(err), apperrors.CodeOf(err) != "":
		return requestError("verification", err)
	}
	return apperrors.NewTwoFactorRejectedError(err)
}

// retryable reports whether another code may be tried after err.
func retryable(err error) bool {
	return apperrors.HasCode(err, apperrors.ErrCodeTwoFactorRejected) ||
		apperrors.HasCode(err, apperrors.ErrCodeInvalidTwoFactorCode)
}

func rejectionMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Cause.Error()
	}
	return err.Error()
}

func printSignedIn(app *App) {
	user := app.Session.User()
	if user == nil {
		app.Println(app.Styles.Check(true, "Signed in"))
		return
	}
	role := user.RoleName()
	if role == "" {
		role = "no role"
	}
	app.Println(app.Styles.Check(true, "Signed in as %s <%s> (%s)", user.Name, user.Email, role))
}

func newAuthVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Answer a pending two-factor challenge",
		Long: `Complete a login that stopped at the two-factor challenge. The user id is
printed by 'apporte auth login' when it cannot prompt for the code.

Examples:
  apporte auth verify --user-id 42 --code 123456`,
		Args: cobra.NoArgs,
		RunE: runAuthVerify,
	}

	cmd.Flags().Int64("user-id", 0, "user id from the challenge")
	cmd.Flags().String("code", "", "verification code")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func runAuthVerify(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	userID, _ := cmd.Flags().GetInt64("user-id")
	code, _ := cmd.Flags().GetString("code")
	if userID <= 0 {
		return InvalidIDError(fmt.Sprint(userID))
	}

	if err := completeTwoFactor(cmd.Context(), app, userID, code); err != nil {
		return err
	}

	printSignedIn(app)
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored token",
		Long: `Sign out of the Apporte API. The local token is removed even when the
server cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: runAuthLogout,
	}
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Tokens.Token() == "" {
		app.Println(app.Styles.Muted.Render("Not logged in."))
		return nil
	}

	_ = app.Busy("Signing out", func() error {
		app.Session.Logout(cmd.Context())
		return nil
	})

	app.Println(app.Styles.Check(true, "Signed out"))
	return nil
}
