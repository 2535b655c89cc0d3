package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/apporte/internal/exitcode"
	"github.com/felixgeelhaar/apporte/internal/platform"
	"github.com/felixgeelhaar/apporte/internal/session"
	"github.com/felixgeelhaar/apporte/internal/tokenstore"
	"github.com/felixgeelhaar/apporte/internal/tui"
	"github.com/felixgeelhaar/apporte/pkg/apporte/types"
)

// statusReport is the JSON form of 'auth status'
type statusReport struct {
	State            string      `json:"state"`
	User             *types.User `json:"user,omitempty"`
	Permissions      []string    `json:"permissions"`
	APIURL           string      `json:"api_url"`
	Storage          string      `json:"storage"`
	TokenFingerprint string      `json:"token_fingerprint,omitempty"`
	TokenExpiresAt   *time.Time  `json:"token_expires_at,omitempty"`
}

func newAuthStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Long: `Validate the stored token against the API and show who is signed in, with
the role and permissions the server granted. A token the API rejects is
removed.

Exits 0 when signed in and 5 otherwise.`,
		Args: cobra.NoArgs,
		RunE: runAuthStatus,
	}

	cmd.Flags().Bool("json", false, "output as JSON")
	return cmd
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	asJSON, _ := cmd.Flags().GetBool("json")

	if err := app.CheckAuth(cmd.Context()); err != nil && !platform.IsUnauthorized(err) {
		return requestError("session check", err)
	}

	report := buildStatusReport(app)
	if asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		app.Println(string(data))
	} else {
		app.Println(renderStatus(app.Styles, report))
	}

	if !app.Session.IsAuthenticated() {
		return exitcode.WithCode(exitcode.AuthError, nil)
	}
	return nil
}

func buildStatusReport(app *App) statusReport {
	report := statusReport{
		State:       app.Session.State().String(),
		User:        app.Session.User(),
		Permissions: app.Session.Permissions(),
		APIURL:      app.Client.BaseURL(),
		Storage:     app.Tokens.StorageName(),
	}

	if token := app.Tokens.Token(); token != "" {
		report.TokenFingerprint = tokenstore.Fingerprint(token)
		if info, err := session.InspectToken(token); err == nil {
			report.TokenExpiresAt = info.ExpiresAt
		}
	}
	return report
}

func renderStatus(styles tui.Styles, r statusReport) string {
	if r.User == nil {
		return styles.Panel("Session", []tui.Field{
			{Label: "State", Value: "not logged in"},
			{Label: "API", Value: r.APIURL},
			{Label: "Storage", Value: r.Storage},
		}) + "\n" + styles.Muted.Render("Run 'apporte auth login' to sign in.")
	}

	u := r.User
	role := u.RoleName()
	if u.Role != nil && u.Role.DisplayName != "" {
		role = fmt.Sprintf("%s (%s)", u.Role.DisplayName, u.Role.Name)
	}
	var branch string
	if u.Branch != nil {
		branch = u.Branch.Name
	}
	expires := "unknown"
	if r.TokenExpiresAt != nil {
		expires = r.TokenExpiresAt.Local().Format(time.RFC1123)
	}

	return styles.Panel("Session", []tui.Field{
		{Label: "State", Value: r.State},
		{Label: "User", Value: fmt.Sprintf("%s <%s>", u.Name, u.Email)},
		{Label: "Status", Value: string(u.Status)},
		{Label: "Role", Value: role},
		{Label: "Branch", Value: branch},
		{Label: "Permissions", Value: strings.Join(r.Permissions, ", ")},
		{Label: "API", Value: r.APIURL},
		{Label: "Storage", Value: r.Storage},
		{Label: "Token", Value: r.TokenFingerprint},
		{Label: "Expires", Value: expires},
	})
}

func newAuthCanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "can <permission>",
		Short: "Check whether the session grants a permission",
		Long: `Check a permission against the signed-in session. The super_admin role is
granted every permission.

Exits 0 when granted and 3 when not, so it can guard scripts:
  apporte auth can users.suspend && apporte users suspend 42 --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionCheck(cmd, func(m *session.Manager) (bool, string) {
				ok := m.HasPermission(args[0])
				if ok {
					return true, "permission " + args[0] + " granted"
				}
				return false, "permission " + args[0] + " not granted"
			})
		},
	}
}

func newAuthHasRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "has-role <role>",
		Short: "Check the session's role",
		Long: `Check whether the signed-in user has role. The super_admin role passes
every role check.

Exits 0 on a match and 3 otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionCheck(cmd, func(m *session.Manager) (bool, string) {
				if m.HasRole(args[0]) {
					return true, "role " + args[0]
				}
				return false, "not role " + args[0]
			})
		},
	}
}

// runSessionCheck resolves the session, then prints and exits with the
// answer of check.
func runSessionCheck(cmd *cobra.Command, check func(*session.Manager) (bool, string)) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.RequireSession(cmd.Context()); err != nil {
		return err
	}

	ok, msg := check(app.Session)
	app.Println(app.Styles.Check(ok, "%s", msg))
	if !ok {
		return exitcode.WithCode(exitcode.Denied, nil)
	}
	return nil
}
