package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/apporte/internal/platform"
	"github.com/felixgeelhaar/apporte/internal/tui"
	"github.com/felixgeelhaar/apporte/pkg/apporte/types"
)

func newUsersCmd() *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
		Long: `List, suspend and activate user accounts. Requires a signed-in session
with admin access; the API enforces the permissions.

Examples:
  apporte users list --role rider --status active
  apporte users list --interactive
  apporte users suspend 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	usersCmd.AddCommand(
		newUsersListCmd(),
		newUsersRolesCmd(),
		newUsersStatusCmd("suspend", "Suspend a user account"),
		newUsersStatusCmd("activate", "Reactivate a suspended user account"),
	)
	return usersCmd
}

func newUsersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE:  runUsersList,
	}

	cmd.Flags().Int("page", 1, "page number")
	cmd.Flags().Int("per-page", platform.DefaultPerPage, "users per page")
	cmd.Flags().String("search", "", "filter by name or email")
	cmd.Flags().String("role", "", "filter by role name")
	cmd.Flags().String("status", "", "filter by status: active, inactive, suspended")
	cmd.Flags().BoolP("interactive", "i", false, "browse pages in a table (n/p to page, s/a to suspend/activate)")
	cmd.Flags().Bool("json", false, "output the page as JSON")
	return cmd
}

func runUsersList(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	filter, err := userFilterFromFlags(cmd)
	if err != nil {
		return err
	}
	interactive, _ := cmd.Flags().GetBool("interactive")
	asJSON, _ := cmd.Flags().GetBool("json")

	if err := app.RequireSession(ctx); err != nil {
		return err
	}

	if interactive {
		if !app.Interactive() {
			return NewErrorWithSuggestions("--interactive needs a terminal", nil,
				"Drop --interactive to print a single page",
				"Remove --no-input if you set it")
		}
		err := tui.RunUsersTable(ctx, tui.UsersOptions{
			Page: filter.Page,
			Fetch: func(ctx context.Context, page int) (*types.Page[types.User], error) {
				f := filter
				f.Page = page
				return app.Client.ListUsers(ctx, f)
			},
			Suspend: func(ctx context.Context, u types.User) error {
				return app.Client.SuspendUser(ctx, u.ID)
			},
			Activate: func(ctx context.Context, u types.User) error {
				return app.Client.ActivateUser(ctx, u.ID)
			},
		})
		return requestError("user listing", err)
	}

	var page *types.Page[types.User]
	err = app.Busy("Loading users", func() error {
		var err error
		page, err = app.Client.ListUsers(ctx, filter)
		return err
	})
	if err != nil {
		return requestError("user listing", err)
	}

	if asJSON {
		data, err := json.MarshalIndent(page, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal users: %w", err)
		}
		app.Println(string(data))
		return nil
	}

	if len(page.Data) == 0 {
		app.Println(app.Styles.Muted.Render("No users found."))
		return nil
	}
	writeUsersTable(app, page)
	return nil
}

func userFilterFromFlags(cmd *cobra.Command) (platform.UserFilter, error) {
	page, _ := cmd.Flags().GetInt("page")
	perPage, _ := cmd.Flags().GetInt("per-page")
	search, _ := cmd.Flags().GetString("search")
	role, _ := cmd.Flags().GetString("role")
	status, _ := cmd.Flags().GetString("status")

	filter := platform.UserFilter{
		Page:    page,
		PerPage: perPage,
		Search:  search,
		Role:    role,
		Status:  types.UserStatus(status),
	}
	if status != "" {
		if err := filter.Status.Validate(); err != nil {
			return filter, NewErrorWithSuggestions(fmt.Sprintf("invalid argument %q for --status", status), err,
				"Valid values: active, inactive, suspended")
		}
	}
	return filter, nil
}

func writeUsersTable(app *App, page *types.Page[types.User]) {
	w := tabwriter.NewWriter(app.Out(), 0, 0, 3, ' ', 0)

	columns := tui.UserColumns()
	titles := make([]string, len(columns))
	rules := make([]string, len(columns))
	for i, c := range columns {
		titles[i] = strings.ToUpper(c.Title)
		rules[i] = strings.Repeat("-", len(c.Title))
	}
	fmt.Fprintln(w, strings.Join(titles, "\t")) //nolint:errcheck
	fmt.Fprintln(w, strings.Join(rules, "\t"))  //nolint:errcheck

	for _, row := range tui.UserRows(page.Data) {
		cells := make([]string, len(row))
		for i, cell := range row {
			if cell == "" {
				cell = "-"
			}
			cells[i] = cell
		}
		fmt.Fprintln(w, strings.Join(cells, "\t")) //nolint:errcheck
	}
	_ = w.Flush()

	app.Println(app.Styles.Muted.Render(fmt.Sprintf("Page %d of %d · %d users", page.CurrentPage, page.LastPage, page.Total)))
}

func newUsersRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List roles and their permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if err := app.RequireSession(ctx); err != nil {
				return err
			}

			var roles []types.Role
			err = app.Busy("Loading roles", func() error {
				var err error
				roles, err = app.Client.ListRoles(ctx)
				return err
			})
			if err != nil {
				return requestError("role listing", err)
			}

			w := tabwriter.NewWriter(app.Out(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "NAME\tDISPLAY NAME\tPERMISSIONS") //nolint:errcheck
			fmt.Fprintln(w, "----\t------------\t-----------") //nolint:errcheck
			for _, r := range roles {
				perms := strings.Join(r.Permissions, ", ")
				if perms == "" {
					perms = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.DisplayName, perms) //nolint:errcheck
			}
			return w.Flush()
		},
	}
}

// newUsersStatusCmd builds 'users suspend' and 'users activate'.
func newUsersStatusCmd(verb, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return InvalidIDError(args[0])
			}

			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if err := app.RequireSession(ctx); err != nil {
				return err
			}

			if verb == "suspend" {
				yes, _ := cmd.Flags().GetBool("yes")
				if !yes {
					if !app.Interactive() {
						return NewErrorWithSuggestions("refusing to suspend without confirmation", nil,
							fmt.Sprintf("Pass --yes: apporte users suspend %d --yes", id))
					}
					ok, err := tui.PromptForConfirmation(fmt.Sprintf("Suspend user %d?", id), false)
					if err != nil {
						return err
					}
					if !ok {
						app.Println(app.Styles.Muted.Render("Cancelled."))
						return nil
					}
				}
			}

			action, busy, done := app.Client.ActivateUser, "Activating user", "Activated"
			if verb == "suspend" {
				action, busy, done = app.Client.SuspendUser, "Suspending user", "Suspended"
			}

			err = app.Busy(busy, func() error {
				return action(ctx, id)
			})
			if err != nil {
				return requestError(verb, err)
			}

			app.Println(app.Styles.Check(true, "%s user %d", done, id))
			return nil
		},
	}

	if verb == "suspend" {
		cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	}
	return cmd
}
