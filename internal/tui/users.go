package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/apporte/pkg/apporte/types"
)

// PageFetcher loads one page of users
type PageFetcher func(ctx context.Context, page int) (*types.Page[types.User], error)

// UserAction changes one user's account status
type UserAction func(ctx context.Context, user types.User) error

// UsersOptions configures the users browser. A nil Suspend or Activate
// hides that action.
type UsersOptions struct {
	Fetch    PageFetcher
	Suspend  UserAction
	Activate UserAction
	Page     int
}

type usersKeyMap struct {
	Next     key.Binding
	Prev     key.Binding
	Refresh  key.Binding
	Suspend  key.Binding
	Activate key.Binding
	Confirm  key.Binding
	Quit     key.Binding
}

func defaultUsersKeys() usersKeyMap {
	return usersKeyMap{
		Next: key.NewBinding(
			key.WithKeys("n", "right", "pgdown"),
			key.WithHelp("n/→", "next page"),
		),
		Prev: key.NewBinding(
			key.WithKeys("p", "left", "pgup"),
			key.WithHelp("p/←", "prev page"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Suspend: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "suspend"),
		),
		Activate: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "activate"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "confirm"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

type usersPageMsg struct {
	page *types.Page[types.User]
	err  error
}

type userActionMsg struct {
	verb string
	user types.User
	err  error
}

// UsersModel is the bubbletea model behind 'apporte users list --interactive'
type UsersModel struct {
	ctx     context.Context
	opts    UsersOptions
	keys    usersKeyMap
	table   table.Model
	page    *types.Page[types.User]
	current int
	loading bool
	pending *types.User
	status  string
	err     error
}

var (
	usersTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#044D22")).
			MarginBottom(1)

	usersFooterStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	usersErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	usersStatusStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("46"))

	usersWarnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226"))
)

// UserColumns are the columns of the users table
func UserColumns() []table.Column {
	return []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Name", Width: 22},
		{Title: "Email", Width: 28},
		{Title: "Role", Width: 16},
		{Title: "Status", Width: 10},
		{Title: "Last login", Width: 16},
	}
}

// UserRows converts users into table rows
func UserRows(users []types.User) []table.Row {
	rows := make([]table.Row, 0, len(users))
	for _, u := range users {
		lastLogin := "never"
		if u.LastLoginAt != nil {
			lastLogin = u.LastLoginAt.Format("2006-01-02 15:04")
		}
		role := u.RoleName()
		if u.Role != nil && u.Role.DisplayName != "" {
			role = u.Role.DisplayName
		}
		rows = append(rows, table.Row{
			strconv.FormatInt(u.ID, 10),
			u.Name,
			u.Email,
			role,
			string(u.Status),
			lastLogin,
		})
	}
	return rows
}

// NewUsersModel creates the model; Init loads the first page.
func NewUsersModel(ctx context.Context, opts UsersOptions) UsersModel {
	page := opts.Page
	if page < 1 {
		page = 1
	}

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("#044D22")).
		Bold(false)

	t := table.New(
		table.WithColumns(UserColumns()),
		table.WithFocused(true),
		table.WithHeight(15),
		table.WithStyles(styles),
	)

	return UsersModel{
		ctx:     ctx,
		opts:    opts,
		keys:    defaultUsersKeys(),
		table:   t,
		current: page,
		loading: true,
	}
}

// Init loads the initial page
func (m UsersModel) Init() tea.Cmd {
	return m.fetch(m.current)
}

// Update handles messages and updates the model
func (m UsersModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if h := msg.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case usersPageMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.page = msg.page
		if msg.page.CurrentPage > 0 {
			m.current = msg.page.CurrentPage
		}
		m.table.SetRows(UserRows(msg.page.Data))
		m.table.SetCursor(0)
		return m, nil

	case userActionMsg:
		if msg.err != nil {
			m.loading = false
			m.err = msg.err
			return m, nil
		}
		m.status = fmt.Sprintf("%s %s", msg.verb, msg.user.Name)
		cmd := m.fetch(m.current)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m UsersModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.pending != nil {
		user := *m.pending
		m.pending = nil
		if key.Matches(msg, m.keys.Confirm) {
			cmd := m.act("Suspended", m.opts.Suspend, user)
			return m, cmd
		}
		m.status = "Suspend cancelled"
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case m.loading:
		return m, nil

	case key.Matches(msg, m.keys.Next):
		if m.page.HasNext() {
			cmd := m.fetch(m.current + 1)
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, m.keys.Prev):
		if m.page.HasPrev() {
			cmd := m.fetch(m.current - 1)
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		cmd := m.fetch(m.current)
		return m, cmd

	case key.Matches(msg, m.keys.Suspend):
		if user, ok := m.Selected(); ok && m.opts.Suspend != nil {
			m.pending = &user
			m.status = ""
		}
		return m, nil

	case key.Matches(msg, m.keys.Activate):
		if user, ok := m.Selected(); ok && m.opts.Activate != nil {
			cmd := m.act("Activated", m.opts.Activate, user)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// Selected returns the user under the cursor
func (m UsersModel) Selected() (types.User, bool) {
	if m.page == nil {
		return types.User{}, false
	}
	i := m.table.Cursor()
	if i < 0 || i >= len(m.page.Data) {
		return types.User{}, false
	}
	return m.page.Data[i], true
}

// Err is the last load or action failure
func (m UsersModel) Err() error {
	return m.err
}

func (m *UsersModel) fetch(page int) tea.Cmd {
	m.loading = true
	ctx, fetch := m.ctx, m.opts.Fetch
	return func() tea.Msg {
		p, err := fetch(ctx, page)
		return usersPageMsg{page: p, err: err}
	}
}

func (m *UsersModel) act(verb string, action UserAction, user types.User) tea.Cmd {
	m.loading = true
	ctx := m.ctx
	return func() tea.Msg {
		return userActionMsg{verb: verb, user: user, err: action(ctx, user)}
	}
}

// View renders the model
func (m UsersModel) View() string {
	var b strings.Builder

	b.WriteString(usersTitleStyle.Render("Users"))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	switch {
	case m.loading:
		b.WriteString(usersFooterStyle.Render("Loading..."))
	case m.page != nil:
		b.WriteString(usersFooterStyle.Render(fmt.Sprintf("Page %d of %d · %d users", m.page.CurrentPage, m.page.LastPage, m.page.Total)))
	}
	b.WriteString("\n")

	switch {
	case m.pending != nil:
		b.WriteString(usersWarnStyle.Render(fmt.Sprintf("Suspend %s? (y/N)", m.pending.Name)))
	case m.err != nil:
		b.WriteString(usersErrorStyle.Render("Error: " + m.err.Error()))
	case m.status != "":
		b.WriteString(usersStatusStyle.Render(m.status))
	}
	b.WriteString("\n")

	b.WriteString(usersFooterStyle.Render(m.helpLine()))
	return b.String()
}

func (m UsersModel) helpLine() string {
	bindings := []key.Binding{m.keys.Next, m.keys.Prev, m.keys.Refresh}
	if m.opts.Suspend != nil {
		bindings = append(bindings, m.keys.Suspend)
	}
	if m.opts.Activate != nil {
		bindings = append(bindings, m.keys.Activate)
	}
	bindings = append(bindings, m.keys.Quit)

	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

// RunUsersTable runs the users browser until the user quits. The returned
// error is the last load failure, if the browser ended on one.
func RunUsersTable(ctx context.Context, opts UsersOptions) error {
	final, err := tea.NewProgram(NewUsersModel(ctx, opts), tea.WithContext(ctx), tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("users browser failed: %w", err)
	}
	if m, ok := final.(UsersModel); ok {
		return m.Err()
	}
	return nil
}
