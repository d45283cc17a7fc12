package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/petekp/claude-hud-sub008/pkg/activation"
	"github.com/petekp/claude-hud-sub008/pkg/daemon"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/spf13/cobra"
)

type watchKeys struct {
	Up       key.Binding
	Down     key.Binding
	Activate key.Binding
	Refresh  key.Binding
	Quit     key.Binding
}

func (k watchKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Activate, k.Refresh, k.Quit}
}

func (k watchKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var defaultWatchKeys = watchKeys{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Activate: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "activate")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// activateFunc runs one activation. ok is false when a newer activation of
// the same project superseded it.
type activateFunc func(ctx context.Context, path string) (activation.Outcome, bool)

type (
	projectsMsg struct {
		projects []models.ProjectState
		err      error
	}
	watchTickMsg time.Time
	activatedMsg struct {
		outcome activation.Outcome
		ok      bool
	}
)

type watchModel struct {
	ctx      context.Context
	client   daemon.Client
	activate activateFunc
	interval time.Duration
	now      func() time.Time

	keys     watchKeys
	table    table.Model
	spinner  spinner.Model
	help     help.Model
	projects []models.ProjectState
	loaded   bool
	err      error
	status   string
}

func newWatchModel(ctx context.Context, client daemon.Client, activate activateFunc, interval time.Duration) watchModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "PROJECT", Width: 44},
			{Title: "STATE", Width: 12},
			{Title: "SESSIONS", Width: 8},
			{Title: "UPDATED", Width: 16},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = cli.DefaultTheme.TableHeader.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(cli.DefaultTheme.Colors.Border).
		BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(cli.DefaultTheme.Colors.Cyan).Bold(true)
	t.SetStyles(styles)

	return watchModel{
		ctx:      ctx,
		client:   client,
		activate: activate,
		interval: interval,
		now:      time.Now,
		keys:     defaultWatchKeys,
		table:    t,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:     help.New(),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m watchModel) fetch() tea.Cmd {
	return func() tea.Msg {
		projects, err := m.client.ProjectStates(m.ctx, nil)
		return projectsMsg{projects: projects, err: err}
	}
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return watchTickMsg(t) })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch()
		case key.Matches(msg, m.keys.Activate):
			path := m.selectedPath()
			if path == "" {
				return m, nil
			}
			m.status = "Activating " + cli.HomeRelative(path, homeDir()) + "…"
			return m, func() tea.Msg {
				outcome, ok := m.activate(m.ctx, path)
				return activatedMsg{outcome: outcome, ok: ok}
			}
		}

	case projectsMsg:
		m.loaded = true
		m.err = msg.err
		if msg.err == nil {
			m.projects = msg.projects
			m.table.SetRows(projectRows(msg.projects, m.now()))
		}
		return m, m.tick()

	case watchTickMsg:
		return m, m.fetch()

	case activatedMsg:
		if !msg.ok {
			// A later activation owns the status line.
			return m, nil
		}
		m.status = activationStatus(msg.outcome)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m watchModel) selectedPath() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.projects) {
		return ""
	}
	return m.projects[i].ProjectPath
}

func activationStatus(o activation.Outcome) string {
	switch o.Action {
	case activation.ActionPrimary:
		return cli.DefaultTheme.Success.Render("Focused " + o.Target.Value)
	case activation.ActionFallback:
		return cli.DefaultTheme.Success.Render("Opened " + cli.HomeRelative(o.ProjectPath, homeDir()))
	default:
		return cli.DefaultTheme.Error.Render("Activation failed: " + o.Error)
	}
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(cli.DefaultTheme.Bold.Render("hud") + " ")
	switch {
	case !m.loaded:
		b.WriteString(m.spinner.View() + " loading")
	case m.err != nil:
		b.WriteString(cli.DefaultTheme.Error.Render(m.err.Error()))
	default:
		b.WriteString(cli.DefaultTheme.Muted.Render(strconv.Itoa(len(m.projects)) + " projects"))
	}
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(m.status + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// projectRows renders one row per project, in the order given.
func projectRows(projects []models.ProjectState, now time.Time) []table.Row {
	home := homeDir()
	rows := make([]table.Row, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, table.Row{
			cli.HomeRelative(p.ProjectPath, home),
			string(p.State),
			strconv.Itoa(len(p.Sessions)),
			cli.Age(p.UpdatedAt, now),
		})
	}
	return rows
}

// NewWatchCmd creates the `watch` command.
func NewWatchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of project states",
		Long: `Shows every project with a session and refreshes it continuously. Enter
focuses the selected project the way 'hud activate' does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client := daemon.New(cfg)
			defer client.Close()

			activator := newActivator(cfg, nil)
			activate := func(ctx context.Context, path string) (activation.Outcome, bool) {
				return activator.Activate(ctx, activationRequest(ctx, activator, client, path, ""))
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			model := newWatchModel(ctx, client, activate, interval)
			release := logging.HoldStderr()
			defer release()
			if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Refresh interval")
	return cmd
}
