package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/petekp/claude-hud-sub008/pkg/models"
)

func newPretty(w io.Writer) *logging.PrettyLogger {
	return logging.NewPrettyLogger().WithWriter(w)
}

func homeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

func stateCell(s models.SessionState) string {
	return cli.DefaultTheme.State(s).Render(string(s))
}

func renderSessions(w io.Writer, views []models.SessionView, now time.Time) {
	if len(views) == 0 {
		fmt.Fprintln(w, cli.DefaultTheme.Muted.Render("No active sessions"))
		return
	}
	home := homeDir()
	table := cli.NewTable("PROJECT", "STATE", "SESSION", "PID", "LAST EVENT", "CHANGED")
	for _, v := range views {
		state := stateCell(v.EffectiveState)
		if v.EffectiveState != v.State {
			state += cli.DefaultTheme.Muted.Render(" (" + string(v.State) + ")")
		}
		table.Row(
			cli.HomeRelative(v.ProjectPath(), home),
			state,
			cli.ShortID(v.SessionID),
			strconv.Itoa(v.PID),
			string(v.LastEvent),
			cli.Age(v.StateChangedAt, now),
		)
	}
	fmt.Fprintln(w, table.String())
}

func renderProjects(w io.Writer, projects []models.ProjectState, now time.Time) {
	if len(projects) == 0 {
		fmt.Fprintln(w, cli.DefaultTheme.Muted.Render("No projects with sessions"))
		return
	}
	home := homeDir()
	table := cli.NewTable("PROJECT", "STATE", "SESSIONS", "UPDATED")
	for _, p := range projects {
		table.Row(
			cli.HomeRelative(p.ProjectPath, home),
			stateCell(p.State),
			strconv.Itoa(len(p.Sessions)),
			cli.Age(p.UpdatedAt, now),
		)
	}
	fmt.Fprintln(w, table.String())
}

func renderActivity(w io.Writer, entries []models.ActivityEntry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, cli.DefaultTheme.Muted.Render("No recent activity"))
		return
	}
	home := homeDir()
	table := cli.NewTable("FILE", "TOOL", "SESSION", "WHEN")
	for _, e := range entries {
		table.Row(cli.HomeRelative(e.FilePath, home), e.ToolName, cli.ShortID(e.SessionID), cli.Age(e.RecordedAt, now))
	}
	fmt.Fprintln(w, table.String())
}

// renderDecision prints the decision and its trace, selected candidate first.
func renderDecision(w io.Writer, d models.RoutingDecision) {
	t := cli.DefaultTheme
	if d.Status == models.DecisionOK && d.Target != nil {
		target := fmt.Sprintf("%s %s", d.Target.Kind, d.Target.Value)
		if d.Target.App != "" {
			target += " in " + d.Target.App
		}
		fmt.Fprintf(w, "%s %s %s\n", t.Success.Render("→"), target, t.Muted.Render("("+d.ReasonCode+")"))
	} else {
		fmt.Fprintf(w, "%s unavailable %s\n", t.Error.Render("✗"), t.Muted.Render("("+d.ReasonCode+")"))
	}
	if len(d.Diagnostics) == 0 {
		return
	}

	table := cli.NewTable("OUTCOME", "KIND", "VALUE", "SCOPE", "TRUST", "AGE", "REASON")
	for _, tr := range d.Diagnostics {
		e := tr.Evidence
		table.Row(
			string(tr.Outcome),
			string(e.Kind),
			e.Value,
			string(e.Scope),
			strconv.Itoa(e.TrustRank),
			(time.Duration(e.AgeMs) * time.Millisecond).Round(time.Second).String(),
			tr.Reason,
		)
	}
	fmt.Fprintln(w, table.String())
}
