package tmux

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/petekp/claude-hud-sub008/pkg/models"
)

// Fields are tab separated: session names and paths may contain colons.
const (
	clientFormat  = "#{client_tty}\t#{client_session}\t#{client_activity}"
	sessionFormat = "#{session_name}\t#{session_attached}\t#{session_activity}"
	paneFormat    = "#{session_name}\t#{window_index}\t#{pane_index}\t#{pane_tty}\t#{pane_current_path}"
)

// ListClients returns every attached client.
func (c *Client) ListClients(ctx context.Context) ([]models.TmuxClient, error) {
	out, err := c.run(ctx, "list-clients", "-F", clientFormat)
	if err != nil {
		if isNoServer(err) {
			return nil, nil
		}
		return nil, err
	}
	return ParseClients(out), nil
}

// ListSessions returns every session with the cwd of its first pane and
// the ttys of all its panes.
func (c *Client) ListSessions(ctx context.Context) ([]models.TmuxSession, error) {
	out, err := c.run(ctx, "list-sessions", "-F", sessionFormat)
	if err != nil {
		if isNoServer(err) {
			return nil, nil
		}
		return nil, err
	}
	sessions := ParseSessions(out)
	if len(sessions) == 0 {
		return sessions, nil
	}

	panes, err := c.run(ctx, "list-panes", "-a", "-F", paneFormat)
	if err != nil {
		if isNoServer(err) {
			return sessions, nil
		}
		return nil, err
	}
	AttachPanes(sessions, ParsePanes(panes))
	return sessions, nil
}

// ParseClients parses list-clients output in clientFormat.
func ParseClients(out string) []models.TmuxClient {
	var clients []models.TmuxClient
	for _, line := range splitLines(out) {
		parts := strings.Split(line, "\t")
		if len(parts) < 3 || parts[0] == "" {
			continue
		}
		clients = append(clients, models.TmuxClient{
			TTY:          parts[0],
			Session:      parts[1],
			LastActivity: parseUnix(parts[2]),
		})
	}
	return clients
}

// ParseSessions parses list-sessions output in sessionFormat.
func ParseSessions(out string) []models.TmuxSession {
	var sessions []models.TmuxSession
	for _, line := range splitLines(out) {
		parts := strings.Split(line, "\t")
		if len(parts) < 3 || parts[0] == "" {
			continue
		}
		attached, _ := strconv.Atoi(parts[1])
		sessions = append(sessions, models.TmuxSession{
			Name:         parts[0],
			Attached:     attached > 0,
			LastActivity: parseUnix(parts[2]),
		})
	}
	return sessions
}

// Pane is one row of list-panes -a.
type Pane struct {
	Session     string
	WindowIndex int
	PaneIndex   int
	TTY         string
	Path        string
}

// ParsePanes parses list-panes output in paneFormat.
func ParsePanes(out string) []Pane {
	var panes []Pane
	for _, line := range splitLines(out) {
		parts := strings.SplitN(line, "\t", 5)
		if len(parts) < 5 {
			continue
		}
		w, err1 := strconv.Atoi(parts[1])
		p, err2 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil {
			continue
		}
		panes = append(panes, Pane{Session: parts[0], WindowIndex: w, PaneIndex: p, TTY: parts[3], Path: parts[4]})
	}
	return panes
}

// AttachPanes sets each session's Path to its lowest-indexed pane's cwd and
// collects pane ttys.
func AttachPanes(sessions []models.TmuxSession, panes []Pane) {
	sort.SliceStable(panes, func(i, j int) bool {
		if panes[i].WindowIndex != panes[j].WindowIndex {
			return panes[i].WindowIndex < panes[j].WindowIndex
		}
		return panes[i].PaneIndex < panes[j].PaneIndex
	})
	idx := make(map[string]int, len(sessions))
	for i := range sessions {
		idx[sessions[i].Name] = i
	}
	for _, p := range panes {
		i, ok := idx[p.Session]
		if !ok {
			continue
		}
		if sessions[i].Path == "" {
			sessions[i].Path = p.Path
		}
		if p.TTY != "" {
			sessions[i].PaneTTYs = append(sessions[i].PaneTTYs, p.TTY)
		}
	}
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func parseUnix(s string) time.Time {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}
