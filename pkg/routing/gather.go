package routing

import (
	"context"
	"path/filepath"
	"time"

	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/petekp/claude-hud-sub008/pkg/process"
	"github.com/petekp/claude-hud-sub008/pkg/terminal"
	"github.com/petekp/claude-hud-sub008/util/pathutil"
)

// Liveness probes pids. expected is the recorded start time; zero skips
// the PID-reuse check.
type Liveness interface {
	SameProcess(ctx context.Context, pid int, expected int64) models.Liveness
}

// Gather builds the candidate list for req. It probes liveness and
// canonicalizes paths; nothing after it touches the system.
func Gather(ctx context.Context, req Request, snap Snapshot, live Liveness, opts Options, now time.Time) []models.Evidence {
	g := gatherer{req: req, snap: snap, opts: opts, now: now, canon: map[string]string{}}
	var out []models.Evidence

	for _, rec := range snap.Sessions {
		tty := snap.PIDTTYs[rec.PID]
		if tty == "" {
			continue
		}
		e := g.shellLike(rec.PID, tty, rec.ProjectPath(), "", rec.UpdatedAt, TrustSession)
		e.Live = live.SameProcess(ctx, rec.PID, rec.ProcStarted) != models.LivenessDead
		out = append(out, e)
	}

	for _, sh := range snap.Shells {
		tty := process.NormalizeTTY(sh.TTY)
		if tty == "" {
			tty = snap.PIDTTYs[sh.PID]
		}
		if tty == "" {
			continue
		}
		e := g.shellLike(sh.PID, tty, sh.CWD, sh.ParentApp, sh.UpdatedAt, TrustShell)
		e.Live = live.SameProcess(ctx, sh.PID, 0) != models.LivenessDead
		out = append(out, e)
	}

	sessionPaths := make(map[string]string, len(snap.TmuxSessions))
	for _, ts := range snap.TmuxSessions {
		sessionPaths[ts.Name] = ts.Path
	}

	for _, ts := range snap.TmuxSessions {
		clientTTY := g.clientFor(ts.Name)
		e := models.Evidence{
			Kind:     models.EvidenceTmuxSession,
			Value:    ts.Name,
			Name:     ts.Name,
			Path:     g.canonical(ts.Path),
			TTY:      clientTTY,
			Live:     true,
			Attached: ts.Attached,
		}
		g.terminalOf(&e, clientTTY, "")
		g.age(&e, ts.LastActivity, TrustTmux)
		g.bind(&e)
		out = append(out, e)
	}

	for _, c := range snap.TmuxClients {
		e := models.Evidence{
			Kind:     models.EvidenceTmuxClient,
			Value:    c.TTY,
			Name:     c.Session,
			Path:     g.canonical(sessionPaths[c.Session]),
			TTY:      c.TTY,
			Live:     true,
			Attached: true,
		}
		g.terminalOf(&e, c.TTY, "")
		g.age(&e, c.LastActivity, TrustTmux)
		g.bind(&e)
		out = append(out, e)
	}

	// A terminal app hosting a shell in the project can at least be raised,
	// even when the window itself cannot be targeted.
	seenApp := map[string]bool{}
	for _, e := range out {
		if e.Kind != models.EvidenceShell || !e.TerminalKnown || seenApp[e.Terminal+"\x00"+e.Path] {
			continue
		}
		seenApp[e.Terminal+"\x00"+e.Path] = true
		app := models.Evidence{
			Kind:          models.EvidenceTerminalApp,
			Value:         e.Terminal,
			Name:          e.Terminal,
			Path:          e.Path,
			Live:          e.Live,
			AgeMs:         e.AgeMs,
			Terminal:      e.Terminal,
			TerminalKnown: true,
			WorkspaceID:   e.WorkspaceID,
			TrustRank:     TrustTerminalApp,
		}
		if e.TrustRank == TrustStale {
			app.TrustRank = TrustStale
		}
		out = append(out, app)
	}
	return out
}

type gatherer struct {
	req   Request
	snap  Snapshot
	opts  Options
	now   time.Time
	canon map[string]string
}

func (g *gatherer) shellLike(pid int, tty, path, parentApp string, updated time.Time, trust int) models.Evidence {
	e := models.Evidence{
		Kind:  models.EvidenceShell,
		Value: tty,
		Path:  g.canonical(path),
		PID:   pid,
		TTY:   tty,
	}
	g.terminalOf(&e, tty, parentApp)
	g.age(&e, updated, trust)
	g.bind(&e)
	return e
}

func (g *gatherer) canonical(path string) string {
	if path == "" {
		return ""
	}
	if c, ok := g.canon[path]; ok {
		return c
	}
	c, err := pathutil.CanonicalPath(path)
	if err != nil {
		c = filepath.Clean(path)
	}
	g.canon[path] = c
	return c
}

func (g *gatherer) terminalOf(e *models.Evidence, tty, parentApp string) {
	if owner, ok := g.snap.Terminals[tty]; ok && owner.App != "" {
		e.Terminal = owner.App
	} else if parentApp != "" {
		e.Terminal = parentApp
	}
	if app, ok := terminal.Known(e.Terminal, g.opts.KnownTerminals); ok {
		e.Terminal = app
		e.TerminalKnown = true
	}
}

func (g *gatherer) age(e *models.Evidence, at time.Time, trust int) {
	if at.IsZero() {
		at = g.snap.TmuxCapturedAt
	}
	if !at.IsZero() {
		e.AgeMs = g.now.Sub(at).Milliseconds()
		if e.AgeMs < 0 {
			e.AgeMs = 0
		}
	}
	e.TrustRank = trust
	if g.opts.StaleAfter > 0 && time.Duration(e.AgeMs)*time.Millisecond > g.opts.StaleAfter {
		e.TrustRank = TrustStale
	}
}

// bind marks evidence as belonging to the request's workspace: a tmux
// session named after it, or a path inside it when the id is a path.
func (g *gatherer) bind(e *models.Evidence) {
	ws := g.req.WorkspaceID
	if ws == "" {
		return
	}
	if e.Name == ws {
		e.WorkspaceID = ws
		return
	}
	if filepath.IsAbs(ws) {
		switch pathutil.Relate(g.canonical(ws), e.Path) {
		case pathutil.Same, pathutil.Child:
			e.WorkspaceID = ws
		}
	}
}

// clientFor picks the tty of a client showing session, else any client, so
// the session can be switched to.
func (g *gatherer) clientFor(session string) string {
	fallback := ""
	for _, c := range g.snap.TmuxClients {
		if c.Session == session {
			return c.TTY
		}
		if fallback == "" || c.TTY < fallback {
			fallback = c.TTY
		}
	}
	return fallback
}
