package routing

import (
	"sort"
	"time"

	"github.com/moby/patternmatcher"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/petekp/claude-hud-sub008/util/pathutil"
)

// specificity orders surviving scopes. Exact beats workspace: a shell in
// the project itself is a better target than anything merely bound to its
// workspace.
var specificity = map[models.Scope]int{
	models.ScopeExact:     3,
	models.ScopeChild:     2,
	models.ScopeWorkspace: 1,
}

var matchReason = map[models.Scope]string{
	models.ScopeExact:     models.ReasonMatchExact,
	models.ScopeChild:     models.ReasonMatchChild,
	models.ScopeWorkspace: models.ReasonMatchWorkspace,
}

// Classify sets the scope of e relative to req.
func Classify(req Request, e models.Evidence) models.Scope {
	rel := pathutil.Relate(req.ProjectPath, e.Path)
	switch {
	case rel == pathutil.Same:
		return models.ScopeExact
	case rel == pathutil.Child:
		return models.ScopeChild
	case req.WorkspaceID != "" && e.WorkspaceID == req.WorkspaceID:
		return models.ScopeWorkspace
	case rel == pathutil.Parent:
		return models.ScopeParent
	}
	return models.ScopeGlobal
}

type candidate struct {
	ev        models.Evidence
	slugMatch bool
}

// criterion is one ranking rule. key returns a larger value for the
// better candidate.
type criterion struct {
	name string
	key  func(c candidate) int64
}

func criteria(opts Options, tmuxAttached bool) []criterion {
	preferTmux := opts.PreferTmux && tmuxAttached
	return []criterion{
		{"LIVE", func(c candidate) int64 { return boolKey(c.ev.Live) }},
		{"SPECIFICITY", func(c candidate) int64 {
			if c.slugMatch {
				return 0
			}
			return int64(specificity[c.ev.Scope])
		}},
		{"TMUX", func(c candidate) int64 {
			if !preferTmux {
				return 0
			}
			return boolKey(c.ev.Attached && (c.ev.Kind == models.EvidenceTmuxSession || c.ev.Kind == models.EvidenceTmuxClient))
		}},
		{"TERMINAL", func(c candidate) int64 { return boolKey(c.ev.TerminalKnown) }},
		{"RECENCY", func(c candidate) int64 { return -c.ev.AgeMs }},
		{"TRUST", func(c candidate) int64 { return int64(c.ev.TrustRank) }},
	}
}

func boolKey(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// compare returns the first criterion on which a and b differ and whether a
// wins it. Equal keys fall through to (kind, value, path) so the order is
// total and independent of input order.
func compare(rules []criterion, a, b candidate) (string, bool) {
	for _, r := range rules {
		ka, kb := r.key(a), r.key(b)
		if ka != kb {
			return r.name, ka > kb
		}
	}
	if a.ev.Kind != b.ev.Kind {
		return "TIEBREAK", a.ev.Kind < b.ev.Kind
	}
	if a.ev.Value != b.ev.Value {
		return "TIEBREAK", a.ev.Value < b.ev.Value
	}
	if a.ev.Path != b.ev.Path {
		return "TIEBREAK", a.ev.Path < b.ev.Path
	}
	if a.ev.Terminal != b.ev.Terminal {
		return "TIEBREAK", a.ev.Terminal < b.ev.Terminal
	}
	return "TIEBREAK", a.ev.PID < b.ev.PID
}

// Resolve picks a target for req from evidence. It never performs I/O.
func Resolve(req Request, evidence []models.Evidence, opts Options) models.RoutingDecision {
	if opts.Mode == ModeDisabled {
		return models.Unavailable(req.ProjectPath, models.ReasonRoutingDisabled)
	}

	decision := models.Unavailable(req.ProjectPath, models.ReasonNoTrustedEvidence)
	decision.WorkspaceID = req.WorkspaceID

	var ignore *patternmatcher.PatternMatcher
	if len(opts.IgnorePaths) > 0 {
		// invalid patterns were rejected at config load
		ignore, _ = patternmatcher.New(opts.IgnorePaths)
	}

	slug := req.Slug()
	var filtered []models.CandidateTrace
	var survivors []candidate
	tmuxAttached := false
	for _, e := range evidence {
		if e.Kind == models.EvidenceTmuxClient {
			tmuxAttached = true
		}
	}

	for _, e := range evidence {
		e.Scope = Classify(req, e)
		if ignore != nil && e.Path != "" {
			if hit, err := ignore.MatchesOrParentMatches(e.Path); err == nil && hit {
				filtered = append(filtered, models.CandidateTrace{Evidence: e, Outcome: models.TraceFiltered, Reason: models.ReasonIgnoredPath})
				continue
			}
		}

		c := candidate{ev: e}
		switch e.Scope {
		case models.ScopeParent, models.ScopeGlobal:
			if slug == "" || e.Name != slug {
				reason := models.ReasonScopeGlobal
				if e.Scope == models.ScopeParent {
					reason = models.ReasonScopeParent
				}
				filtered = append(filtered, models.CandidateTrace{Evidence: e, Outcome: models.TraceFiltered, Reason: reason})
				continue
			}
			c.slugMatch = true
		}
		survivors = append(survivors, c)
	}

	rules := criteria(opts, tmuxAttached)
	sort.SliceStable(survivors, func(i, j int) bool {
		_, aWins := compare(rules, survivors[i], survivors[j])
		return aWins
	})

	var traces []models.CandidateTrace
	if len(survivors) > 0 {
		winner := survivors[0]
		traces = append(traces, models.CandidateTrace{Evidence: winner.ev, Outcome: models.TraceSelected, Reason: models.ReasonSelected})
		for _, loser := range survivors[1:] {
			name, _ := compare(rules, winner, loser)
			traces = append(traces, models.CandidateTrace{
				Evidence: loser.ev,
				Outcome:  models.TraceRejected,
				Reason:   models.ReasonOutrankedBy + name,
			})
		}

		decision.Status = models.DecisionOK
		decision.Target = targetOf(winner.ev)
		decision.ReasonCode = matchReason[winner.ev.Scope]
		if winner.slugMatch {
			decision.ReasonCode = models.ReasonMatchSlug
		}
	}

	sortTraces(filtered)
	decision.Diagnostics = append(traces, filtered...)
	if decision.Diagnostics == nil {
		decision.Diagnostics = []models.CandidateTrace{}
	}
	return decision
}

func targetOf(e models.Evidence) *models.Target {
	t := &models.Target{Kind: e.Kind, Value: e.Value}
	if e.TerminalKnown {
		t.App = e.Terminal
	}
	return t
}

func sortTraces(ts []models.CandidateTrace) {
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i].Evidence, ts[j].Evidence
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.PID < b.PID
	})
}

// Diagnose resolves and returns the decision together with its inputs.
func Diagnose(req Request, evidence []models.Evidence, opts Options, tmuxAt, now time.Time) models.RoutingDiagnostics {
	d := Resolve(req, evidence, opts)
	classified := make([]models.Evidence, len(evidence))
	for i, e := range evidence {
		e.Scope = Classify(req, e)
		classified[i] = e
	}
	sort.SliceStable(classified, func(i, j int) bool {
		a, b := classified[i], classified[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return a.Path < b.Path
	})
	mode := opts.Mode
	if mode == "" {
		mode = ModeEnabled
	}
	return models.RoutingDiagnostics{
		Decision:       d,
		Evidence:       classified,
		Mode:           string(mode),
		TmuxSnapshotAt: tmuxAt,
		GeneratedAt:    now,
	}
}
