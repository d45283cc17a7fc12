package models

import "time"

// EvidenceKind tags the candidate types the resolver ranks.
type EvidenceKind string

const (
	EvidenceShell       EvidenceKind = "shell"
	EvidenceTmuxClient  EvidenceKind = "tmux_client"
	EvidenceTmuxSession EvidenceKind = "tmux_session"
	EvidenceTerminalApp EvidenceKind = "terminal_app"
)

// Scope is how specifically evidence is tied to the requested project.
type Scope string

const (
	ScopeExact     Scope = "exact"
	ScopeChild     Scope = "child"
	ScopeParent    Scope = "parent"
	ScopeWorkspace Scope = "workspace"
	ScopeGlobal    Scope = "global"
)

// Evidence is one candidate activation target.
type Evidence struct {
	Kind EvidenceKind `json:"kind"`
	// Value identifies the target: a tty, a tmux session name or an app name.
	Value string `json:"value"`
	// Name is the human identifier compared against the project slug.
	Name        string `json:"name,omitempty"`
	Path        string `json:"path,omitempty"`
	Scope       Scope  `json:"scope,omitempty"`
	TrustRank   int    `json:"trust_rank"`
	AgeMs       int64  `json:"age_ms"`
	Live        bool   `json:"live"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	PID         int    `json:"pid,omitempty"`
	TTY         string `json:"tty,omitempty"`
	// Terminal is the app owning the tty, when known.
	Terminal      string `json:"terminal,omitempty"`
	TerminalKnown bool   `json:"terminal_known"`
	// Attached is set on tmux evidence when a client is attached.
	Attached bool `json:"attached,omitempty"`
}

// Target is what an activation focuses.
type Target struct {
	Kind  EvidenceKind `json:"kind"`
	Value string       `json:"value"`
	// App is the terminal app to raise, if any.
	App string `json:"app,omitempty"`
}

type DecisionStatus string

const (
	DecisionOK          DecisionStatus = "ok"
	DecisionUnavailable DecisionStatus = "unavailable"
)

// Reason codes carried by decisions and traces.
const (
	ReasonMatchExact        = "MATCH_EXACT"
	ReasonMatchChild        = "MATCH_CHILD"
	ReasonMatchWorkspace    = "MATCH_WORKSPACE"
	ReasonMatchSlug         = "MATCH_SLUG"
	ReasonNoTrustedEvidence = "NO_TRUSTED_EVIDENCE"
	ReasonRoutingDisabled   = "ROUTING_DISABLED"
	ReasonRoutingShadow     = "ROUTING_SHADOW"
	ReasonDaemonUnavailable = "DAEMON_UNAVAILABLE"
	ReasonTimeout           = "TIMEOUT"

	ReasonScopeParent = "SCOPE_PARENT"
	ReasonScopeGlobal = "SCOPE_GLOBAL"
	ReasonIgnoredPath = "IGNORED_PATH"
	ReasonSelected    = "SELECTED"
	ReasonOutrankedBy = "OUTRANKED_"
)

type TraceOutcome string

const (
	TraceSelected TraceOutcome = "selected"
	TraceRejected TraceOutcome = "rejected"
	TraceFiltered TraceOutcome = "filtered"
)

// CandidateTrace explains what happened to one candidate.
type CandidateTrace struct {
	Evidence Evidence     `json:"evidence"`
	Outcome  TraceOutcome `json:"outcome"`
	Reason   string       `json:"reason"`
}

// RoutingDecision is the resolver's answer for one project.
type RoutingDecision struct {
	Status      DecisionStatus   `json:"status"`
	Target      *Target          `json:"target,omitempty"`
	ReasonCode  string           `json:"reason_code"`
	ProjectPath string           `json:"project_path"`
	WorkspaceID string           `json:"workspace_id,omitempty"`
	Diagnostics []CandidateTrace `json:"diagnostics"`
}

// Unavailable builds a decision without a target.
func Unavailable(projectPath, reason string) RoutingDecision {
	return RoutingDecision{
		Status:      DecisionUnavailable,
		ReasonCode:  reason,
		ProjectPath: projectPath,
		Diagnostics: []CandidateTrace{},
	}
}

// TmuxClient is an attached tmux client.
type TmuxClient struct {
	TTY          string    `json:"tty"`
	Session      string    `json:"session"`
	LastActivity time.Time `json:"last_activity"`
}

// TmuxSession is a tmux session and the cwd of its first pane.
type TmuxSession struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Attached bool   `json:"attached"`
	// PaneTTYs lists the ttys of every pane in the session.
	PaneTTYs     []string  `json:"pane_ttys,omitempty"`
	LastActivity time.Time `json:"last_activity"`
}

// TerminalOwner maps a tty to the terminal app that owns it.
type TerminalOwner struct {
	TTY    string `json:"tty"`
	App    string `json:"app"`
	AppPID int    `json:"app_pid,omitempty"`
}

// RoutingDiagnostics is the full resolver input and output.
type RoutingDiagnostics struct {
	Decision       RoutingDecision `json:"decision"`
	Evidence       []Evidence      `json:"evidence"`
	Mode           string          `json:"mode"`
	TmuxSnapshotAt time.Time       `json:"tmux_snapshot_at,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
