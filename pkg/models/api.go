package models

import (
	"encoding/json"
	"time"
)

// ProtocolVersion is the IPC protocol spoken by this build.
const ProtocolVersion = 1

// Query methods. Ingest methods are derived from EventType.Method.
const (
	MethodGetHealth             = "GetHealth"
	MethodGetSessions           = "GetSessions"
	MethodGetProjectStates      = "GetProjectStates"
	MethodGetShellState         = "GetShellState"
	MethodGetActivity           = "GetActivity"
	MethodGetRoutingSnapshot    = "GetRoutingSnapshot"
	MethodGetRoutingDiagnostics = "GetRoutingDiagnostics"
)

// Request is one line sent to the daemon socket.
type Request struct {
	ProtocolVersion int             `json:"protocol_version"`
	Method          string          `json:"method"`
	ID              string          `json:"id,omitempty"`
	Params          json.RawMessage `json:"params,omitempty"`
}

// Response is one line written back for each request.
type Response struct {
	OK    bool            `json:"ok"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody is the serialized form of a coded error.
type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type SessionsParams struct {
	IncludeIdle bool `json:"include_idle,omitempty"`
}

type ProjectStatesParams struct {
	ProjectPaths []string `json:"project_paths,omitempty"`
}

type ShellStateParams struct {
	PID int `json:"pid,omitempty"`
}

type ActivityParams struct {
	ProjectPath string `json:"project_path,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

type RoutingParams struct {
	ProjectPath string `json:"project_path"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}

// ShellState is the response of GetShellState.
type ShellState struct {
	Shells []ShellRecord `json:"shells"`
}

// Health is the response of GetHealth.
type Health struct {
	Status          string        `json:"status"`
	PID             int           `json:"pid"`
	Version         string        `json:"version"`
	ProtocolVersion int           `json:"protocol_version"`
	StartedAt       time.Time     `json:"started_at"`
	UptimeSeconds   int64         `json:"uptime_seconds"`
	LastSeq         int64         `json:"last_seq"`
	Sessions        int           `json:"sessions"`
	Routing         RoutingHealth `json:"routing"`
}

// RoutingHealth tells callers whether to trust daemon routing.
type RoutingHealth struct {
	Mode string `json:"mode"`
	// Trusted is true only in "enabled" mode; callers in shadow mode keep
	// using fallback state.
	Trusted            bool      `json:"trusted"`
	TmuxSnapshotAt     time.Time `json:"tmux_snapshot_at,omitempty"`
	TerminalSnapshotAt time.Time `json:"terminal_snapshot_at,omitempty"`
}
