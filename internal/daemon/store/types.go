// Package store holds the daemon's materialized state behind a
// reader-writer lock. The engine is its only writer.
package store

import (
	"time"

	"github.com/petekp/claude-hud-sub008/pkg/models"
)

// TmuxSnapshot is the last tmux view captured by the tmux collector.
type TmuxSnapshot struct {
	Clients    []models.TmuxClient  `json:"clients"`
	Sessions   []models.TmuxSession `json:"sessions"`
	CapturedAt time.Time            `json:"captured_at"`
	// Err is set when the last capture failed; the previous data is kept.
	Err string `json:"error,omitempty"`
}

// TerminalSnapshot maps ttys to the terminal app that owns them.
type TerminalSnapshot struct {
	Owners map[string]models.TerminalOwner `json:"owners"`
	// TTYs is the controlling tty of each tracked session and shell pid.
	TTYs       map[int]string `json:"ttys"`
	CapturedAt time.Time      `json:"captured_at"`
}

// Snapshot is a consistent copy of everything a query may read.
type Snapshot struct {
	Sessions  []models.SessionRecord
	Shells    []models.ShellRecord
	Tmux      TmuxSnapshot
	Terminals TerminalSnapshot
	LastSeq   int64
}

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	UpdateSessions  UpdateType = "sessions"
	UpdateTmux      UpdateType = "tmux"
	UpdateTerminals UpdateType = "terminals"
)

// Update represents a change to the state.
type Update struct {
	Type    UpdateType
	Source  string // which collector sent this update
	Payload interface{}
}
