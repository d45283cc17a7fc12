package models

import "time"

// ProcessLivenessRecord is a cached probe result. ProcStarted is the unix
// start time of the process and distinguishes a reused pid.
type ProcessLivenessRecord struct {
	PID         int       `json:"pid"`
	ProcStarted int64     `json:"proc_started"`
	Alive       bool      `json:"alive"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// LockVersion is written into every lock's metadata file.
const LockVersion = 2

// LockInfo is the metadata file stored inside a lock directory.
type LockInfo struct {
	PID         int       `json:"pid"`
	Path        string    `json:"path"`
	SessionID   string    `json:"session_id"`
	ProcStarted int64     `json:"proc_started"`
	Created     time.Time `json:"created"`
	LockVersion int       `json:"lock_version"`

	// Dir is the lock directory on disk; not serialized.
	Dir string `json:"-"`
}
