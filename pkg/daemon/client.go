// Package daemon provides a client for the hud daemon. It implements a
// transparent fallback pattern: if the daemon answers on its socket, calls go
// over IPC; if not, a lock-directory view answers what it can.
package daemon

import (
	"context"

	"github.com/petekp/claude-hud-sub008/pkg/models"
)

// Client defines the interface for interacting with the hud daemon.
// Both RemoteClient (IPC) and LocalClient (lock fallback) implement it.
type Client interface {
	// Send delivers one event. Delivery is idempotent on event_id.
	Send(ctx context.Context, ev models.Event) (models.IngestResult, error)

	// Health reports daemon status and the routing gate.
	Health(ctx context.Context) (*models.Health, error)

	// Sessions returns session views; idle sessions only when includeIdle.
	Sessions(ctx context.Context, includeIdle bool) ([]models.SessionView, error)

	// ProjectStates aggregates sessions per project.
	ProjectStates(ctx context.Context, projectPaths []string) ([]models.ProjectState, error)

	// Shells returns the shell table; pid > 0 selects one shell.
	Shells(ctx context.Context, pid int) ([]models.ShellRecord, error)

	// Activity returns recent file activity, newest first.
	Activity(ctx context.Context, projectPath string, limit int) ([]models.ActivityEntry, error)

	// Route resolves the activation target of a project.
	Route(ctx context.Context, projectPath, workspaceID string) (models.RoutingDecision, error)

	// RouteDiagnostics is Route plus the evidence it ranked.
	RouteDiagnostics(ctx context.Context, projectPath, workspaceID string) (*models.RoutingDiagnostics, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}
