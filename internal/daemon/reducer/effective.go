package reducer

import (
	"time"

	"github.com/petekp/claude-hud-sub008/pkg/models"
)

const (
	// StopGateGrace is how long a stop-gated Ready still reads as Working.
	StopGateGrace = 20 * time.Second
	// AutoReadyAfter is the inactivity after which a Working session whose
	// last event was TaskCompleted reads as Ready.
	AutoReadyAfter = 60 * time.Second
)

// Effective computes the state a reader should see at now. It depends on
// wall time and liveness, so it is evaluated on every read and never stored.
// Unknown liveness counts as alive.
func Effective(rec models.SessionRecord, now time.Time, liveness models.Liveness) models.SessionState {
	state := rec.State
	alive := liveness != models.LivenessDead

	if state == models.StateWorking && rec.LastEvent == models.EventTaskCompleted && rec.ToolsInFlight == 0 {
		last := rec.UpdatedAt
		if rec.LastActivityAt != nil {
			last = *rec.LastActivityAt
		}
		if now.Sub(last) >= AutoReadyAfter {
			state = models.StateReady
		}
	}

	if rec.State == models.StateReady && rec.ReadyReason == models.ReadyStopGate &&
		alive && now.Sub(rec.UpdatedAt) < StopGateGrace {
		state = models.StateWorking
	}

	if state == models.StateReady && !alive {
		state = models.StateIdle
	}
	return state
}

// View pairs a record with its effective state.
func View(rec models.SessionRecord, now time.Time, liveness models.Liveness) models.SessionView {
	return models.SessionView{
		SessionRecord:  rec,
		EffectiveState: Effective(rec, now, liveness),
		Liveness:       liveness,
	}
}
