package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/petekp/claude-hud-sub008/internal/daemon/store"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/sirupsen/logrus"
)

// Ingester is where the reaper sends the events it synthesizes.
type Ingester interface {
	Ingest(ctx context.Context, ev models.Event) (models.IngestResult, error)
}

// LivenessChecker reports process liveness with the PID-reuse guard.
type LivenessChecker interface {
	SameProcess(ctx context.Context, pid int, expected int64) models.Liveness
}

// Reaper ends sessions whose process has been dead for longer than
// reapAfter by ingesting a SessionEnd, so the log records why they vanished.
type Reaper struct {
	ingest    Ingester
	live      LivenessChecker
	interval  time.Duration
	reapAfter time.Duration
	now       func() time.Time
	logger    *logrus.Entry
}

func NewReaper(ingest Ingester, live LivenessChecker, reapAfter time.Duration, logger *logrus.Entry) *Reaper {
	return &Reaper{
		ingest:    ingest,
		live:      live,
		interval:  30 * time.Second,
		reapAfter: reapAfter,
		now:       time.Now,
		logger:    logger,
	}
}

func (r *Reaper) Name() string { return "reaper" }

func (r *Reaper) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(ctx, st)
		}
	}
}

// Sweep reaps once and returns the keys it ended.
func (r *Reaper) Sweep(ctx context.Context, st *store.Store) []models.SessionKey {
	now := r.now().UTC()
	var reaped []models.SessionKey
	for _, rec := range st.Sessions() {
		if now.Sub(rec.UpdatedAt) < r.reapAfter {
			continue
		}
		if r.live.SameProcess(ctx, rec.PID, rec.ProcStarted) != models.LivenessDead {
			continue
		}

		ev := models.Event{
			// stable per record version, so a retried sweep is a duplicate
			EventID:    fmt.Sprintf("reap-%s-%d-%d", rec.SessionID, rec.PID, rec.UpdatedAt.UnixNano()),
			Type:       models.EventSessionEnd,
			SessionID:  rec.SessionID,
			PID:        rec.PID,
			RecordedAt: now,
			CWD:        rec.CWD,
		}
		res, err := r.ingest.Ingest(ctx, ev)
		if err != nil {
			r.logger.WithError(err).WithField("session_id", rec.SessionID).Warn("Failed to reap dead session")
			continue
		}
		if res.Applied {
			r.logger.WithFields(logrus.Fields{
				"session_id": rec.SessionID,
				"pid":        rec.PID,
				"idle_for":   now.Sub(rec.UpdatedAt).Round(time.Second).String(),
			}).Info("Reaped dead session")
			reaped = append(reaped, rec.Key())
		}
	}
	return reaped
}
