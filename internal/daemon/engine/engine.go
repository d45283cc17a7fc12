// Package engine is the daemon's single writer. Every event passes through
// one goroutine that appends it to the event log and only then folds it into
// the store. Collectors run alongside and publish snapshots.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/internal/daemon/collector"
	"github.com/petekp/claude-hud-sub008/internal/daemon/store"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/sirupsen/logrus"
)

// DefaultQueueSize bounds the ingest queue.
const DefaultQueueSize = 256

// EventLog is the durable log the engine writes ahead of the store.
type EventLog interface {
	Append(ctx context.Context, e models.Event) (seq int64, inserted bool, err error)
	Replay(ctx context.Context, after int64, fn func(seq int64, e models.Event) error) error
}

type ingestRequest struct {
	ctx   context.Context
	event models.Event
	reply chan ingestReply
}

type ingestReply struct {
	result models.IngestResult
	err    error
}

// Engine manages the ingest actor and all collectors.
type Engine struct {
	store      *store.Store
	events     EventLog
	collectors []collector.Collector
	queue      chan ingestRequest
	logger     *logrus.Entry
}

// New creates a new Engine instance.
func New(st *store.Store, events EventLog, queueSize int, logger *logrus.Entry) *Engine {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Engine{
		store:  st,
		events: events,
		queue:  make(chan ingestRequest, queueSize),
		logger: logger,
	}
}

// Register adds a collector to the engine.
func (e *Engine) Register(c collector.Collector) {
	e.collectors = append(e.collectors, c)
}

// Store returns the engine's state store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Replay rebuilds the store from the event log. It must finish before
// Start so that no ingest interleaves with the rebuild.
func (e *Engine) Replay(ctx context.Context) (int, error) {
	started := time.Now()
	n := 0
	err := e.events.Replay(ctx, e.store.LastSeq(), func(seq int64, ev models.Event) error {
		e.store.Apply(seq, ev)
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	e.logger.WithFields(logrus.Fields{
		"events":   n,
		"last_seq": e.store.LastSeq(),
		"sessions": len(e.store.Sessions()),
		"took":     time.Since(started).String(),
	}).Info("Replayed event log")
	return n, nil
}

// Ingest hands ev to the actor and waits for its acknowledgment. The event
// is durable once a nil error is returned. ctx bounds both the enqueue and
// the wait; on expiry the caller gets a TIMEOUT error.
func (e *Engine) Ingest(ctx context.Context, ev models.Event) (models.IngestResult, error) {
	if err := ev.Validate(); err != nil {
		return models.IngestResult{EventID: ev.EventID}, errors.InvalidInput(err.Error())
	}
	// recorded_at is stored as UTC nanos; normalize so live and replayed
	// records compare equal.
	ev.RecordedAt = ev.RecordedAt.UTC()

	req := ingestRequest{ctx: ctx, event: ev, reply: make(chan ingestReply, 1)}
	select {
	case e.queue <- req:
	case <-ctx.Done():
		return models.IngestResult{EventID: ev.EventID}, timeoutErr(ctx, "ingest enqueue")
	}

	select {
	case r := <-req.reply:
		return r.result, r.err
	case <-ctx.Done():
		return models.IngestResult{EventID: ev.EventID}, timeoutErr(ctx, "ingest ack")
	}
}

func timeoutErr(ctx context.Context, op string) error {
	var after time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		after = time.Until(deadline)
		if after < 0 {
			after = 0
		}
	}
	return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, op+" did not complete").
		WithDetail("remaining", after.String())
}

// Start runs the ingest actor and all collectors and blocks until ctx is
// canceled.
func (e *Engine) Start(ctx context.Context) {
	updates := make(chan store.Update, 100)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.runActor(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-updates:
				e.store.ApplyUpdate(u)
			}
		}
	}()

	for _, c := range e.collectors {
		wg.Add(1)
		go func(col collector.Collector) {
			defer wg.Done()
			e.logger.WithField("collector", col.Name()).Info("Starting collector")
			if err := col.Run(ctx, e.store, updates); err != nil {
				e.logger.WithField("collector", col.Name()).WithError(err).Error("Collector failed")
			}
		}(c)
	}

	wg.Wait()
}

func (e *Engine) runActor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-e.queue:
			if req.ctx.Err() != nil {
				// the caller gave up before we got to it and was told so
				continue
			}
			result, err := e.apply(req.ctx, req.event)
			req.reply <- ingestReply{result: result, err: err}
		}
	}
}

func (e *Engine) apply(ctx context.Context, ev models.Event) (models.IngestResult, error) {
	result := models.IngestResult{EventID: ev.EventID}

	seq, inserted, err := e.events.Append(ctx, ev)
	if err != nil {
		e.logger.WithError(err).WithField("event_id", ev.EventID).Error("Failed to append event")
		return result, err
	}
	result.Seq = seq
	result.Accepted = true

	if !inserted {
		// Already logged, so already applied (live or by replay).
		result.Duplicate = true
		result.SkippedReason = "duplicate"
		return result, nil
	}

	out := e.store.Apply(seq, ev)
	result.Applied = out.Applied
	result.Duplicate = out.Duplicate
	result.Stale = out.Stale
	result.SkippedReason = out.SkippedReason

	fields := logrus.Fields{
		"event_id":   ev.EventID,
		"event_type": ev.Type,
		"session_id": ev.SessionID,
		"pid":        ev.PID,
		"seq":        seq,
	}
	switch {
	case out.Stale:
		e.logger.WithFields(fields).Info("Recorded stale event without applying")
	case out.SkippedReason != "":
		e.logger.WithFields(fields).WithField("reason", out.SkippedReason).Debug("Event skipped")
	case out.Transitioned && out.Record != nil:
		e.logger.WithFields(fields).WithField("state", out.Record.State).Debug("Session transitioned")
	}
	return result, nil
}
