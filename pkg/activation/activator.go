package activation

import (
	"context"
	"fmt"
	"time"

	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 2 * time.Second

// Request is one activation of a project. Seq orders it against other
// requests for the same key; it is reserved with Begin when the request is
// issued, before routing runs. Zero means "reserve on Activate".
type Request struct {
	ID          string
	ProjectPath string
	Seq         uint64
	Decision    models.RoutingDecision
}

// Key groups requests that compete for the same logical target.
func (r Request) Key() string { return r.ProjectPath }

// Primary focuses the decided target.
type Primary interface {
	Focus(ctx context.Context, target models.Target) error
}

// Fallback runs when the primary action fails or there is no target, for
// example opening a new terminal in the project.
type Fallback interface {
	Open(ctx context.Context, projectPath string) error
}

// Action names what an outcome did.
type Action string

const (
	ActionPrimary  Action = "primary"
	ActionFallback Action = "fallback"
	ActionFailed   Action = "failed"
)

// Outcome is the single observable result of a request.
type Outcome struct {
	RequestID   string         `json:"request_id"`
	ProjectPath string         `json:"project_path"`
	Seq         uint64         `json:"seq"`
	Action      Action         `json:"action"`
	Target      *models.Target `json:"target,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Activator runs primary then fallback actions. A request that has been
// superseded by a newer one for the same key neither runs its fallback nor
// emits an outcome, even if it finishes after the newer one.
type Activator struct {
	seq      *Sequencer
	primary  Primary
	fallback Fallback
	timeout  time.Duration
	emit     func(Outcome)
	log      *logrus.Entry
}

// Option configures an Activator.
type Option func(*Activator)

func WithTimeout(d time.Duration) Option {
	return func(a *Activator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithEmitter receives every outcome that is allowed to surface.
func WithEmitter(fn func(Outcome)) Option { return func(a *Activator) { a.emit = fn } }

func WithSequencer(s *Sequencer) Option { return func(a *Activator) { a.seq = s } }

func NewActivator(primary Primary, fallback Fallback, log *logrus.Entry, opts ...Option) *Activator {
	a := &Activator{
		seq:      NewSequencer(),
		primary:  primary,
		fallback: fallback,
		timeout:  DefaultTimeout,
		emit:     func(Outcome) {},
		log:      log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Begin reserves the sequence number of a request for key. Call it when
// the user issues the request, so that slow routing cannot reorder it
// behind a later one.
func (a *Activator) Begin(key string) uint64 {
	return a.seq.Next(key)
}

// Activate performs req. ok is false when the request was superseded; the
// returned outcome is then informational only and was not emitted.
func (a *Activator) Activate(ctx context.Context, req Request) (Outcome, bool) {
	key := req.Key()
	seq := req.Seq
	if seq == 0 {
		seq = a.Begin(key)
	}
	out := Outcome{RequestID: req.ID, ProjectPath: req.ProjectPath, Seq: seq}
	if !a.seq.IsLatest(key, seq) {
		return a.discard(key, out, "primary")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var primaryErr error
	if req.Decision.Status == models.DecisionOK && req.Decision.Target != nil {
		out.Target = req.Decision.Target
		primaryErr = a.primary.Focus(ctx, *req.Decision.Target)
		if primaryErr == nil {
			out.Action = ActionPrimary
			return a.finish(key, out)
		}
	} else {
		primaryErr = fmt.Errorf("no target: %s", req.Decision.ReasonCode)
	}

	if !a.seq.IsLatest(key, seq) {
		return a.discard(key, out, "fallback")
	}

	a.log.WithFields(logrus.Fields{
		"project_path": req.ProjectPath,
		"seq":          seq,
	}).WithError(primaryErr).Debug("Primary activation failed, running fallback")

	if a.fallback == nil {
		out.Action = ActionFailed
		out.Error = primaryErr.Error()
		return a.finish(key, out)
	}
	if err := a.fallback.Open(ctx, req.ProjectPath); err != nil {
		out.Action = ActionFailed
		out.Error = err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			out.Error = errors.Timeout("activation", a.timeout).Error()
		}
		return a.finish(key, out)
	}
	out.Action = ActionFallback
	return a.finish(key, out)
}

func (a *Activator) finish(key string, out Outcome) (Outcome, bool) {
	if !a.seq.IsLatest(key, out.Seq) {
		return a.discard(key, out, "outcome")
	}
	a.emit(out)
	return out, true
}

func (a *Activator) discard(key string, out Outcome, stage string) (Outcome, bool) {
	a.log.WithFields(logrus.Fields{
		"project_path": out.ProjectPath,
		"seq":          out.Seq,
		"latest":       a.seq.Latest(key),
		"stage":        stage,
	}).Info("Discarding superseded activation")
	return out, false
}
