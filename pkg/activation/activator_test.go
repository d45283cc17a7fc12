package activation

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// gatedPrimary blocks each Focus on a per-target channel until released.
type gatedPrimary struct {
	mu      sync.Mutex
	gates   map[string]chan error
	started map[string]chan struct{}
}

func newGatedPrimary(values ...string) *gatedPrimary {
	p := &gatedPrimary{gates: map[string]chan error{}, started: map[string]chan struct{}{}}
	for _, v := range values {
		p.gates[v] = make(chan error, 1)
		p.started[v] = make(chan struct{})
	}
	return p
}

func (p *gatedPrimary) Focus(ctx context.Context, t models.Target) error {
	p.mu.Lock()
	gate, started := p.gates[t.Value], p.started[t.Value]
	p.mu.Unlock()
	close(started)
	select {
	case err := <-gate:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type countingFallback struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *countingFallback) Open(ctx context.Context, projectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, projectPath)
	return f.err
}

func (f *countingFallback) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recorder) emit(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func decision(value string) models.RoutingDecision {
	return models.RoutingDecision{
		Status: models.DecisionOK,
		Target: &models.Target{Kind: models.EvidenceShell, Value: value},
	}
}

func TestSequencer(t *testing.T) {
	s := NewSequencer()
	a := s.Next("/code/a")
	b := s.Next("/code/a")
	other := s.Next("/code/b")

	assert.Equal(t, uint64(1), a)
	assert.Equal(t, uint64(2), b)
	assert.Equal(t, uint64(1), other)
	assert.False(t, s.IsLatest("/code/a", a))
	assert.True(t, s.IsLatest("/code/a", b))
}

func TestSupersededCompletionIsDiscarded(t *testing.T) {
	primary := newGatedPrimary("tty-a", "tty-b")
	fallback := &countingFallback{}
	rec := &recorder{}
	act := NewActivator(primary, fallback, quietLogger(), WithEmitter(rec.emit), WithTimeout(5*time.Second))

	type result struct {
		out Outcome
		ok  bool
	}
	aDone := make(chan result, 1)
	go func() {
		out, ok := act.Activate(context.Background(), Request{ID: "A", ProjectPath: "/code/a", Decision: decision("tty-a")})
		aDone <- result{out, ok}
	}()
	<-primary.started["tty-a"]

	bDone := make(chan result, 1)
	go func() {
		out, ok := act.Activate(context.Background(), Request{ID: "B", ProjectPath: "/code/a", Decision: decision("tty-b")})
		bDone <- result{out, ok}
	}()
	<-primary.started["tty-b"]

	// B wins and emits first
	primary.gates["tty-b"] <- nil
	b := <-bDone
	require.True(t, b.ok)
	assert.Equal(t, ActionPrimary, b.out.Action)
	assert.Equal(t, uint64(2), b.out.Seq)

	// A's primary fails afterwards: it must not fall back or emit
	primary.gates["tty-a"] <- fmt.Errorf("window closed")
	a := <-aDone
	assert.False(t, a.ok)
	assert.Equal(t, uint64(1), a.out.Seq)

	assert.Equal(t, 0, fallback.count())
	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, "B", rec.outcomes[0].RequestID)
}

func TestSupersededSuccessIsDiscarded(t *testing.T) {
	primary := newGatedPrimary("tty-a", "tty-b")
	rec := &recorder{}
	act := NewActivator(primary, &countingFallback{}, quietLogger(), WithEmitter(rec.emit))

	aDone := make(chan bool, 1)
	go func() {
		_, ok := act.Activate(context.Background(), Request{ID: "A", ProjectPath: "/code/a", Decision: decision("tty-a")})
		aDone <- ok
	}()
	<-primary.started["tty-a"]
	bDone := make(chan bool, 1)
	go func() {
		_, ok := act.Activate(context.Background(), Request{ID: "B", ProjectPath: "/code/a", Decision: decision("tty-b")})
		bDone <- ok
	}()
	<-primary.started["tty-b"]

	primary.gates["tty-b"] <- nil
	assert.True(t, <-bDone)
	primary.gates["tty-a"] <- nil
	assert.False(t, <-aDone)

	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, "B", rec.outcomes[0].RequestID)
}

func TestFallbackWhenNoTarget(t *testing.T) {
	fallback := &countingFallback{}
	rec := &recorder{}
	act := NewActivator(newGatedPrimary(), fallback, quietLogger(), WithEmitter(rec.emit))

	out, ok := act.Activate(context.Background(), Request{
		ID:          "A",
		ProjectPath: "/code/a",
		Decision:    models.Unavailable("/code/a", models.ReasonNoTrustedEvidence),
	})
	require.True(t, ok)
	assert.Equal(t, ActionFallback, out.Action)
	assert.Equal(t, 1, fallback.count())
	assert.Len(t, rec.outcomes, 1)
}

func TestFallbackFailureIsReported(t *testing.T) {
	fallback := &countingFallback{err: fmt.Errorf("terminal missing")}
	act := NewActivator(newGatedPrimary(), fallback, quietLogger())

	out, ok := act.Activate(context.Background(), Request{
		ProjectPath: "/code/a",
		Decision:    models.Unavailable("/code/a", models.ReasonRoutingDisabled),
	})
	require.True(t, ok)
	assert.Equal(t, ActionFailed, out.Action)
	assert.Contains(t, out.Error, "terminal missing")
}

func TestIndependentTargetsDoNotSuppressEachOther(t *testing.T) {
	fallback := &countingFallback{}
	act := NewActivator(newGatedPrimary(), fallback, quietLogger())

	for _, p := range []string{"/code/a", "/code/b"} {
		_, ok := act.Activate(context.Background(), Request{ProjectPath: p, Decision: models.Unavailable(p, models.ReasonNoTrustedEvidence)})
		assert.True(t, ok)
	}
	assert.Equal(t, 2, fallback.count())
}

func TestExpand(t *testing.T) {
	got := Expand([]string{"open", "-a", "Ghostty", "--args", "--working-directory={path}", "--title={slug}"}, "/code/My App")
	assert.Equal(t, []string{"open", "-a", "Ghostty", "--args", "--working-directory=/code/My App", "--title=my-app"}, got)
}

func TestBegunRequestSupersededBeforeFocusSkipsPrimary(t *testing.T) {
	primary := newGatedPrimary("tty-a", "tty-b")
	fallback := &countingFallback{}
	rec := &recorder{}
	act := NewActivator(primary, fallback, quietLogger(), WithEmitter(rec.emit))

	aSeq := act.Begin("/code/a")
	bSeq := act.Begin("/code/a")
	require.Equal(t, uint64(1), aSeq)
	require.Equal(t, uint64(2), bSeq)

	primary.gates["tty-b"] <- nil
	b, ok := act.Activate(context.Background(), Request{ID: "B", ProjectPath: "/code/a", Seq: bSeq, Decision: decision("tty-b")})
	require.True(t, ok)
	assert.Equal(t, bSeq, b.Seq)

	a, ok := act.Activate(context.Background(), Request{ID: "A", ProjectPath: "/code/a", Seq: aSeq, Decision: decision("tty-a")})
	assert.False(t, ok)
	assert.Equal(t, aSeq, a.Seq)
	assert.Empty(t, a.Action)

	select {
	case <-primary.started["tty-a"]:
		t.Fatal("superseded request reached the primary action")
	default:
	}
	assert.Equal(t, 0, fallback.count())
	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, "B", rec.outcomes[0].RequestID)
}
