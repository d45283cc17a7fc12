// Package profiling times the phases of short-lived commands and writes
// pprof profiles for long-running ones.
package profiling

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Phase is one named step and how long it took.
type Phase struct {
	Name     string
	Duration time.Duration
}

// Phases records consecutive steps of a single operation. Each Mark closes
// the step that started at the previous mark.
type Phases struct {
	start time.Time
	last  time.Time
	marks []Phase
	now   func() time.Time
}

// NewPhases starts timing now.
func NewPhases() *Phases {
	return newPhases(time.Now)
}

func newPhases(now func() time.Time) *Phases {
	t := now()
	return &Phases{start: t, last: t, now: now}
}

// Mark ends the current step under name.
func (p *Phases) Mark(name string) {
	t := p.now()
	p.marks = append(p.marks, Phase{Name: name, Duration: t.Sub(p.last)})
	p.last = t
}

// Phases returns the recorded steps in order.
func (p *Phases) Phases() []Phase {
	return append([]Phase(nil), p.marks...)
}

// Total is the time from start to the last mark.
func (p *Phases) Total() time.Duration {
	return p.last.Sub(p.start)
}

// Fields renders the steps as log fields in milliseconds.
func (p *Phases) Fields() logrus.Fields {
	fields := logrus.Fields{"total_ms": ms(p.Total())}
	for _, m := range p.marks {
		fields[m.Name+"_ms"] = ms(m.Duration)
	}
	return fields
}

func (p *Phases) String() string {
	parts := make([]string, 0, len(p.marks)+1)
	for _, m := range p.marks {
		parts = append(parts, fmt.Sprintf("%s=%v", m.Name, m.Duration.Round(100*time.Microsecond)))
	}
	parts = append(parts, fmt.Sprintf("total=%v", p.Total().Round(100*time.Microsecond)))
	return strings.Join(parts, " ")
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
