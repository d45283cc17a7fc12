package lock

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/petekp/claude-hud-sub008/pkg/process"
	"golang.org/x/sys/unix"
)

// SweepReport lists what an orphan sweep did.
type SweepReport struct {
	TerminatedHolders []int    `json:"terminated_holders"`
	RemovedLocks      []string `json:"removed_locks"`
	KeptLocks         int      `json:"kept_locks"`
}

// Sweeper recovers from crashes: it terminates lock-holders whose monitored
// pid is dead and deletes locks whose holder pid is dead.
type Sweeper struct {
	Manager  *Manager
	Lister   process.Lister
	Liveness LivenessChecker
	// Signal delivers SIGTERM; tests replace it.
	Signal func(pid int) error
}

// NewSweeper returns a Sweeper using ps and real signals.
func NewSweeper(m *Manager, liveness LivenessChecker) *Sweeper {
	return &Sweeper{
		Manager:  m,
		Lister:   process.NewPSLister(),
		Liveness: liveness,
		Signal:   func(pid int) error { return unix.Kill(pid, unix.SIGTERM) },
	}
}

// Sweep runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	log := logging.NewLogger("sweep")
	report := SweepReport{TerminatedHolders: []int{}, RemovedLocks: []string{}}

	procs, err := s.Lister.List(ctx)
	if err != nil {
		return report, err
	}
	self := os.Getpid()
	for _, p := range procs {
		if p.PID == self {
			continue
		}
		monitored, ok := ParseHolderArgs(p.Args)
		if !ok {
			continue
		}
		if s.Liveness.SameProcess(ctx, monitored, 0) != models.LivenessDead {
			continue
		}
		if err := s.Signal(p.PID); err != nil {
			log.WithError(err).WithField("holder_pid", p.PID).Warn("failed to terminate orphaned lock-holder")
			continue
		}
		log.WithField("holder_pid", p.PID).WithField("pid", monitored).Info("terminated orphaned lock-holder")
		report.TerminatedHolders = append(report.TerminatedHolders, p.PID)
	}

	locks, err := s.Manager.List()
	if err != nil {
		return report, err
	}
	for _, info := range locks {
		if s.Liveness.SameProcess(ctx, info.PID, info.ProcStarted) != models.LivenessDead {
			report.KeptLocks++
			continue
		}
		s.removeStale(ctx, info.Dir, &report)
	}

	for _, path := range s.Manager.Partial() {
		if age, ok := s.Manager.age(path); ok && age >= s.Manager.partialGrace {
			s.removeStale(ctx, path, &report)
		}
	}

	return report, nil
}

func (s *Sweeper) removeStale(ctx context.Context, path string, report *SweepReport) {
	removed, err := s.Manager.RemoveStale(ctx, path)
	if err != nil {
		logging.NewLogger("sweep").WithError(err).WithField("lock", path).Warn("failed to remove stale lock")
		return
	}
	if removed {
		report.RemovedLocks = append(report.RemovedLocks, path)
	} else {
		report.KeptLocks++
	}
}

// ParseHolderArgs extracts the monitored pid from a lock-holder command line
// such as "hud lock-holder --session s1 --pid 900".
func ParseHolderArgs(args string) (int, bool) {
	fields := strings.Fields(args)
	isHolder := false
	for i, f := range fields {
		if f == HolderCommand {
			isHolder = true
			continue
		}
		if !isHolder {
			continue
		}
		var value string
		switch {
		case f == "--pid" && i+1 < len(fields):
			value = fields[i+1]
		case strings.HasPrefix(f, "--pid="):
			value = strings.TrimPrefix(f, "--pid=")
		default:
			continue
		}
		pid, err := strconv.Atoi(value)
		if err != nil || pid <= 0 {
			return 0, false
		}
		return pid, true
	}
	return 0, false
}
