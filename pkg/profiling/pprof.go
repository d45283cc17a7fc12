package profiling

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// Profiles writes a CPU profile for the lifetime of a process and a heap
// profile when it stops.
type Profiles struct {
	CPUPath string
	MemPath string

	cpu *os.File
}

// AddFlags registers --cpu-profile and --mem-profile.
func (p *Profiles) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&p.CPUPath, "cpu-profile", "", "Write a CPU profile to this file")
	fs.StringVar(&p.MemPath, "mem-profile", "", "Write a heap profile to this file on exit")
}

// Start begins CPU profiling if a path was given.
func (p *Profiles) Start() error {
	if p.CPUPath == "" {
		return nil
	}
	f, err := os.Create(p.CPUPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "could not create CPU profile").WithDetail("path", p.CPUPath)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return errors.Wrap(err, errors.ErrCodeInternal, "could not start CPU profile")
	}
	p.cpu = f
	return nil
}

// Stop finishes the CPU profile and writes the heap profile.
func (p *Profiles) Stop(logger *logrus.Entry) {
	if p.cpu != nil {
		pprof.StopCPUProfile()
		p.cpu.Close()
		p.cpu = nil
		logger.WithField("path", p.CPUPath).Info("CPU profile written")
	}

	if p.MemPath == "" {
		return
	}
	f, err := os.Create(p.MemPath)
	if err != nil {
		logger.WithError(err).Warn("Could not create heap profile")
		return
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		logger.WithError(err).Warn("Could not write heap profile")
		return
	}
	logger.WithField("path", p.MemPath).Info("Heap profile written")
}
